package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := sink.PutObject(context.Background(),
		"snapshots/run-1/visium_page_0.html", "text/html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	body, err := os.ReadFile(filepath.Join(dir, "snapshots", "run-1", "visium_page_0.html"))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(body))
}

func TestPutObjectRejectsEscapingPath(t *testing.T) {
	t.Parallel()

	sink, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = sink.PutObject(context.Background(), "../outside.html", "", strings.NewReader("x"))
	require.Error(t, err)

	_, err = sink.PutObject(context.Background(), "  ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
