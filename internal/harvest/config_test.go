package harvest

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("harvest.keywords", []string{"visium", " visium ", "", "chromium"})
	v.Set("harvest.max_records", 10)
	v.Set("harvest.max_pages", 3)
	v.Set("harvest.max_page_retries", 4)
	v.Set("harvest.page_delay", "2s")
	v.Set("harvest.long_pause_every", 10)

	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	// Keywords are trimmed and deduplicated in order.
	require.Equal(t, []string{"visium", "chromium"}, cfg.Keywords)
	require.Equal(t, 10, cfg.MaxRecords)
	require.Equal(t, 3, cfg.MaxPagesPerKeyword)
	require.Equal(t, 4, cfg.MaxPageRetries)
	require.Equal(t, 2*time.Second, cfg.PageDelay)
	require.Equal(t, 10, cfg.LongPauseEvery)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		set  func(v *viper.Viper)
	}{
		{"no keywords", func(v *viper.Viper) {
			v.Set("harvest.max_page_retries", 1)
		}},
		{"blank keywords", func(v *viper.Viper) {
			v.Set("harvest.keywords", []string{" ", ""})
			v.Set("harvest.max_page_retries", 1)
		}},
		{"zero page retries", func(v *viper.Viper) {
			v.Set("harvest.keywords", []string{"visium"})
		}},
		{"negative max records", func(v *viper.Viper) {
			v.Set("harvest.keywords", []string{"visium"})
			v.Set("harvest.max_page_retries", 1)
			v.Set("harvest.max_records", -1)
		}},
		{"negative delay", func(v *viper.Viper) {
			v.Set("harvest.keywords", []string{"visium"})
			v.Set("harvest.max_page_retries", 1)
			v.Set("harvest.page_delay", "-1s")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			tc.set(v)
			_, err := LoadConfig(v)
			require.Error(t, err)
		})
	}
}
