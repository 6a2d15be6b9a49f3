package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsubclient "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gcssink "github.com/mkarlsen/biorxiv-harvester/internal/blob/gcs"
	localsink "github.com/mkarlsen/biorxiv-harvester/internal/blob/local"
	"github.com/mkarlsen/biorxiv-harvester/internal/clock/system"
	"github.com/mkarlsen/biorxiv-harvester/internal/config"
	collyfetcher "github.com/mkarlsen/biorxiv-harvester/internal/fetcher/colly"
	headlessfetcher "github.com/mkarlsen/biorxiv-harvester/internal/fetcher/headless"
	"github.com/mkarlsen/biorxiv-harvester/internal/harvest"
	"github.com/mkarlsen/biorxiv-harvester/internal/logging"
	"github.com/mkarlsen/biorxiv-harvester/internal/metrics"
	memorypublisher "github.com/mkarlsen/biorxiv-harvester/internal/publisher/memory"
	pubsubpublisher "github.com/mkarlsen/biorxiv-harvester/internal/publisher/pubsub"
	csvstore "github.com/mkarlsen/biorxiv-harvester/internal/store/csv"
	postgresstore "github.com/mkarlsen/biorxiv-harvester/internal/store/postgres"
	sqlitestore "github.com/mkarlsen/biorxiv-harvester/internal/store/sqlite"
)

// newHarvestCmd creates the 'harvest' subcommand, which runs one complete
// harvest over the configured keywords and exits.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvest over the configured keywords",
		Long: `Walks each configured keyword's search results page by page,
extracts a record per result, enriches it with its posting date and
publication status, and flushes the dataset to the configured store.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	v := rootViper()
	appCfg, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	harvestCfg, err := harvest.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("load harvest config: %w", err)
	}

	logger, err := logging.New(appCfg.Logging.Development, harvestCfg.Debug)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if appCfg.Metrics.Enabled {
		metrics.Init()
		metricsSrv = metrics.NewServer(appCfg.Metrics.Addr)
		go func() {
			logger.Info("metrics server started", zap.String("addr", appCfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown error", zap.Error(err))
			}
		}()
	}

	clock := system.New()

	docs, err := headlessfetcher.New(headlessfetcher.Config{
		MaxParallel:       appCfg.Browser.MaxParallel,
		UserAgent:         appCfg.Browser.UserAgent,
		NavigationTimeout: time.Duration(appCfg.Browser.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init browser fetcher: %w", err)
	}
	defer docs.Close()

	texts := collyfetcher.New(collyfetcher.Config{
		UserAgent: appCfg.Browser.UserAgent,
		Timeout:   time.Duration(appCfg.HTTP.TimeoutSeconds) * time.Second,
	})

	store, closeStore, err := buildStore(ctx, appCfg.Store, clock)
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, err := buildSnapshotSink(ctx, appCfg.Blob)
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(ctx, appCfg.PubSub)
	if err != nil {
		return err
	}

	pacer := harvest.NewPacer(appCfg.HTTP.HostFloorQPS)
	status := harvest.NewStatusResolver(texts, logger.Named("status"))
	listings := harvest.NewListingParser(docs, logger.Named("listing"))
	enricher := harvest.NewEnricher(docs, status, pacer, logger.Named("enrich"),
		func(ctx context.Context) {
			_, _ = pacer.Wait(ctx, harvestCfg.LookupDelay, harvestCfg.LookupJitter)
		})

	orchestrator := harvest.NewOrchestrator(
		harvestCfg, listings, enricher, status, store, snapshots, pacer, clock,
		logger.Named("harvest"),
	)

	summary, runErr := orchestrator.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run harvest: %w", runErr)
	}

	if id, err := publisher.Publish(ctx, appCfg.PubSub.TopicName, summary); err != nil {
		logger.Warn("summary publish failed", zap.Error(err))
	} else {
		logger.Info("summary published", zap.String("message_id", id))
	}

	logger.Info("harvest finished",
		zap.Int("records", summary.Records),
		zap.Int("pages", summary.Pages))
	return nil
}

func buildStore(ctx context.Context, cfg config.StoreConfig, clock harvest.Clock) (harvest.RecordStore, func(), error) {
	switch cfg.Driver {
	case "csv":
		return csvstore.New(cfg.Dir, clock), func() {}, nil
	case "sqlite":
		s, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:   cfg.PostgresDSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func buildSnapshotSink(ctx context.Context, cfg config.BlobConfig) (harvest.BlobSink, error) {
	switch cfg.Backend {
	case "local":
		sink, err := localsink.New(localsink.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshot sink: %w", err)
		}
		return sink, nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		sink, err := gcssink.New(client, gcssink.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshot sink: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.PubSubConfig) (harvest.Publisher, error) {
	if !cfg.Enabled {
		return memorypublisher.New(), nil
	}
	client, err := pubsubclient.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}
