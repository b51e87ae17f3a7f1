package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rpp-data-etl-service/internal/adapter/bea"
	kafkaadapter "github.com/couchcryptid/rpp-data-etl-service/internal/adapter/kafka"
	s3adapter "github.com/couchcryptid/rpp-data-etl-service/internal/adapter/s3"
	"github.com/couchcryptid/rpp-data-etl-service/internal/artifact"
	"github.com/couchcryptid/rpp-data-etl-service/internal/config"
	"github.com/couchcryptid/rpp-data-etl-service/internal/database"
	"github.com/couchcryptid/rpp-data-etl-service/internal/export"
	"github.com/couchcryptid/rpp-data-etl-service/internal/observability"
	"github.com/couchcryptid/rpp-data-etl-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// app carries the dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
		clock:   clockwork.NewRealClock(),
	}, nil
}

func (a *app) fetch(ctx context.Context) error {
	if err := a.cfg.ValidateFetch(); err != nil {
		return err
	}
	client := bea.NewClient(a.cfg.BEAAPIKey, a.cfg.BEABaseURL, a.cfg.FetchTimeout, a.metrics, a.logger)
	fetcher := bea.NewFetcher(client, artifact.NewStore(a.cfg.RawDir), a.clock, a.cfg.FetchDelay, a.metrics, a.logger)
	_, err := fetcher.FetchAll(ctx)
	return err
}

func (a *app) load(ctx context.Context) error {
	loader := pipeline.NewLoader(artifact.NewStore(a.cfg.RawDir), a.cfg.DBPath, a.metrics, a.logger)
	_, err := loader.Load(ctx)
	return err
}

func (a *app) export(ctx context.Context) error {
	exporter := export.NewExporter(a.cfg.DBPath, a.cfg.SeedDir, a.cfg.ExportChunkSize, a.clock, a.metrics, a.logger)
	_, err := exporter.Export(ctx)
	return err
}

// publish uploads the verified bundle when a bucket is configured, then
// announces it when brokers are configured.
func (a *app) publish(ctx context.Context) error {
	if !a.cfg.PublishEnabled() {
		a.logger.Info("publish skipped, no bucket or brokers configured")
		return nil
	}

	manifest, err := export.Verify(a.cfg.SeedDir)
	if err != nil {
		return fmt.Errorf("verify bundle: %w", err)
	}

	location := a.cfg.SeedDir
	if a.cfg.S3Bucket != "" {
		uploader, err := s3adapter.New(ctx, s3adapter.Config{
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			PathStyle: a.cfg.S3PathStyle,
			Prefix:    a.cfg.S3Prefix,
		}, a.metrics, a.logger)
		if err != nil {
			return err
		}
		key, err := uploader.Upload(ctx, a.cfg.SeedDir, manifest)
		if err != nil {
			return err
		}
		location = "s3://" + a.cfg.S3Bucket + "/" + key
	}

	if len(a.cfg.KafkaBrokers) > 0 {
		notifier := kafkaadapter.NewNotifier(a.cfg.KafkaBrokers, a.cfg.KafkaBundleTopic, a.metrics, a.logger)
		announceErr := notifier.Announce(ctx, manifest, location)
		if err := errors.Join(announceErr, notifier.Close()); err != nil {
			return err
		}
	}
	return nil
}

// seed verifies a bundle and applies it to the store at dbPath, creating the
// file when needed.
func (a *app) seed(ctx context.Context, bundleDir, dbPath string, verify bool) error {
	if verify {
		if _, err := export.Verify(bundleDir); err != nil {
			return err
		}
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	n, err := export.Apply(ctx, db, bundleDir)
	if err != nil {
		return err
	}
	a.logger.Info("bundle applied", "files", humanize.Comma(int64(n)), "bundle", bundleDir, "db_path", dbPath)
	return nil
}

func (a *app) stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: "fetch", Run: a.fetch},
		{Name: "load", Run: a.load},
		{Name: "export", Run: a.export},
		{Name: "publish", Run: a.publish},
	}
}
