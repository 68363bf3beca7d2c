package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/rainarea-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rainarea-service/internal/adapter/kafka"
	"github.com/couchcryptid/rainarea-service/internal/adapter/radar"
	"github.com/couchcryptid/rainarea-service/internal/config"
	"github.com/couchcryptid/rainarea-service/internal/domain"
	"github.com/couchcryptid/rainarea-service/internal/observability"
	"github.com/couchcryptid/rainarea-service/internal/pipeline"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	region, err := loadRegion(cfg.RegionBoundaryFile)
	if err != nil {
		logger.Error("failed to load region boundary", "error", err)
		os.Exit(1)
	}

	client := radar.NewClient(cfg, metrics, logger)
	history := radar.NewHistoryCache(cfg.HistoryCacheSize)
	vectorizer := domain.NewVectorizer(region, domain.DefaultRamp)

	refresher := pipeline.New(client, vectorizer, history, pipeline.Settings{
		Interval:      cfg.RefreshInterval,
		FallbackSteps: cfg.FallbackSteps,
		HistoryRate:   cfg.HistoryRateLimit,
		HistoryBurst:  cfg.HistoryRateBurst,
	}, logger, metrics)

	// Snapshot events are feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		refresher.SetPublisher(writer)
		logger.Info("snapshot events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("snapshot events disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, logger)
	srv.SetShutdownTimeout(cfg.ShutdownTimeout)

	root := suture.New("rainarea", suture.Spec{
		EventHook:        (&sutureslog.Handler{Logger: logger}).MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          cfg.ShutdownTimeout,
	})
	root.Add(refresher)
	root.Add(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("rainarea service starting",
		"mirrors", len(cfg.RadarBaseURLs),
		"refresh_interval", cfg.RefreshInterval,
		"fallback_steps", cfg.FallbackSteps,
	)
	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("supervisor stopped", "error", err)
	}

	logger.Info("shutting down")
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// loadRegion returns the default frame, swapping in a region-of-interest
// outline from path when one is configured.
func loadRegion(path string) (domain.Region, error) {
	region := domain.DefaultRegion()
	if path == "" {
		return region, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Region{}, fmt.Errorf("read %s: %w", path, err)
	}
	boundary, err := domain.ParseBoundary(data)
	if err != nil {
		return domain.Region{}, err
	}
	return region.WithBoundary(boundary), nil
}
