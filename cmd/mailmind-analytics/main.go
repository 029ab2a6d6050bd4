package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/di"
	"github.com/mailmind/contact-analytics/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	source ports.RecordSource,
	service *core.AnalyticsService,
	repo core.StatsRepository,
	analyzer core.SentimentAnalyzer,
) error {
	defer logger.Sync()

	scoring, err := cfg.GetScoring()
	if err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
		return err
	}
	if err := core.ValidateConfig(scoring); err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
		return err
	}

	// Start the ingest source
	if err := source.Start(); err != nil {
		logger.Fatal("Failed to start ingest source", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go consume(ctx, logger, source, service, done)

	logFrequency, err := cfg.GetDuration("ranking.log_frequency")
	if err != nil {
		logger.Fatal("Invalid ranking log frequency", zap.Error(err))
		return err
	}
	topN := cfg.GetInt("ranking.top_n")
	go logRankings(ctx, logger, service, scoring, topN, logFrequency)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the ingest source and drain the record channel
	if err := source.Stop(); err != nil {
		logger.Error("Failed to stop ingest source", zap.Error(err))
	}
	cancel()
	<-done

	// Close any resources that need closing
	if closer, ok := analyzer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sentiment analyzer", zap.Error(err))
		}
	}
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close stats store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// consume feeds records from the source into the analytics service until
// the record channel is closed or the context is cancelled.
func consume(
	ctx context.Context,
	logger *zap.Logger,
	source ports.RecordSource,
	service *core.AnalyticsService,
	done chan<- struct{},
) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-source.Records():
			if !ok {
				logger.Info("Ingest source drained")
				return
			}
			if err := service.Ingest(ctx, record); err != nil {
				logger.Warn("Failed to ingest record",
					zap.String("record_id", record.ID),
					zap.Error(err))
			}
		}
	}
}

// logRankings periodically logs the current top contacts.
func logRankings(
	ctx context.Context,
	logger *zap.Logger,
	service *core.AnalyticsService,
	scoring core.ScoreConfig,
	topN int,
	frequency time.Duration,
) {
	if frequency <= 0 {
		return
	}

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ranked, err := service.Rank(ctx, scoring, topN)
			if err != nil {
				logger.Error("Failed to compute contact ranking", zap.Error(err))
				continue
			}
			for i, contact := range ranked {
				logger.Info("Contact ranking",
					zap.Int("rank", i+1),
					zap.String("contact", contact.ContactID),
					zap.Float64("score", contact.Score))
			}
		}
	}
}
