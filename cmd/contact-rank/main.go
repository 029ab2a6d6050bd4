package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/adapters/source"
	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/di"
	"github.com/mailmind/contact-analytics/internal/ports"
	"github.com/mailmind/contact-analytics/internal/utils"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	cfg *config.Config,
	service *core.AnalyticsService,
	repo core.StatsRepository,
	analyzer core.SentimentAnalyzer,
	textProcessor *utils.TextProcessor,
) error {
	defer logger.Sync()
	defer func() {
		if closer, ok := analyzer.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close sentiment analyzer", zap.Error(err))
			}
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close stats store", zap.Error(err))
		}
	}()

	scoring, err := cfg.GetScoring()
	if err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
		return err
	}
	if err := core.ValidateConfig(scoring); err != nil {
		logger.Fatal("Invalid scoring configuration", zap.Error(err))
		return err
	}

	recordSource, err := buildSource(flags, logger, analyzer, textProcessor)
	if err != nil {
		logger.Fatal("Failed to open input", zap.Error(err), zap.String("file", flags.InputFile))
		return err
	}

	ctx := context.Background()

	if err := recordSource.Start(); err != nil {
		logger.Fatal("Failed to start ingest source", zap.Error(err))
		return err
	}
	defer recordSource.Stop()

	startTime := time.Now()
	result := ingestAll(ctx, logger, recordSource, service)
	duration := time.Since(startTime)

	fmt.Printf("\n=== Ingest Summary ===\n")
	fmt.Printf("Ingested: %d\n", result.Ingested)
	fmt.Printf("Duplicates: %d\n", result.Duplicates)
	fmt.Printf("Rejected: %d\n", result.Rejected)
	fmt.Printf("Processing time: %v\n", duration)

	if flags.ContactID != "" {
		return printContact(ctx, service, flags.ContactID)
	}
	if flags.SortBy != "friendliness" {
		return printStatsRanking(ctx, service, flags.SortBy, flags.TopN)
	}
	return printRanking(ctx, service, scoring, flags.TopN)
}

// buildSource opens the requested input as a record source. "-" reads
// JSONL from stdin.
func buildSource(
	flags *di.CLIFlags,
	logger *zap.Logger,
	analyzer core.SentimentAnalyzer,
	textProcessor *utils.TextProcessor,
) (ports.RecordSource, error) {
	switch flags.InputFormat {
	case "jsonl":
		return source.NewJSONLSource(analyzer, textProcessor, logger, flags.InputFile)
	case "mbox":
		if flags.InputFile == "" || flags.InputFile == "-" {
			return nil, fmt.Errorf("mbox input requires a file path")
		}
		converter := source.NewConverter(analyzer, textProcessor, logger)
		return source.NewMboxSource(converter, logger, flags.InputFile), nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", flags.InputFormat)
	}
}

// ingestAll drains the record source into the analytics service and
// tallies the outcome per record.
func ingestAll(
	ctx context.Context,
	logger *zap.Logger,
	recordSource ports.RecordSource,
	service *core.AnalyticsService,
) core.BatchResult {
	var records []*core.EmailRecord
	for record := range recordSource.Records() {
		records = append(records, record)
	}

	result, err := service.IngestBatch(ctx, records)
	if err != nil {
		logger.Error("Batch ingest failed", zap.Error(err))
	}
	for _, ingestErr := range result.Errors {
		logger.Warn("Rejected record", zap.Error(ingestErr))
	}
	return result
}

// printContact prints the aggregated stats for a single contact.
func printContact(ctx context.Context, service *core.AnalyticsService, contactID string) error {
	stats, found, err := service.StatsFor(ctx, contactID)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Contact Stats ===\n")
	fmt.Printf("Contact: %s\n", contactID)
	if !found {
		fmt.Printf("No messages recorded for this contact\n")
		return nil
	}

	fmt.Printf("Messages received: %d\n", stats.MessageCount())
	fmt.Printf("Messages sent: %d\n", stats.MessagesSent)
	fmt.Printf("Average length: %.1f words\n", stats.AvgLength())
	fmt.Printf("Last seen: %s\n", stats.LastSeen.Format(time.RFC3339))
	if stats.SentimentSamples > 0 {
		fmt.Printf("Average sentiment: %.4f\n", stats.AvgSentiment())
	} else {
		fmt.Printf("Average sentiment: n/a\n")
	}
	if stats.LatencySamples > 0 {
		fmt.Printf("Average reply latency: %v\n", stats.AvgLatency())
	} else {
		fmt.Printf("Average reply latency: n/a\n")
	}
	return nil
}

// printRanking prints the friendliness ranking.
func printRanking(ctx context.Context, service *core.AnalyticsService, scoring core.ScoreConfig, topN int) error {
	ranked, err := service.Rank(ctx, scoring, topN)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Contact Ranking ===\n")
	if len(ranked) == 0 {
		fmt.Printf("No contacts recorded\n")
		return nil
	}
	for i, contact := range ranked {
		fmt.Printf("%3d. %-40s %.4f\n", i+1, contact.ContactID, contact.Score)
	}
	return nil
}

// printStatsRanking prints the ranking ordered by a single raw statistic.
func printStatsRanking(ctx context.Context, service *core.AnalyticsService, by string, topN int) error {
	ranked, err := service.RankBy(ctx, by, topN)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Contact Ranking (%s) ===\n", by)
	if len(ranked) == 0 {
		fmt.Printf("No contacts recorded\n")
		return nil
	}
	for i, stats := range ranked {
		var metric string
		switch by {
		case "frequency":
			metric = fmt.Sprintf("%d received", stats.MessageCount())
		case "recency":
			metric = stats.LastSeen.Format(time.RFC3339)
		case "engagement":
			metric = fmt.Sprintf("%d messages", stats.MessagesSent+stats.MessagesReceived)
		}
		fmt.Printf("%3d. %-40s %s\n", i+1, stats.ContactID, metric)
	}
	return nil
}
