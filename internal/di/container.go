package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/exclusions"
	"github.com/mailmind/contact-analytics/internal/factory"
	"github.com/mailmind/contact-analytics/internal/logging"
	"github.com/mailmind/contact-analytics/internal/ports"
	"github.com/mailmind/contact-analytics/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSentimentFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register stats repository
	if err := container.Provide(func(f *factory.StoreFactory) (core.StatsRepository, error) {
		return f.CreateStatsRepository()
	}); err != nil {
		return nil, err
	}

	// Register sentiment analyzer
	if err := container.Provide(func(f *factory.SentimentFactory) (core.SentimentAnalyzer, error) {
		return f.CreateSentimentAnalyzer()
	}); err != nil {
		return nil, err
	}

	// Register exclusion checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.ExclusionPolicy {
		exclusionCfg := cfg.GetExclusions()
		return exclusions.NewChecker(
			exclusionCfg.Domains,
			exclusionCfg.Addresses,
			exclusionCfg.Prefixes,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register analytics service
	if err := container.Provide(core.NewAnalyticsService); err != nil {
		return nil, err
	}

	// Register record source
	if err := container.Provide(func(f *factory.SourceFactory) (ports.RecordSource, error) {
		return f.CreateRecordSource()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
