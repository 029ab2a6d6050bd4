package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/exclusions"
	"github.com/mailmind/contact-analytics/internal/factory"
	"github.com/mailmind/contact-analytics/internal/logging"
	"github.com/mailmind/contact-analytics/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	InputFile   string
	InputFormat string

	// Scoring flags
	FrequencyWeight float64
	RecencyWeight   float64
	LengthWeight    float64
	SentimentWeight float64
	LatencyWeight   float64
	RecencyHalfLife string

	// Store flags
	StoreType  string
	SQLitePath string
	MySQLDSN   string

	// Sentiment flags
	SentimentProvider string

	// Output flags
	TopN      int
	ContactID string
	SortBy    string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "-", "Input file (jsonl or mbox; use stdin if not specified)")
	flag.StringVar(&flags.InputFormat, "format", "jsonl", "Input format (jsonl, mbox)")

	// Scoring flags
	flag.Float64Var(&flags.FrequencyWeight, "frequency-weight", 0.25, "Weight of the message frequency component")
	flag.Float64Var(&flags.RecencyWeight, "recency-weight", 0.20, "Weight of the recency component")
	flag.Float64Var(&flags.LengthWeight, "length-weight", 0.15, "Weight of the average length component")
	flag.Float64Var(&flags.SentimentWeight, "sentiment-weight", 0.25, "Weight of the sentiment component")
	flag.Float64Var(&flags.LatencyWeight, "latency-weight", 0.15, "Weight of the reply latency component")
	flag.StringVar(&flags.RecencyHalfLife, "recency-half-life", "720h", "Half-life of the recency decay")

	// Store flags
	flag.StringVar(&flags.StoreType, "store", "memory", "Stats store (memory, sqlite, mysql)")
	flag.StringVar(&flags.SQLitePath, "sqlite-path", "./contact_stats.db", "Path to the SQLite stats database")
	flag.StringVar(&flags.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the stats database")

	// Sentiment flags
	flag.StringVar(&flags.SentimentProvider, "sentiment", "lexicon", "Sentiment provider (none, lexicon, bedrock, gemini, openai)")

	// Output flags
	flag.IntVar(&flags.TopN, "top", 0, "Truncate the ranking to the top N contacts (0 = all)")
	flag.StringVar(&flags.ContactID, "contact", "", "Print stats for a single contact instead of the ranking")
	flag.StringVar(&flags.SortBy, "sort", "friendliness", "Ranking order (friendliness, frequency, recency, engagement)")

	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
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

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set scoring configuration
	v.Set("scoring.frequency_weight", flags.FrequencyWeight)
	v.Set("scoring.recency_weight", flags.RecencyWeight)
	v.Set("scoring.length_weight", flags.LengthWeight)
	v.Set("scoring.sentiment_weight", flags.SentimentWeight)
	v.Set("scoring.latency_weight", flags.LatencyWeight)
	v.Set("scoring.recency_half_life", flags.RecencyHalfLife)

	// Set store configuration
	v.Set("store.type", flags.StoreType)
	v.Set("store.sqlite_path", flags.SQLitePath)
	if flags.MySQLDSN != "" {
		v.Set("store.mysql_dsn", flags.MySQLDSN)
	}

	// Set sentiment provider
	v.Set("sentiment.provider", flags.SentimentProvider)

	return config.NewFromViper(v)
}
