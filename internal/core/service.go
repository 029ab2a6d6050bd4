package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ExclusionPolicy decides whether an address is excluded from contact
// analytics (no-reply senders, newsletters, and similar bulk mail).
type ExclusionPolicy interface {
	IsExcluded(address string) bool
}

// AnalyticsService is the core aggregation service: it folds email
// records into per-contact statistics and serves stats and ranking
// queries over them.
type AnalyticsService struct {
	repo       StatsRepository
	exclusions ExclusionPolicy
	logger     *zap.Logger
}

// NewAnalyticsService creates a new analytics service. exclusions may be
// nil when no addresses are excluded.
func NewAnalyticsService(repo StatsRepository, exclusions ExclusionPolicy, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:       repo,
		exclusions: exclusions,
		logger:     logger,
	}
}

// validateRecord rejects malformed records before any state is touched.
func validateRecord(record *EmailRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if record.From == "" {
		return fmt.Errorf("%w: missing from contact", ErrInvalidRecord)
	}
	if record.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	if record.BodyLength < 0 {
		return fmt.Errorf("%w: negative body length (%d)", ErrInvalidRecord, record.BodyLength)
	}
	if record.Sentiment != nil && (*record.Sentiment < -1 || *record.Sentiment > 1) {
		return fmt.Errorf("%w: sentiment %g outside [-1, 1]", ErrInvalidRecord, *record.Sentiment)
	}
	return nil
}

// Ingest folds one record into the statistics table. Re-ingesting a
// record ID that was already applied is a no-op. Records from excluded
// senders are skipped; excluded recipients are dropped from the record.
func (s *AnalyticsService) Ingest(ctx context.Context, record *EmailRecord) error {
	_, err := s.ingest(ctx, record)
	if errors.Is(err, ErrDuplicateRecord) {
		return nil
	}
	return err
}

func (s *AnalyticsService) ingest(ctx context.Context, record *EmailRecord) (applied bool, err error) {
	if err := validateRecord(record); err != nil {
		return false, err
	}

	if s.exclusions != nil {
		if s.exclusions.IsExcluded(record.From) {
			s.logger.Debug("Skipping record from excluded sender",
				zap.String("record_id", record.ID),
				zap.String("from", record.From))
			return false, nil
		}
		record = s.filterRecipients(record)
	}

	if err := s.repo.Apply(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			s.logger.Debug("Record already ingested",
				zap.String("record_id", record.ID))
			return false, err
		}
		return false, fmt.Errorf("failed to apply record %s: %w", record.ID, err)
	}

	s.logger.Debug("Ingested record",
		zap.String("record_id", record.ID),
		zap.String("thread_id", record.ThreadID),
		zap.String("from", record.From),
		zap.Int("recipients", len(record.To)))
	return true, nil
}

// filterRecipients returns a copy of the record with excluded recipients
// removed. The original record is never mutated.
func (s *AnalyticsService) filterRecipients(record *EmailRecord) *EmailRecord {
	kept := make([]string, 0, len(record.To))
	for _, to := range record.To {
		if !s.exclusions.IsExcluded(to) {
			kept = append(kept, to)
		}
	}
	if len(kept) == len(record.To) {
		return record
	}
	filtered := *record
	filtered.To = kept
	return &filtered
}

// IngestBatch ingests a batch of records with per-record error isolation:
// one malformed record never aborts the rest of the batch. Storage-level
// failures abort the batch and are returned alongside the partial result.
func (s *AnalyticsService) IngestBatch(ctx context.Context, records []*EmailRecord) (BatchResult, error) {
	var res BatchResult
	for _, record := range records {
		applied, err := s.ingest(ctx, record)
		switch {
		case err == nil && applied:
			res.Ingested++
		case err == nil:
			// Excluded sender; skipped without error.
		case errors.Is(err, ErrDuplicateRecord):
			res.Duplicates++
		case errors.Is(err, ErrInvalidRecord):
			res.Rejected++
			res.Errors = append(res.Errors, err)
			s.logger.Warn("Rejected malformed record", zap.Error(err))
		default:
			return res, err
		}
	}
	return res, nil
}

// StatsFor returns a snapshot of one contact's statistics. The boolean is
// false when the contact has never been seen; that is not an error.
func (s *AnalyticsService) StatsFor(ctx context.Context, contactID string) (*ContactStats, bool, error) {
	return s.repo.Get(ctx, contactID)
}

// Rank scores every known contact and returns an ordered ranking:
// descending by friendliness score, ties broken by contact ID ascending.
// topN > 0 truncates the result. An empty population ranks to an empty
// slice; an invalid configuration fails closed with ErrInvalidConfig.
func (s *AnalyticsService) Rank(ctx context.Context, cfg ScoreConfig, topN int) ([]ScoredContact, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	population, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot contact stats: %w", err)
	}

	return RankStats(population, cfg, time.Now(), topN)
}

// RankBy orders all known contacts by one raw statistic ("frequency",
// "recency", "engagement") rather than the composite friendliness score.
// Ties break by contact ID ascending; topN > 0 truncates the result.
func (s *AnalyticsService) RankBy(ctx context.Context, by string, topN int) ([]*ContactStats, error) {
	population, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot contact stats: %w", err)
	}
	return SortStatsBy(population, by, topN)
}
