package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mailmind/contact-analytics/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the StatsRepository
// interface. Every record applies inside a single transaction, which
// gives both idempotency (processed_records uniqueness) and the
// all-or-nothing guarantee per record.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed initializes) a SQLite stats store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	// SQLite's default busy timeout gives up too quickly under
	// concurrent sync workers.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=60000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS contact_stats (
			contact_id TEXT PRIMARY KEY,
			messages_sent INTEGER NOT NULL DEFAULT 0,
			messages_received INTEGER NOT NULL DEFAULT 0,
			total_length INTEGER NOT NULL DEFAULT 0,
			length_samples INTEGER NOT NULL DEFAULT 0,
			last_seen_ns INTEGER NOT NULL DEFAULT 0,
			sentiment_sum REAL NOT NULL DEFAULT 0,
			sentiment_samples INTEGER NOT NULL DEFAULT 0,
			latency_sum_ns INTEGER NOT NULL DEFAULT 0,
			latency_samples INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS processed_records (
			record_id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS thread_messages (
			thread_id TEXT NOT NULL,
			sent_at_ns INTEGER NOT NULL,
			from_contact TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thread_time ON thread_messages(thread_id, sent_at_ns)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Apply folds one record into the statistics table.
func (s *SQLiteStore) Apply(ctx context.Context, record *core.EmailRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_records (record_id) VALUES (?)`, record.ID)
	if err != nil {
		return fmt.Errorf("failed to reserve record id: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check record reservation: %w", err)
	} else if n == 0 {
		return core.ErrDuplicateRecord
	}

	var prior *core.ThreadMessage
	if record.ThreadID != "" {
		prior, err = s.priorThreadMessage(ctx, tx, record)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_messages (thread_id, sent_at_ns, from_contact) VALUES (?, ?, ?)`,
			record.ThreadID, record.Timestamp.UnixNano(), record.From); err != nil {
			return fmt.Errorf("failed to index thread message: %w", err)
		}
	}

	for _, d := range core.BuildDeltas(record, prior) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contact_stats (
				contact_id, messages_sent, messages_received,
				total_length, length_samples, last_seen_ns,
				sentiment_sum, sentiment_samples, latency_sum_ns, latency_samples
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(contact_id) DO UPDATE SET
				messages_sent = messages_sent + excluded.messages_sent,
				messages_received = messages_received + excluded.messages_received,
				total_length = total_length + excluded.total_length,
				length_samples = length_samples + excluded.length_samples,
				last_seen_ns = MAX(last_seen_ns, excluded.last_seen_ns),
				sentiment_sum = sentiment_sum + excluded.sentiment_sum,
				sentiment_samples = sentiment_samples + excluded.sentiment_samples,
				latency_sum_ns = latency_sum_ns + excluded.latency_sum_ns,
				latency_samples = latency_samples + excluded.latency_samples
		`, d.ContactID, d.Sent, d.Received, d.LengthDelta, d.LengthSamples,
			d.SeenAt.UnixNano(), d.SentimentDelta, d.SentimentSamples,
			int64(d.LatencyDelta), d.LatencySamples); err != nil {
			return fmt.Errorf("failed to update stats for %s: %w", d.ContactID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// priorThreadMessage finds the most recent message in the record's thread
// authored by a different contact, at or before the record's timestamp.
func (s *SQLiteStore) priorThreadMessage(ctx context.Context, tx *sql.Tx, record *core.EmailRecord) (*core.ThreadMessage, error) {
	var from string
	var sentAtNs int64
	err := tx.QueryRowContext(ctx, `
		SELECT from_contact, sent_at_ns
		FROM thread_messages
		WHERE thread_id = ? AND from_contact != ? AND sent_at_ns <= ?
		ORDER BY sent_at_ns DESC
		LIMIT 1
	`, record.ThreadID, record.From, record.Timestamp.UnixNano()).Scan(&from, &sentAtNs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query thread index: %w", err)
	}
	return &core.ThreadMessage{From: from, Timestamp: time.Unix(0, sentAtNs)}, nil
}

// Get retrieves one contact's statistics.
func (s *SQLiteStore) Get(ctx context.Context, contactID string) (*core.ContactStats, bool, error) {
	stats, err := scanStats(s.db.QueryRowContext(ctx, `
		SELECT contact_id, messages_sent, messages_received,
			total_length, length_samples, last_seen_ns,
			sentiment_sum, sentiment_samples, latency_sum_ns, latency_samples
		FROM contact_stats
		WHERE contact_id = ?
	`, contactID))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query contact stats: %w", err)
	}
	return stats, true, nil
}

// Snapshot returns the whole statistics table from a single transaction
// so ranking sees a coherent cut while ingestion continues.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]*core.ContactStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT contact_id, messages_sent, messages_received,
			total_length, length_samples, last_seen_ns,
			sentiment_sum, sentiment_samples, latency_sum_ns, latency_samples
		FROM contact_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact stats: %w", err)
	}
	defer rows.Close()

	var snapshot []*core.ContactStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact stats: %w", err)
		}
		snapshot = append(snapshot, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact stats: %w", err)
	}
	return snapshot, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(row rowScanner) (*core.ContactStats, error) {
	var stats core.ContactStats
	var lastSeenNs, latencySumNs int64
	if err := row.Scan(
		&stats.ContactID, &stats.MessagesSent, &stats.MessagesReceived,
		&stats.TotalLength, &stats.LengthSamples, &lastSeenNs,
		&stats.SentimentSum, &stats.SentimentSamples, &latencySumNs, &stats.LatencySamples,
	); err != nil {
		return nil, err
	}
	if lastSeenNs > 0 {
		stats.LastSeen = time.Unix(0, lastSeenNs)
	}
	stats.LatencySum = time.Duration(latencySumNs)
	return &stats, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
