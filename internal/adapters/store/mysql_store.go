package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mailmind/contact-analytics/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the StatsRepository interface,
// for deployments where sync workers on several hosts share one
// statistics table. Semantics match SQLiteStore: one transaction per
// record, idempotency via the processed_records primary key.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore opens (and if needed initializes) a MySQL stats store.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS contact_stats (
			contact_id VARCHAR(255) PRIMARY KEY,
			messages_sent BIGINT NOT NULL DEFAULT 0,
			messages_received BIGINT NOT NULL DEFAULT 0,
			total_length BIGINT NOT NULL DEFAULT 0,
			length_samples BIGINT NOT NULL DEFAULT 0,
			last_seen_ns BIGINT NOT NULL DEFAULT 0,
			sentiment_sum DOUBLE NOT NULL DEFAULT 0,
			sentiment_samples BIGINT NOT NULL DEFAULT 0,
			latency_sum_ns BIGINT NOT NULL DEFAULT 0,
			latency_samples BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS processed_records (
			record_id VARCHAR(255) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS thread_messages (
			thread_id VARCHAR(255) NOT NULL,
			sent_at_ns BIGINT NOT NULL,
			from_contact VARCHAR(255) NOT NULL,
			INDEX idx_thread_time (thread_id, sent_at_ns)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Apply folds one record into the statistics table.
func (s *MySQLStore) Apply(ctx context.Context, record *core.EmailRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO processed_records (record_id) VALUES (?)`, record.ID)
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
			ON DUPLICATE KEY UPDATE
				messages_sent = messages_sent + VALUES(messages_sent),
				messages_received = messages_received + VALUES(messages_received),
				total_length = total_length + VALUES(total_length),
				length_samples = length_samples + VALUES(length_samples),
				last_seen_ns = GREATEST(last_seen_ns, VALUES(last_seen_ns)),
				sentiment_sum = sentiment_sum + VALUES(sentiment_sum),
				sentiment_samples = sentiment_samples + VALUES(sentiment_samples),
				latency_sum_ns = latency_sum_ns + VALUES(latency_sum_ns),
				latency_samples = latency_samples + VALUES(latency_samples)
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
func (s *MySQLStore) priorThreadMessage(ctx context.Context, tx *sql.Tx, record *core.EmailRecord) (*core.ThreadMessage, error) {
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
func (s *MySQLStore) Get(ctx context.Context, contactID string) (*core.ContactStats, bool, error) {
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

// Snapshot returns the whole statistics table from a single REPEATABLE
// READ transaction so ranking sees a coherent cut.
func (s *MySQLStore) Snapshot(ctx context.Context) ([]*core.ContactStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
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

// Close closes the underlying database.
func (s *MySQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL database: %w", err)
	}
	return nil
}
