package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mailmind/contact-analytics/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the StatsRepository
// interface. Each contact row carries its own mutex so independent
// contacts update in parallel; the outer RWMutex only guards map shape.
type MemoryStore struct {
	mu        sync.RWMutex
	contacts  map[string]*contactEntry
	processed map[string]struct{}
	threads   map[string][]core.ThreadMessage
	logger    *zap.Logger
}

type contactEntry struct {
	mu    sync.Mutex
	stats core.ContactStats
}

// NewMemoryStore creates a new in-memory stats store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		contacts:  make(map[string]*contactEntry),
		processed: make(map[string]struct{}),
		threads:   make(map[string][]core.ThreadMessage),
		logger:    logger,
	}
}

// Apply folds one record into the statistics table. The record ID is
// reserved up front so concurrent duplicates resolve to a single apply.
func (s *MemoryStore) Apply(ctx context.Context, record *core.EmailRecord) error {
	s.mu.Lock()
	if _, ok := s.processed[record.ID]; ok {
		s.mu.Unlock()
		return core.ErrDuplicateRecord
	}
	s.processed[record.ID] = struct{}{}

	var prior *core.ThreadMessage
	if record.ThreadID != "" {
		prior = s.recordThreadMessage(record)
	}

	deltas := core.BuildDeltas(record, prior)
	entries := make([]*contactEntry, len(deltas))
	for i, d := range deltas {
		entry, ok := s.contacts[d.ContactID]
		if !ok {
			entry = &contactEntry{stats: core.ContactStats{ContactID: d.ContactID}}
			s.contacts[d.ContactID] = entry
		}
		entries[i] = entry
	}
	s.mu.Unlock()

	// Row updates happen outside the map lock; each row serializes its
	// own read-modify-write cycle.
	for i := range deltas {
		entries[i].mu.Lock()
		entries[i].stats.ApplyDelta(&deltas[i])
		entries[i].mu.Unlock()
	}
	return nil
}

// recordThreadMessage looks up the most recent message in the record's
// thread authored by a different contact and inserts the record into the
// time-ordered thread index. Caller holds the map lock.
func (s *MemoryStore) recordThreadMessage(record *core.EmailRecord) *core.ThreadMessage {
	msgs := s.threads[record.ThreadID]

	// Insertion point keeps the index sorted by timestamp.
	i := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].Timestamp.After(record.Timestamp)
	})

	var prior *core.ThreadMessage
	for j := i - 1; j >= 0; j-- {
		if msgs[j].From != record.From {
			p := msgs[j]
			prior = &p
			break
		}
	}

	msgs = append(msgs, core.ThreadMessage{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = core.ThreadMessage{From: record.From, Timestamp: record.Timestamp}
	s.threads[record.ThreadID] = msgs

	return prior
}

// Get retrieves a copy of one contact's statistics.
func (s *MemoryStore) Get(ctx context.Context, contactID string) (*core.ContactStats, bool, error) {
	s.mu.RLock()
	entry, ok := s.contacts[contactID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	entry.mu.Lock()
	stats := entry.stats.Clone()
	entry.mu.Unlock()
	return stats, true, nil
}

// Snapshot returns a copy-on-read cut of the whole statistics table so a
// ranking pass never observes a partially updated row.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]*core.ContactStats, error) {
	s.mu.RLock()
	entries := make([]*contactEntry, 0, len(s.contacts))
	for _, entry := range s.contacts {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	snapshot := make([]*core.ContactStats, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		snapshot = append(snapshot, entry.stats.Clone())
		entry.mu.Unlock()
	}
	return snapshot, nil
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
