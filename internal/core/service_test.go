package core_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/adapters/store"
	"github.com/mailmind/contact-analytics/internal/core"
)

type excludeList map[string]bool

func (e excludeList) IsExcluded(address string) bool { return e[address] }

func newTestService(t *testing.T) *core.AnalyticsService {
	t.Helper()
	return core.NewAnalyticsService(store.NewMemoryStore(zap.NewNop()), nil, zap.NewNop())
}

func record(id, threadID, from string, to []string, ts time.Time, length int, sentiment *float64) *core.EmailRecord {
	return &core.EmailRecord{
		ID:         id,
		ThreadID:   threadID,
		From:       from,
		To:         to,
		Timestamp:  ts,
		BodyLength: length,
		Sentiment:  sentiment,
	}
}

func sentiment(v float64) *float64 { return &v }

func TestIngestThreeMessageConversation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	a, b := "a@example.com", "b@example.com"

	// A→B at t+100s, B→A at t+200s, A→B at t+300s, all in one thread.
	require.NoError(t, svc.Ingest(ctx, record("m1", "th", a, []string{b}, base.Add(100*time.Second), 10, sentiment(0.5))))
	require.NoError(t, svc.Ingest(ctx, record("m2", "th", b, []string{a}, base.Add(200*time.Second), 20, sentiment(0.8))))
	require.NoError(t, svc.Ingest(ctx, record("m3", "th", a, []string{b}, base.Add(300*time.Second), 5, sentiment(-0.2))))

	stats, found, err := svc.StatsFor(ctx, b)
	require.NoError(t, err)
	require.True(t, found)

	// B received two messages and sent one; all three records touch B.
	assert.Equal(t, int64(2), stats.MessageCount())
	assert.Equal(t, int64(1), stats.MessagesSent)
	assert.InDelta(t, 35.0/3.0, stats.AvgLength(), 1e-9)
	assert.InDelta(t, (0.5+0.8-0.2)/3.0, stats.AvgSentiment(), 1e-9)

	// B's reply at t+200s answers A's message at t+100s.
	assert.Equal(t, int64(1), stats.LatencySamples)
	assert.Equal(t, 100*time.Second, stats.AvgLatency())
	assert.Equal(t, base.Add(300*time.Second), stats.LastSeen)

	statsA, found, err := svc.StatsFor(ctx, a)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), statsA.MessageCount())
	assert.Equal(t, int64(2), statsA.MessagesSent)
	// A's second message at t+300s answers B's reply at t+200s.
	assert.Equal(t, 100*time.Second, statsA.AvgLatency())
}

func TestIngestIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	rec := record("m1", "", "a@example.com", []string{"b@example.com"}, ts, 10, nil)
	require.NoError(t, svc.Ingest(ctx, rec))
	require.NoError(t, svc.Ingest(ctx, rec))
	require.NoError(t, svc.Ingest(ctx, rec))

	stats, found, err := svc.StatsFor(ctx, "b@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), stats.MessageCount())
	assert.Equal(t, int64(10), stats.TotalLength)
}

func TestIngestRejectsMalformedRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  *core.EmailRecord
	}{
		{"nil record", nil},
		{"missing id", record("", "", "a@example.com", nil, ts, 10, nil)},
		{"missing from", record("m1", "", "", nil, ts, 10, nil)},
		{"zero timestamp", record("m1", "", "a@example.com", nil, time.Time{}, 10, nil)},
		{"negative length", record("m1", "", "a@example.com", nil, ts, -1, nil)},
		{"sentiment above range", record("m1", "", "a@example.com", nil, ts, 10, sentiment(1.5))},
		{"sentiment below range", record("m1", "", "a@example.com", nil, ts, 10, sentiment(-1.5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Ingest(ctx, tt.rec)
			assert.ErrorIs(t, err, core.ErrInvalidRecord)
		})
	}

	// Nothing was recorded: rejection leaves no partial state behind.
	_, found, err := svc.StatsFor(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatsForUnknownContact(t *testing.T) {
	svc := newTestService(t)

	stats, found, err := svc.StatsFor(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, stats)
}

func TestIngestBatchIsolatesBadRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	records := []*core.EmailRecord{
		record("m1", "", "a@example.com", []string{"b@example.com"}, ts, 10, nil),
		record("", "", "a@example.com", []string{"b@example.com"}, ts, 10, nil), // missing id
		record("m2", "", "a@example.com", []string{"b@example.com"}, ts.Add(time.Minute), 20, nil),
		record("m1", "", "a@example.com", []string{"b@example.com"}, ts, 10, nil), // duplicate
	}

	result, err := svc.IngestBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Ingested)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], core.ErrInvalidRecord)

	stats, found, err := svc.StatsFor(ctx, "b@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), stats.MessageCount())
}

func TestIngestSkipsExcludedSenders(t *testing.T) {
	exclusions := excludeList{"noreply@example.com": true}
	svc := core.NewAnalyticsService(store.NewMemoryStore(zap.NewNop()), exclusions, zap.NewNop())
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	err := svc.Ingest(ctx, record("m1", "", "noreply@example.com", []string{"a@example.com"}, ts, 10, nil))
	require.NoError(t, err)

	_, found, err := svc.StatsFor(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIngestDropsExcludedRecipients(t *testing.T) {
	exclusions := excludeList{"list@example.com": true}
	svc := core.NewAnalyticsService(store.NewMemoryStore(zap.NewNop()), exclusions, zap.NewNop())
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	rec := record("m1", "", "a@example.com", []string{"b@example.com", "list@example.com"}, ts, 10, nil)
	require.NoError(t, svc.Ingest(ctx, rec))

	_, found, err := svc.StatsFor(ctx, "list@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	stats, found, err := svc.StatsFor(ctx, "b@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), stats.MessageCount())

	// The caller's record must not be mutated.
	assert.Equal(t, []string{"b@example.com", "list@example.com"}, rec.To)
}

func TestMessageCountMonotonicUnderConcurrentIngest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec := record(
					fmt.Sprintf("m-%d-%d", w, i),
					"",
					fmt.Sprintf("sender%d@example.com", w),
					[]string{"hub@example.com"},
					base.Add(time.Duration(i)*time.Second),
					10,
					nil,
				)
				if err := svc.Ingest(ctx, rec); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	stats, found, err := svc.StatsFor(ctx, "hub@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(workers*perWorker), stats.MessageCount())
}

func TestRankEmptyPopulation(t *testing.T) {
	svc := newTestService(t)

	ranked, err := svc.Rank(context.Background(), testScoreConfig(), 0)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankInvalidConfig(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Ingest(ctx, record("m1", "", "a@example.com", []string{"b@example.com"}, ts, 10, nil)))

	cfg := testScoreConfig()
	cfg.SentimentWeight = 0.9

	ranked, err := svc.Rank(ctx, cfg, 0)
	require.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Nil(t, ranked)
}

func TestRankOrdersContacts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	// busy@ receives three recent messages, quiet@ one old one.
	for i := 0; i < 3; i++ {
		rec := record(fmt.Sprintf("m%d", i), "", "a@example.com", []string{"busy@example.com"}, now.Add(-time.Duration(i)*time.Hour), 50, sentiment(0.7))
		require.NoError(t, svc.Ingest(ctx, rec))
	}
	rec := record("m-old", "", "a@example.com", []string{"quiet@example.com"}, now.Add(-120*24*time.Hour), 5, sentiment(-0.4))
	require.NoError(t, svc.Ingest(ctx, rec))

	ranked, err := svc.Rank(ctx, testScoreConfig(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "busy@example.com", ranked[0].ContactID)

	last := ranked[len(ranked)-1]
	assert.Equal(t, "quiet@example.com", last.ContactID)
}

func TestRankByFrequency(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := record(fmt.Sprintf("m%d", i), "", "a@example.com", []string{"busy@example.com"}, ts.Add(time.Duration(i)*time.Hour), 10, nil)
		require.NoError(t, svc.Ingest(ctx, rec))
	}
	require.NoError(t, svc.Ingest(ctx, record("m-q", "", "a@example.com", []string{"quiet@example.com"}, ts, 10, nil)))

	ranked, err := svc.RankBy(ctx, "frequency", 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "busy@example.com", ranked[0].ContactID)
	assert.Equal(t, int64(3), ranked[0].MessageCount())

	_, err = svc.RankBy(ctx, "charisma", 0)
	assert.Error(t, err)
}

func testScoreConfig() core.ScoreConfig {
	return core.ScoreConfig{
		FrequencyWeight: 0.25,
		RecencyWeight:   0.20,
		LengthWeight:    0.15,
		SentimentWeight: 0.25,
		LatencyWeight:   0.15,
		RecencyHalfLife: 30 * 24 * time.Hour,
	}
}
