package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScoreConfig() ScoreConfig {
	return ScoreConfig{
		FrequencyWeight: 0.25,
		RecencyWeight:   0.20,
		LengthWeight:    0.15,
		SentimentWeight: 0.25,
		LatencyWeight:   0.15,
		RecencyHalfLife: 30 * 24 * time.Hour,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScoreConfig)
		wantErr bool
	}{
		{"valid defaults", func(cfg *ScoreConfig) {}, false},
		{
			"weights sum above one",
			func(cfg *ScoreConfig) {
				cfg.FrequencyWeight = 0.5
				cfg.RecencyWeight = 0.5
				cfg.LengthWeight = 0.5
				cfg.SentimentWeight = 0.5
				cfg.LatencyWeight = 0.5
			},
			true,
		},
		{
			"weights sum below one",
			func(cfg *ScoreConfig) { cfg.FrequencyWeight = 0.1 },
			true,
		},
		{
			"negative weight",
			func(cfg *ScoreConfig) {
				cfg.FrequencyWeight = -0.25
				cfg.RecencyWeight = 0.70
			},
			true,
		},
		{
			"zero half-life",
			func(cfg *ScoreConfig) { cfg.RecencyHalfLife = 0 },
			true,
		},
		{
			"negative half-life",
			func(cfg *ScoreConfig) { cfg.RecencyHalfLife = -time.Hour },
			true,
		},
		{
			"single weight carrying everything",
			func(cfg *ScoreConfig) {
				cfg.FrequencyWeight = 1.0
				cfg.RecencyWeight = 0
				cfg.LengthWeight = 0
				cfg.SentimentWeight = 0
				cfg.LatencyWeight = 0
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validScoreConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecayWeight(t *testing.T) {
	halfLife := 30 * 24 * time.Hour

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected float64
	}{
		{"just seen", 0, 1.0},
		{"one half-life", halfLife, 0.5},
		{"two half-lives", 2 * halfLife, 0.25},
		{"future timestamp clamps to now", -time.Hour, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DecayWeight(tt.elapsed, halfLife), 1e-9)
		})
	}
}

func TestRankStatsEmptyPopulation(t *testing.T) {
	ranked, err := RankStats(nil, validScoreConfig(), time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankStatsInvalidConfigFailsClosed(t *testing.T) {
	cfg := validScoreConfig()
	cfg.FrequencyWeight = 0.5
	cfg.RecencyWeight = 0.5
	cfg.LengthWeight = 0.5
	cfg.SentimentWeight = 0.5
	cfg.LatencyWeight = 0.5

	population := []*ContactStats{{ContactID: "a@example.com", MessagesReceived: 1}}
	ranked, err := RankStats(population, cfg, time.Now(), 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, ranked)
}

func TestRankStatsOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := validScoreConfig()

	population := []*ContactStats{
		{
			ContactID:        "quiet@example.com",
			MessagesReceived: 1,
			TotalLength:      10,
			LengthSamples:    1,
			LastSeen:         now.Add(-90 * 24 * time.Hour),
		},
		{
			ContactID:        "busy@example.com",
			MessagesReceived: 50,
			TotalLength:      5000,
			LengthSamples:    50,
			LastSeen:         now.Add(-time.Hour),
			SentimentSum:     25,
			SentimentSamples: 50,
			LatencySum:       50 * time.Minute,
			LatencySamples:   50,
		},
	}

	ranked, err := RankStats(population, cfg, now, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "busy@example.com", ranked[0].ContactID)
	assert.Equal(t, "quiet@example.com", ranked[1].ContactID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankStatsTieBreakByContactID(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-24 * time.Hour)

	// Identical stats produce identical scores; order must fall back to
	// contact ID ascending.
	population := []*ContactStats{
		{ContactID: "charlie@example.com", MessagesReceived: 3, TotalLength: 30, LengthSamples: 3, LastSeen: lastSeen},
		{ContactID: "alice@example.com", MessagesReceived: 3, TotalLength: 30, LengthSamples: 3, LastSeen: lastSeen},
		{ContactID: "bob@example.com", MessagesReceived: 3, TotalLength: 30, LengthSamples: 3, LastSeen: lastSeen},
	}

	ranked, err := RankStats(population, validScoreConfig(), now, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "alice@example.com", ranked[0].ContactID)
	assert.Equal(t, "bob@example.com", ranked[1].ContactID)
	assert.Equal(t, "charlie@example.com", ranked[2].ContactID)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, ranked[1].Score, ranked[2].Score)
}

func TestRankStatsDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := validScoreConfig()

	population := []*ContactStats{
		{ContactID: "a@example.com", MessagesReceived: 5, TotalLength: 120, LengthSamples: 6, LastSeen: now.Add(-48 * time.Hour)},
		{ContactID: "b@example.com", MessagesReceived: 2, TotalLength: 900, LengthSamples: 3, LastSeen: now.Add(-2 * time.Hour), SentimentSum: 1.5, SentimentSamples: 3},
		{ContactID: "c@example.com", MessagesReceived: 9, TotalLength: 30, LengthSamples: 9, LastSeen: now.Add(-720 * time.Hour), LatencySum: 3 * time.Hour, LatencySamples: 4},
	}

	first, err := RankStats(population, cfg, now, 0)
	require.NoError(t, err)
	second, err := RankStats(population, cfg, now, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRankStatsTopN(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	population := []*ContactStats{
		{ContactID: "a@example.com", MessagesReceived: 1, LastSeen: now},
		{ContactID: "b@example.com", MessagesReceived: 2, LastSeen: now},
		{ContactID: "c@example.com", MessagesReceived: 3, LastSeen: now},
	}

	ranked, err := RankStats(population, validScoreConfig(), now, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c@example.com", ranked[0].ContactID)
	assert.Equal(t, "b@example.com", ranked[1].ContactID)

	// topN of zero means no truncation.
	ranked, err = RankStats(population, validScoreConfig(), now, 0)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)

	// topN beyond the population returns everything.
	ranked, err = RankStats(population, validScoreConfig(), now, 10)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

func TestSortStatsBy(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	population := []*ContactStats{
		{ContactID: "b@example.com", MessagesReceived: 5, MessagesSent: 1, LastSeen: now.Add(-time.Hour)},
		{ContactID: "a@example.com", MessagesReceived: 2, MessagesSent: 9, LastSeen: now},
		{ContactID: "c@example.com", MessagesReceived: 5, MessagesSent: 0, LastSeen: now.Add(-48 * time.Hour)},
	}

	tests := []struct {
		by       string
		expected []string
	}{
		// b and c tie on received count; contact ID breaks the tie.
		{"frequency", []string{"b@example.com", "c@example.com", "a@example.com"}},
		{"recency", []string{"a@example.com", "b@example.com", "c@example.com"}},
		{"engagement", []string{"a@example.com", "b@example.com", "c@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.by, func(t *testing.T) {
			ordered, err := SortStatsBy(population, tt.by, 0)
			require.NoError(t, err)
			ids := make([]string, len(ordered))
			for i, s := range ordered {
				ids[i] = s.ContactID
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestSortStatsByUnknownStatistic(t *testing.T) {
	_, err := SortStatsBy(nil, "charisma", 0)
	assert.Error(t, err)
}

func TestSortStatsByTopN(t *testing.T) {
	population := []*ContactStats{
		{ContactID: "a@example.com", MessagesReceived: 1},
		{ContactID: "b@example.com", MessagesReceived: 3},
		{ContactID: "c@example.com", MessagesReceived: 2},
	}

	ordered, err := SortStatsBy(population, "frequency", 2)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "b@example.com", ordered[0].ContactID)
	assert.Equal(t, "c@example.com", ordered[1].ContactID)
}

func TestNormalizeZeroSpreadIsNeutral(t *testing.T) {
	var b bounds
	b.observe(42)
	assert.Equal(t, 0.5, b.normalize(42))
}

func TestNormalizeMissingPopulation(t *testing.T) {
	var b bounds
	assert.Equal(t, 0.0, b.normalize(42))
}

func TestScoreStatsMissingComponentsContributeZero(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg := validScoreConfig()

	// A contact with no sentiment or latency samples scores only on
	// frequency, recency, and length.
	stats := &ContactStats{
		ContactID:        "a@example.com",
		MessagesReceived: 4,
		TotalLength:      200,
		LengthSamples:    4,
		LastSeen:         now,
	}
	pb := computeBounds([]*ContactStats{stats})
	score := scoreStats(stats, pb, now, cfg)

	// Single-contact population: frequency and length normalize to the
	// neutral 0.5, recency is 1.0 for a contact seen just now.
	expected := cfg.FrequencyWeight*0.5 + cfg.RecencyWeight*1.0 + cfg.LengthWeight*0.5
	assert.InDelta(t, expected, score, 1e-9)
}
