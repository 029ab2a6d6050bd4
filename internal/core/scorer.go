package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const weightSumEpsilon = 1e-9

// ValidateConfig checks a scoring configuration. The five component
// weights must be non-negative and sum to 1.0; the half-life must be
// positive. Invalid configurations are never normalized or defaulted.
func ValidateConfig(cfg ScoreConfig) error {
	weights := map[string]float64{
		"frequency_weight": cfg.FrequencyWeight,
		"recency_weight":   cfg.RecencyWeight,
		"length_weight":    cfg.LengthWeight,
		"sentiment_weight": cfg.SentimentWeight,
		"latency_weight":   cfg.LatencyWeight,
	}
	sum := 0.0
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: %s is negative (%g)", ErrInvalidConfig, name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("%w: weights sum to %g, want 1.0", ErrInvalidConfig, sum)
	}
	if cfg.RecencyHalfLife <= 0 {
		return fmt.Errorf("%w: recency_half_life must be positive", ErrInvalidConfig)
	}
	return nil
}

// DecayWeight computes exp(-ln2 * elapsed / halfLife): 1.0 for a contact
// seen just now, 0.5 after one half-life.
func DecayWeight(elapsed, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-math.Ln2 * float64(elapsed) / float64(halfLife))
}

// bounds holds the population min/max of one raw statistic, computed at
// query time over contacts that have samples for it.
type bounds struct {
	min, max float64
	seen     bool
}

func (b *bounds) observe(v float64) {
	if !b.seen {
		b.min, b.max, b.seen = v, v, true
		return
	}
	if v < b.min {
		b.min = v
	}
	if v > b.max {
		b.max = v
	}
}

// normalize maps a raw value into [0, 1] relative to the population.
// A population with zero spread maps every sampled value to 0.5 so the
// component stays deterministic and neutral.
func (b *bounds) normalize(v float64) float64 {
	if !b.seen {
		return 0
	}
	if b.max == b.min {
		return 0.5
	}
	return (v - b.min) / (b.max - b.min)
}

// populationBounds pre-computes normalization bounds across the whole
// stats snapshot. Contacts without sentiment or latency samples do not
// contribute to those bounds.
type populationBounds struct {
	frequency  bounds
	length     bounds
	sentiment  bounds
	invLatency bounds
}

func computeBounds(population []*ContactStats) populationBounds {
	var pb populationBounds
	for _, s := range population {
		pb.frequency.observe(float64(s.MessageCount()))
		if s.LengthSamples > 0 {
			pb.length.observe(s.AvgLength())
		}
		if s.SentimentSamples > 0 {
			// Map [-1, 1] to [0, 1] before min-max.
			pb.sentiment.observe((s.AvgSentiment() + 1) / 2)
		}
		if s.LatencySamples > 0 && s.AvgLatency() > 0 {
			pb.invLatency.observe(1 / s.AvgLatency().Seconds())
		}
	}
	return pb
}

// scoreStats computes the composite friendliness score for one contact
// against pre-computed population bounds. Components the contact has no
// samples for contribute zero.
func scoreStats(s *ContactStats, pb populationBounds, now time.Time, cfg ScoreConfig) float64 {
	score := cfg.FrequencyWeight * pb.frequency.normalize(float64(s.MessageCount()))
	score += cfg.RecencyWeight * DecayWeight(now.Sub(s.LastSeen), cfg.RecencyHalfLife)
	if s.LengthSamples > 0 {
		score += cfg.LengthWeight * pb.length.normalize(s.AvgLength())
	}
	if s.SentimentSamples > 0 {
		score += cfg.SentimentWeight * pb.sentiment.normalize((s.AvgSentiment()+1)/2)
	}
	if s.LatencySamples > 0 && s.AvgLatency() > 0 {
		score += cfg.LatencyWeight * pb.invLatency.normalize(1/s.AvgLatency().Seconds())
	}
	return score
}

// RankStats scores and orders a stats snapshot: descending by score,
// ties broken by contact ID ascending. topN > 0 truncates the result.
// Identical populations and configs always yield identical output.
func RankStats(population []*ContactStats, cfg ScoreConfig, now time.Time, topN int) ([]ScoredContact, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	pb := computeBounds(population)
	ranked := make([]ScoredContact, 0, len(population))
	for _, s := range population {
		ranked = append(ranked, ScoredContact{
			ContactID: s.ContactID,
			Score:     scoreStats(s, pb, now, cfg),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ContactID < ranked[j].ContactID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// SortStatsBy orders a stats snapshot by one raw statistic instead of the
// composite score: "frequency" (message count), "recency" (most recently
// seen first), or "engagement" (messages sent plus received). Ties break
// by contact ID ascending; topN > 0 truncates the result.
func SortStatsBy(population []*ContactStats, by string, topN int) ([]*ContactStats, error) {
	var more func(a, b *ContactStats) bool
	switch by {
	case "frequency":
		more = func(a, b *ContactStats) bool { return a.MessageCount() > b.MessageCount() }
	case "recency":
		more = func(a, b *ContactStats) bool { return a.LastSeen.After(b.LastSeen) }
	case "engagement":
		more = func(a, b *ContactStats) bool {
			return a.MessagesSent+a.MessagesReceived > b.MessagesSent+b.MessagesReceived
		}
	default:
		return nil, fmt.Errorf("unknown ranking statistic: %s", by)
	}

	ordered := make([]*ContactStats, len(population))
	copy(ordered, population)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if more(a, b) {
			return true
		}
		if more(b, a) {
			return false
		}
		return a.ContactID < b.ContactID
	})

	if topN > 0 && len(ordered) > topN {
		ordered = ordered[:topN]
	}
	return ordered, nil
}
