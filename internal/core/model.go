package core

import (
	"time"
)

// EmailRecord is a normalized email message as delivered by an ingest
// source. Records are immutable; re-ingesting the same ID is a no-op.
type EmailRecord struct {
	ID         string
	ThreadID   string
	From       string
	To         []string
	Timestamp  time.Time
	BodyLength int
	// Sentiment is a compound sentiment score in [-1, 1]. Nil when the
	// source did not supply one; a configured sentiment analyzer may
	// fill it in during ingest.
	Sentiment *float64
}

// ContactStats holds the running statistics for a single contact.
// All sums and counts only ever grow; averages are derived on read.
type ContactStats struct {
	ContactID        string
	MessagesSent     int64
	MessagesReceived int64
	TotalLength      int64
	LengthSamples    int64
	LastSeen         time.Time
	SentimentSum     float64
	SentimentSamples int64
	LatencySum       time.Duration
	LatencySamples   int64
}

// MessageCount is the interaction frequency used for scoring. It counts
// records where the contact appears as a recipient; sent messages are
// tracked separately in MessagesSent.
func (s *ContactStats) MessageCount() int64 {
	return s.MessagesReceived
}

// AvgLength returns the average body length across every record touching
// this contact, or 0 when no length samples exist.
func (s *ContactStats) AvgLength() float64 {
	if s.LengthSamples == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.LengthSamples)
}

// AvgSentiment returns the average sentiment in [-1, 1], or 0 when no
// record touching this contact carried a sentiment score.
func (s *ContactStats) AvgSentiment() float64 {
	if s.SentimentSamples == 0 {
		return 0
	}
	return s.SentimentSum / float64(s.SentimentSamples)
}

// AvgLatency returns the average reply latency, or 0 when this contact
// has never been observed replying within a thread.
func (s *ContactStats) AvgLatency() time.Duration {
	if s.LatencySamples == 0 {
		return 0
	}
	return s.LatencySum / time.Duration(s.LatencySamples)
}

// Clone returns a copy of the stats row, used for copy-on-read snapshots.
func (s *ContactStats) Clone() *ContactStats {
	c := *s
	return &c
}

// ScoreConfig is the weighting configuration for friendliness scoring.
// The five weights must be non-negative and sum to 1.0; scoring fails
// closed on an invalid configuration rather than normalizing silently.
type ScoreConfig struct {
	FrequencyWeight float64
	RecencyWeight   float64
	LengthWeight    float64
	SentimentWeight float64
	LatencyWeight   float64
	// RecencyHalfLife controls the exponential decay of the recency
	// component: after one half-life the component drops to 0.5.
	RecencyHalfLife time.Duration
}

// ScoredContact is one entry of a ranking snapshot.
type ScoredContact struct {
	ContactID string
	Score     float64
}

// BatchResult summarizes a batch ingest. Rejected records carry their
// errors; a bad record never aborts the rest of the batch.
type BatchResult struct {
	Ingested   int
	Duplicates int
	Rejected   int
	Errors     []error
}

// ThreadMessage is one entry of the per-thread time index used for
// reply-latency detection.
type ThreadMessage struct {
	From      string
	Timestamp time.Time
}
