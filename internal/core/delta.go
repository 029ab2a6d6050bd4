package core

import (
	"time"
)

// ContactDelta is the additive change a single email record makes to one
// participant's statistics. Stores apply one delta per unique participant
// so that a record is all-or-nothing and each row is touched exactly once.
type ContactDelta struct {
	ContactID        string
	Sent             int64
	Received         int64
	LengthDelta      int64
	LengthSamples    int64
	SentimentDelta   float64
	SentimentSamples int64
	LatencyDelta     time.Duration
	LatencySamples   int64
	SeenAt           time.Time
}

// BuildDeltas computes the per-participant deltas for a record. prior is
// the most recent message in the same thread authored by a different
// contact, or nil when there is none; when present, the elapsed time is
// credited to the record's author as reply latency.
//
// Every unique participant receives one length sample (and one sentiment
// sample when the record carries a score) per record, regardless of role,
// so average length and sentiment cover all records touching a contact.
func BuildDeltas(record *EmailRecord, prior *ThreadMessage) []ContactDelta {
	deltas := make([]ContactDelta, 0, len(record.To)+1)
	index := make(map[string]int, len(record.To)+1)

	participant := func(contactID string) *ContactDelta {
		if i, ok := index[contactID]; ok {
			return &deltas[i]
		}
		deltas = append(deltas, ContactDelta{
			ContactID:     contactID,
			LengthDelta:   int64(record.BodyLength),
			LengthSamples: 1,
			SeenAt:        record.Timestamp,
		})
		i := len(deltas) - 1
		index[contactID] = i
		if record.Sentiment != nil {
			deltas[i].SentimentDelta = *record.Sentiment
			deltas[i].SentimentSamples = 1
		}
		return &deltas[i]
	}

	sender := participant(record.From)
	sender.Sent = 1
	if prior != nil && prior.From != record.From && !record.Timestamp.Before(prior.Timestamp) {
		sender.LatencyDelta = record.Timestamp.Sub(prior.Timestamp)
		sender.LatencySamples = 1
	}

	// Recipients are deduplicated: a contact listed twice still receives
	// the record once.
	for _, to := range record.To {
		if p := participant(to); p.Received == 0 {
			p.Received = 1
		}
	}

	return deltas
}

// ApplyDelta folds a delta into the stats row in place. Callers must hold
// whatever lock guards the row.
func (s *ContactStats) ApplyDelta(d *ContactDelta) {
	s.MessagesSent += d.Sent
	s.MessagesReceived += d.Received
	s.TotalLength += d.LengthDelta
	s.LengthSamples += d.LengthSamples
	s.SentimentSum += d.SentimentDelta
	s.SentimentSamples += d.SentimentSamples
	s.LatencySum += d.LatencyDelta
	s.LatencySamples += d.LatencySamples
	if d.SeenAt.After(s.LastSeen) {
		s.LastSeen = d.SeenAt
	}
}
