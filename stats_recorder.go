package main

import (
	"sync"
	"time"
)

// statsRetention bounds how long closed-stream entries are kept.
const statsRetention = 28 * 24 * time.Hour

// ClosedStreamStats is one completed Stream's analytics record: just
// enough to aggregate country, client, and duration statistics without
// retaining the stream's source IP once its country has been resolved.
type ClosedStreamStats struct {
	Country         string
	UserAgent       string
	DurationSeconds float64
	EndedAt         time.Time
}

// StatsRecorder is an in-memory ring of recent ClosedStreamStats,
// pruned by age. The teacher persists session activity to disk and
// reads it back for its public-stats endpoint; this daemon has no
// durable activity log, so the recorder keeps the same retention
// window purely in memory.
type StatsRecorder struct {
	mu      sync.Mutex
	entries []ClosedStreamStats
}

func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{}
}

// Record appends entry and prunes anything older than statsRetention.
func (r *StatsRecorder) Record(entry ClosedStreamStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	r.prune(time.Now())
}

func (r *StatsRecorder) prune(now time.Time) {
	cutoff := now.Add(-statsRetention)
	i := 0
	for _, e := range r.entries {
		if e.EndedAt.After(cutoff) {
			r.entries[i] = e
			i++
		}
	}
	r.entries = r.entries[:i]
}

// Snapshot returns every entry recorded since since.
func (r *StatsRecorder) Snapshot(since time.Time) []ClosedStreamStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(time.Now())
	out := make([]ClosedStreamStats, 0, len(r.entries))
	for _, e := range r.entries {
		if e.EndedAt.After(since) {
			out = append(out, e)
		}
	}
	return out
}
