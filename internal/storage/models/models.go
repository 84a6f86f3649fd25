package models

import "time"

// Document is one ingested book. Immutable once indexed; IndexedAt doubling
// as the build-or-load marker for the vector index.
type Document struct {
	ID         string
	Name       string
	Path       string
	ChunkCount int
	IndexedAt  time.Time
}

// Chunk is a contiguous span of book text mirrored from the vector index so
// the summary path can read stored chunks without embedding anything.
type Chunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

// LogEntry is one row of the append-only interaction log. Timestamp and
// Latency are seconds, matching the analytics consumers of the logs table.
type LogEntry struct {
	Timestamp float64
	Event     string
	Passage   string
	Question  string
	Score     float64
	Latency   float64
}

// Log event kinds, one per terminal turn outcome.
const (
	EventSuccess       = "success"
	EventFullSummary   = "full_summary"
	EventNoDocs        = "no_docs"
	EventUnsafe        = "unsafe"
	EventNoEvidence    = "no_evidence"
	EventMissingSource = "missing_source"
)

type Feedback struct {
	ID        int
	TurnID    string
	Helpful   bool
	Comment   string
	CreatedAt time.Time
}

// EventStats is an aggregate over the logs table for one event kind.
type EventStats struct {
	Event      string
	Count      int
	AvgScore   float64
	AvgLatency float64
}
