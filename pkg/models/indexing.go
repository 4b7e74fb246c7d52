package models

import "time"

// RunStatus is the lifecycle state of one indexing run.
type RunStatus string

const (
	RunIdle     RunStatus = "idle"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunStopped  RunStatus = "stopped"
	RunErrored  RunStatus = "errored"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunComplete, RunStopped, RunErrored:
		return true
	}
	return false
}

// ProgressState is the monotonic progress model of a run.
type ProgressState struct {
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	CurrentFile    string  `json:"current_file,omitempty"`
	ChunksTotal    int     `json:"chunks_total"`
	Percentage     float64 `json:"percentage"`
}

// Normalize clamps counters and percentage into their valid ranges.
func (p ProgressState) Normalize() ProgressState {
	if p.FilesTotal < 0 {
		p.FilesTotal = 0
	}
	if p.FilesProcessed < 0 {
		p.FilesProcessed = 0
	}
	if p.ChunksTotal < 0 {
		p.ChunksTotal = 0
	}
	if p.FilesTotal > 0 && p.FilesProcessed > p.FilesTotal {
		p.FilesProcessed = p.FilesTotal
	}
	switch {
	case p.Percentage < 0:
		p.Percentage = 0
	case p.Percentage > 100:
		p.Percentage = 100
	}
	return p
}

// IndexingRun is the state of the current (or last) indexing run.
type IndexingRun struct {
	Status       RunStatus     `json:"status"`
	Progress     ProgressState `json:"progress"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
	EmbeddingDim int           `json:"embedding_dim,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewIndexingRun returns an idle run with zero progress.
func NewIndexingRun() IndexingRun {
	return IndexingRun{Status: RunIdle}
}

// ConnectionStatus is the state of the progress channel.
type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)
