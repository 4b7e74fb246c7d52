package store

import (
	"time"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/progress"
)

// Action is a proposed state transition.
type Action interface {
	Name() string
}

// ProgressReceived carries one event from the progress channel.
type ProgressReceived struct {
	Event progress.Event
}

// IndexingHydrated seeds the run from the indexing status endpoint.
type IndexingHydrated struct {
	Running bool
	Data    map[string]interface{}
}

// ConnectionChanged reports a progress channel transition.
type ConnectionChanged struct {
	Status models.ConnectionStatus
}

// ChannelExhausted reports that reconnects stopped after Attempts tries.
type ChannelExhausted struct {
	Attempts int
	Reason   string
}

// StreamStarted opens a new exchange: the user's query and an empty assistant
// placeholder that becomes the streaming target.
type StreamStarted struct {
	Handle models.StreamHandle
	Query  string
	At     time.Time
}

// SourcesReceived attaches citations to the streaming answer.
type SourcesReceived struct {
	Handle  models.StreamHandle
	Sources []models.SourceRef
}

// ContentReceived appends a delta to the streaming answer.
type ContentReceived struct {
	Handle models.StreamHandle
	Delta  string
}

// StreamFailed ends a stream with an error. Received is set once any record
// of the response was read.
type StreamFailed struct {
	Handle   models.StreamHandle
	Reason   string
	Received bool
}

// StreamCompleted ends a stream normally.
type StreamCompleted struct {
	Handle models.StreamHandle
}

// SessionSwitching invalidates the active stream and clears the visible
// conversation ahead of a session load.
type SessionSwitching struct {
	Seq       uint64
	Workspace string
}

// SessionLoaded replaces the conversation with a session's history.
type SessionLoaded struct {
	Seq      uint64
	Session  models.ChatSession
	Messages []models.ChatMessage
}

// SessionLoadFailed records a failed session load.
type SessionLoadFailed struct {
	Seq    uint64
	Reason string
}

func (ProgressReceived) Name() string  { return "progress_received" }
func (IndexingHydrated) Name() string  { return "indexing_hydrated" }
func (ConnectionChanged) Name() string { return "connection_changed" }
func (ChannelExhausted) Name() string  { return "channel_exhausted" }
func (StreamStarted) Name() string     { return "stream_started" }
func (SourcesReceived) Name() string   { return "sources_received" }
func (ContentReceived) Name() string   { return "content_received" }
func (StreamFailed) Name() string      { return "stream_failed" }
func (StreamCompleted) Name() string   { return "stream_completed" }
func (SessionSwitching) Name() string  { return "session_switching" }
func (SessionLoaded) Name() string     { return "session_loaded" }
func (SessionLoadFailed) Name() string { return "session_load_failed" }
