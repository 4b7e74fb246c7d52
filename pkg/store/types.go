// Package store holds the canonical client state for indexing progress and
// the active chat conversation.
package store

import (
	"github.com/grovetools/ragsync/pkg/models"
)

// State is the complete client view. Values returned by the store are deep
// copies and may be retained by the caller.
type State struct {
	Indexing     models.IndexingRun      `json:"indexing"`
	Connection   models.ConnectionStatus `json:"connection"`
	ChannelError string                  `json:"channel_error,omitempty"`

	Workspace    string               `json:"workspace,omitempty"`
	Session      *models.ChatSession  `json:"session,omitempty"`
	SessionError string               `json:"session_error,omitempty"`
	Messages     []models.ChatMessage `json:"messages"`
	ActiveStream models.StreamHandle  `json:"active_stream,omitempty"`
	Streaming    bool                 `json:"streaming"`

	// SwitchSeq identifies the latest session switch. Loads carrying an
	// older sequence are rejected.
	SwitchSeq uint64 `json:"switch_seq"`
	// Version increments once per applied dispatch.
	Version uint64 `json:"version"`
}

// Copy returns a deep copy of the state.
func (s State) Copy() State {
	if s.Session != nil {
		sess := *s.Session
		s.Session = &sess
	}
	if s.Messages != nil {
		msgs := make([]models.ChatMessage, len(s.Messages))
		for i, m := range s.Messages {
			msgs[i] = m.Clone()
		}
		s.Messages = msgs
	}
	return s
}

// ActiveMessage returns the assistant message currently being streamed.
func (s State) ActiveMessage() (models.ChatMessage, bool) {
	if !s.Streaming || len(s.Messages) == 0 {
		return models.ChatMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Change is delivered to subscribers after each applied dispatch.
type Change struct {
	Action string
	State  State
}
