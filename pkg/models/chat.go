package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// SourceKind is the retrieval method that produced a citation.
type SourceKind string

const (
	SourceVector  SourceKind = "vector"
	SourceKeyword SourceKind = "keyword"
	SourceContext SourceKind = "context"
)

// ParseSourceKind maps a server-side retrieval type onto a SourceKind.
func ParseSourceKind(s string) SourceKind {
	switch s {
	case "vector":
		return SourceVector
	case "bm25", "keyword":
		return SourceKeyword
	default:
		return SourceContext
	}
}

// SourceRef is a citation attached to an assistant answer.
type SourceRef struct {
	Filename        string     `json:"filename"`
	ContentPreview  string     `json:"content_preview"`
	SimilarityScore float64    `json:"similarity_score"`
	RerankScore     *float64   `json:"rerank_score,omitempty"`
	Kind            SourceKind `json:"kind"`
}

// ChatMessage is one entry of the visible conversation.
type ChatMessage struct {
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Sources   []SourceRef `json:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Clone returns a deep copy of the message.
func (m ChatMessage) Clone() ChatMessage {
	if m.Sources != nil {
		sources := make([]SourceRef, len(m.Sources))
		for i, s := range m.Sources {
			if s.RerankScore != nil {
				score := *s.RerankScore
				s.RerankScore = &score
			}
			sources[i] = s
		}
		m.Sources = sources
	}
	return m
}

// ChatSession identifies one conversation history within a workspace.
type ChatSession struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SessionName is the display name the backend gives a session id.
func SessionName(id string) string {
	return "Session " + id
}

// StreamHandle identifies one in-flight streaming response.
type StreamHandle string
