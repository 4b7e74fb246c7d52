package models

import (
	"time"
	"unicode/utf8"
)

// PreviewLength is the number of runes kept from a source's content.
const PreviewLength = 200

// WireSource is a citation as the backend sends it.
type WireSource struct {
	Filename       string   `json:"filename"`
	Content        string   `json:"content"`
	ContentPreview string   `json:"content_preview,omitempty"`
	Score          float64  `json:"score"`
	RerankScore    *float64 `json:"rerank_score,omitempty"`
	Type           string   `json:"type"`
}

// SourceRef converts the wire citation into its client form.
func (w WireSource) SourceRef() SourceRef {
	preview := w.ContentPreview
	if preview == "" {
		preview = truncateRunes(w.Content, PreviewLength)
	}
	return SourceRef{
		Filename:        w.Filename,
		ContentPreview:  preview,
		SimilarityScore: w.Score,
		RerankScore:     w.RerankScore,
		Kind:            ParseSourceKind(w.Type),
	}
}

// SourceRefs converts a slice of wire citations.
func SourceRefs(in []WireSource) []SourceRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]SourceRef, len(in))
	for i, w := range in {
		out[i] = w.SourceRef()
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a backend ISO-8601 timestamp. Timestamps without a
// zone are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
