// Package progress folds indexing progress events into an IndexingRun.
package progress

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Event is one message received on the progress channel.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
}

// ParseEvent decodes a raw channel message. Messages that are not JSON
// objects or that lack a type are rejected.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode progress event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("progress event has no type")
	}
	return ev, nil
}

// Payload holds the recognized fields of an event's data. Nil pointers mark
// fields the server did not send.
type Payload struct {
	FilesTotal     *int     `mapstructure:"files_total"`
	FilesProcessed *int     `mapstructure:"files_processed"`
	ChunksTotal    *int     `mapstructure:"chunks_total"`
	CurrentFile    *string  `mapstructure:"current_file"`
	Percentage     *float64 `mapstructure:"percentage"`
	Message        *string  `mapstructure:"message"`
	Error          *string  `mapstructure:"error"`
	EmbeddingDim   *int     `mapstructure:"embedding_dim"`
}

// DecodePayload extracts the recognized fields from an event's data map.
// Fields are decoded one at a time; a field of the wrong type is left unset
// without affecting the others.
func DecodePayload(data map[string]interface{}) Payload {
	var p Payload
	for name, value := range data {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &p,
		})
		if err != nil {
			return p
		}
		// A failed field keeps its previous value.
		_ = decoder.Decode(map[string]interface{}{name: value})
	}
	return p
}
