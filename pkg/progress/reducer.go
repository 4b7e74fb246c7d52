package progress

import (
	"github.com/grovetools/ragsync/pkg/models"
)

// FinalizingPercentage is the percentage shown while vectors are inserted
// and the index is built.
const FinalizingPercentage = 95.0

// Kind groups event types by how they transform a run.
type Kind int

const (
	KindUnknown Kind = iota
	KindStarted
	KindProgress
	KindFinalizing
	KindComplete
	KindStopped
	KindError
	KindInfo
)

var kinds = map[string]Kind{
	"started":             KindStarted,
	"counting_files":      KindStarted,
	"files_counted":       KindStarted,
	"file_started":        KindProgress,
	"file_completed":      KindProgress,
	"chunk_processed":     KindProgress,
	"inserting_data":      KindFinalizing,
	"creating_index":      KindFinalizing,
	"complete":            KindComplete,
	"stopped":             KindStopped,
	"error":               KindError,
	"file_error":          KindError,
	"downloading":         KindInfo,
	"milvus_connected":    KindInfo,
	"detecting_dimension": KindInfo,
	"dimension_detected":  KindInfo,
	"collection_reset":    KindInfo,
	"collection_created":  KindInfo,
	"command_received":    KindInfo,
}

// Classify returns the kind of an event type.
func Classify(eventType string) Kind {
	return kinds[eventType]
}

// Reduce applies one event to a run. The boolean is false for event types
// it does not recognize, in which case the run is returned unchanged.
func Reduce(run models.IndexingRun, ev Event) (models.IndexingRun, bool) {
	kind := Classify(ev.Type)
	if kind == KindUnknown {
		return run, false
	}

	// Only a new start moves the progress of a finished run.
	if run.Status.Terminal() && (kind == KindProgress || kind == KindFinalizing) {
		return run, true
	}

	p := DecodePayload(ev.Data)

	switch kind {
	case KindStarted:
		run.Status = models.RunRunning
		run.Progress = merge(models.ProgressState{}, p)
		run.Error = ""

	case KindProgress:
		run.Status = joinRunning(run.Status)
		run.Progress = merge(run.Progress, p)

	case KindFinalizing:
		run.Status = joinRunning(run.Status)
		run.Progress.Percentage = FinalizingPercentage
		if p.Message != nil {
			run.Progress.CurrentFile = *p.Message
		}

	case KindComplete:
		run.Status = models.RunComplete
		run.Progress = merge(run.Progress, p)
		run.Progress.Percentage = 100

	case KindStopped:
		run.Status = models.RunStopped

	case KindError:
		run.Status = models.RunErrored
		run.Error = errorText(p)
	}

	if p.Message != nil {
		run.Message = *p.Message
	}
	if p.EmbeddingDim != nil && *p.EmbeddingDim > 0 {
		run.EmbeddingDim = *p.EmbeddingDim
	}
	if ts, ok := models.ParseTimestamp(ev.Timestamp); ok {
		run.UpdatedAt = ts
	}
	run.Progress = run.Progress.Normalize()
	return run, true
}

// Hydrate seeds a run from the indexing status endpoint. data is the payload
// of the last event the server emitted, which carries its own type.
func Hydrate(run models.IndexingRun, running bool, data map[string]interface{}) models.IndexingRun {
	if running && run.Status.Terminal() {
		run = models.NewIndexingRun()
	}
	if eventType, ok := data["type"].(string); ok {
		run, _ = Reduce(run, Event{Type: eventType, Data: data})
	}
	switch {
	case running && run.Status != models.RunRunning:
		run.Status = models.RunRunning
		run.Error = ""
	case !running && run.Status == models.RunRunning:
		run.Status = models.RunIdle
	}
	return run
}

func joinRunning(s models.RunStatus) models.RunStatus {
	if s == models.RunIdle || s == "" {
		return models.RunRunning
	}
	return s
}

func merge(state models.ProgressState, p Payload) models.ProgressState {
	if p.FilesTotal != nil {
		state.FilesTotal = *p.FilesTotal
	}
	if p.FilesProcessed != nil {
		state.FilesProcessed = *p.FilesProcessed
	}
	if p.ChunksTotal != nil {
		state.ChunksTotal = *p.ChunksTotal
	}
	if p.CurrentFile != nil {
		state.CurrentFile = *p.CurrentFile
	}
	if p.Percentage != nil {
		state.Percentage = *p.Percentage
	}
	return state
}

func errorText(p Payload) string {
	switch {
	case p.Message != nil && *p.Message != "":
		return *p.Message
	case p.Error != nil && *p.Error != "":
		return *p.Error
	}
	return "indexing failed"
}
