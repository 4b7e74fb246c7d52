package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/ragsync/pkg/models"
)

func ev(eventType string, data map[string]interface{}) Event {
	return Event{Type: eventType, Data: data}
}

func fold(t *testing.T, run models.IndexingRun, events ...Event) models.IndexingRun {
	t.Helper()
	for _, e := range events {
		var known bool
		run, known = Reduce(run, e)
		require.True(t, known, "event %q should be known", e.Type)
	}
	return run
}

func TestReduceFullRun(t *testing.T) {
	run := fold(t, models.NewIndexingRun(),
		ev("started", nil),
		ev("file_started", map[string]interface{}{"files_total": 10.0}),
		ev("chunk_processed", map[string]interface{}{"files_processed": 3.0, "percentage": 30.0}),
		ev("inserting_data", nil),
		ev("complete", map[string]interface{}{"files_total": 10.0, "files_processed": 10.0, "chunks_total": 42.0}),
	)

	assert.Equal(t, models.RunComplete, run.Status)
	assert.Equal(t, 10, run.Progress.FilesTotal)
	assert.Equal(t, 10, run.Progress.FilesProcessed)
	assert.Equal(t, 42, run.Progress.ChunksTotal)
	assert.Equal(t, 100.0, run.Progress.Percentage)
}

func TestReducePercentagePassThrough(t *testing.T) {
	run := fold(t, models.NewIndexingRun(), ev("started", map[string]interface{}{"files_total": 4.0}))

	for _, pct := range []float64{1, 12.5, 12.5, 40, 77.25} {
		run = fold(t, run, ev("chunk_processed", map[string]interface{}{"percentage": pct}))
		assert.Equal(t, pct, run.Progress.Percentage)
	}
}

func TestReduceStartedResets(t *testing.T) {
	prior := models.IndexingRun{
		Status:   models.RunComplete,
		Progress: models.ProgressState{FilesTotal: 8, FilesProcessed: 8, ChunksTotal: 99, Percentage: 100, CurrentFile: "z.pdf"},
		Error:    "old failure",
	}

	for _, eventType := range []string{"started", "counting_files", "files_counted"} {
		t.Run(eventType, func(t *testing.T) {
			run := fold(t, prior, ev(eventType, map[string]interface{}{"files_total": 3.0}))
			assert.Equal(t, models.RunRunning, run.Status)
			assert.Equal(t, models.ProgressState{FilesTotal: 3}, run.Progress)
			assert.Empty(t, run.Error)
		})
	}
}

func TestReduceCompleteForcesHundred(t *testing.T) {
	run := fold(t, models.NewIndexingRun(),
		ev("started", nil),
		ev("chunk_processed", map[string]interface{}{"percentage": 97.0}),
		ev("complete", nil),
	)
	assert.Equal(t, 100.0, run.Progress.Percentage)
	assert.Equal(t, models.RunComplete, run.Status)
}

func TestReduceFinalizingSnapsToSentinel(t *testing.T) {
	run := fold(t, models.NewIndexingRun(),
		ev("started", nil),
		ev("chunk_processed", map[string]interface{}{"percentage": 98.0}),
		ev("creating_index", map[string]interface{}{"message": "Creating vector index..."}),
	)
	assert.Equal(t, FinalizingPercentage, run.Progress.Percentage)
	assert.Equal(t, "Creating vector index...", run.Progress.CurrentFile)
	assert.Equal(t, "Creating vector index...", run.Message)
}

func TestReduceTerminalPhases(t *testing.T) {
	running := fold(t, models.NewIndexingRun(),
		ev("started", map[string]interface{}{"files_total": 5.0}),
		ev("file_completed", map[string]interface{}{"files_processed": 2.0, "percentage": 40.0}),
	)

	t.Run("stopped keeps progress", func(t *testing.T) {
		run := fold(t, running, ev("stopped", map[string]interface{}{"message": "Indexing stopped by user"}))
		assert.Equal(t, models.RunStopped, run.Status)
		assert.Equal(t, running.Progress, run.Progress)
	})

	t.Run("error records message", func(t *testing.T) {
		run := fold(t, running, ev("error", map[string]interface{}{"error": "Milvus connection failed", "message": "Error connecting to Milvus"}))
		assert.Equal(t, models.RunErrored, run.Status)
		assert.Equal(t, "Error connecting to Milvus", run.Error)
		assert.Equal(t, running.Progress, run.Progress)
	})

	t.Run("file_error falls back to error field", func(t *testing.T) {
		run := fold(t, running, ev("file_error", map[string]interface{}{"error": "bad pdf"}))
		assert.Equal(t, models.RunErrored, run.Status)
		assert.Equal(t, "bad pdf", run.Error)
	})

	t.Run("progress does not revive a terminal run", func(t *testing.T) {
		stopped := fold(t, running, ev("stopped", nil))
		run := fold(t, stopped, ev("chunk_processed", map[string]interface{}{"percentage": 60.0}))
		assert.Equal(t, models.RunStopped, run.Status)
		assert.Equal(t, stopped.Progress, run.Progress)
	})

	t.Run("late progress after complete keeps hundred", func(t *testing.T) {
		done := fold(t, running, ev("complete", map[string]interface{}{"files_total": 10.0}))
		run := fold(t, done,
			ev("chunk_processed", map[string]interface{}{"percentage": 97.0, "files_processed": 3.0, "message": "late"}),
			ev("inserting_data", nil),
		)
		assert.Equal(t, models.RunComplete, run.Status)
		assert.Equal(t, 100.0, run.Progress.Percentage)
		assert.Equal(t, done, run)
	})

	t.Run("started begins a new run", func(t *testing.T) {
		done := fold(t, running, ev("complete", nil))
		run := fold(t, done,
			ev("started", map[string]interface{}{"files_total": 3.0}),
			ev("chunk_processed", map[string]interface{}{"percentage": 10.0}),
		)
		assert.Equal(t, models.RunRunning, run.Status)
		assert.Equal(t, 10.0, run.Progress.Percentage)
		assert.Equal(t, 3, run.Progress.FilesTotal)
	})
}

func TestReduceJoinMidRun(t *testing.T) {
	run := fold(t, models.NewIndexingRun(), ev("file_started", map[string]interface{}{"current_file": "a.pdf", "files_total": 9.0}))
	assert.Equal(t, models.RunRunning, run.Status)
	assert.Equal(t, "a.pdf", run.Progress.CurrentFile)
}

func TestReduceInformationalPhases(t *testing.T) {
	base := fold(t, models.NewIndexingRun(),
		ev("started", nil),
		ev("chunk_processed", map[string]interface{}{"percentage": 20.0}),
	)

	for _, eventType := range []string{"downloading", "milvus_connected", "detecting_dimension", "dimension_detected", "collection_reset", "collection_created", "command_received"} {
		t.Run(eventType, func(t *testing.T) {
			run := fold(t, base, ev(eventType, map[string]interface{}{"message": eventType, "percentage": 99.0, "embedding_dim": 768.0}))
			assert.Equal(t, base.Status, run.Status)
			assert.Equal(t, base.Progress, run.Progress)
			assert.Equal(t, eventType, run.Message)
			assert.Equal(t, 768, run.EmbeddingDim)
		})
	}
}

func TestReduceIdempotentReplay(t *testing.T) {
	base := fold(t, models.NewIndexingRun(), ev("started", map[string]interface{}{"files_total": 10.0}))
	e := ev("file_completed", map[string]interface{}{"files_processed": 4.0, "percentage": 40.0, "current_file": "b.md"})

	once := fold(t, base, e)
	twice := fold(t, once, e)
	assert.Equal(t, once, twice)
}

func TestReduceUnknownAndMalformed(t *testing.T) {
	base := fold(t, models.NewIndexingRun(), ev("started", map[string]interface{}{"files_total": 2.0}))

	run, known := Reduce(base, ev("heartbeat", map[string]interface{}{"percentage": 50.0}))
	assert.False(t, known)
	assert.Equal(t, base, run)

	run = fold(t, base, ev("chunk_processed", map[string]interface{}{"percentage": "not-a-number"}))
	assert.Equal(t, base.Progress, run.Progress)
	assert.Equal(t, models.RunRunning, run.Status)
}

func TestReduceClampsCounters(t *testing.T) {
	run := fold(t, models.NewIndexingRun(),
		ev("started", map[string]interface{}{"files_total": 3.0}),
		ev("file_completed", map[string]interface{}{"files_processed": 7.0, "chunks_total": -4.0, "percentage": 130.0}),
	)
	assert.Equal(t, 3, run.Progress.FilesProcessed)
	assert.Equal(t, 0, run.Progress.ChunksTotal)
	assert.Equal(t, 100.0, run.Progress.Percentage)
}

func TestReduceTimestamp(t *testing.T) {
	run := fold(t, models.NewIndexingRun(), Event{Type: "started", Timestamp: "2024-05-06T07:08:09.5"})
	assert.True(t, run.UpdatedAt.Equal(time.Date(2024, 5, 6, 7, 8, 9, 500000000, time.UTC)))
}

func TestHydrate(t *testing.T) {
	t.Run("running with last progress", func(t *testing.T) {
		run := Hydrate(models.NewIndexingRun(), true, map[string]interface{}{
			"type": "file_completed", "files_total": 10.0, "files_processed": 6.0, "percentage": 60.0,
		})
		assert.Equal(t, models.RunRunning, run.Status)
		assert.Equal(t, 60.0, run.Progress.Percentage)
	})

	t.Run("finished run keeps completion", func(t *testing.T) {
		run := Hydrate(models.NewIndexingRun(), false, map[string]interface{}{"type": "complete", "files_total": 4.0, "files_processed": 4.0})
		assert.Equal(t, models.RunComplete, run.Status)
		assert.Equal(t, 100.0, run.Progress.Percentage)
	})

	t.Run("stale running state becomes idle", func(t *testing.T) {
		run := Hydrate(models.NewIndexingRun(), false, map[string]interface{}{"type": "chunk_processed", "percentage": 10.0})
		assert.Equal(t, models.RunIdle, run.Status)
	})

	t.Run("running after a finished run starts fresh", func(t *testing.T) {
		done := Hydrate(models.NewIndexingRun(), false, map[string]interface{}{"type": "complete"})
		run := Hydrate(done, true, map[string]interface{}{"type": "chunk_processed", "percentage": 30.0})
		assert.Equal(t, models.RunRunning, run.Status)
		assert.Equal(t, 30.0, run.Progress.Percentage)
	})

	t.Run("running without progress", func(t *testing.T) {
		run := Hydrate(models.NewIndexingRun(), true, nil)
		assert.Equal(t, models.RunRunning, run.Status)
	})
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent([]byte(`{"type":"file_started","data":{"current_file":"x.pdf"},"timestamp":""}`))
	require.NoError(t, err)
	assert.Equal(t, "file_started", e.Type)
	assert.Equal(t, "x.pdf", e.Data["current_file"])

	_, err = ParseEvent([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestDecodePayloadSkipsBadFields(t *testing.T) {
	p := DecodePayload(map[string]interface{}{
		"files_total":     "n/a",
		"files_processed": 4.0,
		"percentage":      "40",
		"message":         "Error connecting to Milvus",
	})
	assert.Nil(t, p.FilesTotal)
	require.NotNil(t, p.FilesProcessed)
	assert.Equal(t, 4, *p.FilesProcessed)
	require.NotNil(t, p.Percentage)
	assert.Equal(t, 40.0, *p.Percentage)
	require.NotNil(t, p.Message)
	assert.Equal(t, "Error connecting to Milvus", *p.Message)

	assert.Equal(t, Payload{}, DecodePayload(nil))
}

func TestReduceErrorKeepsMessageDespiteBadField(t *testing.T) {
	run := fold(t, models.NewIndexingRun(),
		ev("started", nil),
		ev("error", map[string]interface{}{"files_total": "n/a", "message": "Error connecting to Milvus"}),
	)
	assert.Equal(t, models.RunErrored, run.Status)
	assert.Equal(t, "Error connecting to Milvus", run.Error)
}
