package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/pkg/models"
)

type backend struct {
	*httptest.Server
	stops chan string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{stops: make(chan string, 4)}
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ws/indexing", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		replay := `{"type":"file_completed","data":{"files_total":4,"files_processed":2,"percentage":50.0},"timestamp":"2024-05-01T10:00:00"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(replay)); err != nil {
			return
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "stop" {
				b.stops <- "channel"
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stopped","data":{"message":"Indexing stopped by user"},"timestamp":"2024-05-01T10:00:05"}`))
			}
		}
	})
	mux.HandleFunc("/api/indexing/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_running":true,"progress":{"type":"file_completed","files_total":4,"files_processed":2,"percentage":50.0},"current_bucket":"docs"}`)
	})
	mux.HandleFunc("/api/indexing/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"Indexing started"}`)
	})
	mux.HandleFunc("/api/indexing/stop", func(w http.ResponseWriter, r *http.Request) {
		b.stops <- "rest"
		fmt.Fprint(w, `{"message":"Stop requested"}`)
	})
	mux.HandleFunc("/api/search/sessions/docs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sessions":[{"id":7,"name":"Release notes","file":"7.json"},{"id":3,"name":"","file":"3.json"}]}`)
	})
	mux.HandleFunc("/api/search/sessions/docs/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"history":[{"role":"user","content":"hi","timestamp":"2024-05-01T09:00:00"},{"role":"assistant","content":"hello","timestamp":"2024-05-01T09:00:01"}]}`)
	})
	mux.HandleFunc("/api/search/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"sources\",\"sources\":[{\"filename\":\"notes.md\",\"content\":\"v2\",\"score\":0.9,\"type\":\"vector\"}]}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"Version 2 \"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"shipped.\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func newEngine(t *testing.T, baseURL string) *Engine {
	t.Helper()
	t.Setenv("RAGSYNC_HOME", t.TempDir())

	cfg := config.Default()
	cfg.Server.BaseURL = baseURL
	cfg.Workspace = "docs"
	cfg.Channel.PingInterval = 0

	e, err := New(cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestStartConnectsAndHydrates(t *testing.T) {
	b := newBackend(t)
	e := newEngine(t, b.URL)

	require.NoError(t, e.Start(context.Background()))

	assert.Eventually(t, func() bool {
		snap := e.Store().Snapshot()
		return snap.Connection == models.ConnectionConnected &&
			snap.Indexing.Status == models.RunRunning &&
			snap.Indexing.Progress.FilesProcessed == 2
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, e.StopIndexing(context.Background()))
	select {
	case via := <-b.stops:
		assert.Equal(t, "channel", via)
	case <-time.After(3 * time.Second):
		t.Fatal("stop never reached the backend")
	}
	assert.Eventually(t, func() bool {
		return e.Store().Snapshot().Indexing.Status == models.RunStopped
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, e.Close())
	assert.Equal(t, models.ConnectionDisconnected, e.Store().Snapshot().Connection)
}

func TestStopFallsBackToREST(t *testing.T) {
	b := newBackend(t)
	e := newEngine(t, b.URL)

	require.NoError(t, e.StopIndexing(context.Background()))
	assert.Equal(t, "rest", <-b.stops)
	require.NoError(t, e.StartIndexing(context.Background()))
}

func TestAskOpensNewestSession(t *testing.T) {
	b := newBackend(t)
	e := newEngine(t, b.URL)

	stream, err := e.Ask(context.Background(), "", "what shipped?")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, stream.Wait(ctx))

	snap := e.Store().Snapshot()
	require.NotNil(t, snap.Session)
	assert.Equal(t, "7", snap.Session.ID)
	assert.False(t, snap.Streaming)
	require.Len(t, snap.Messages, 4)
	assert.Equal(t, "hello", snap.Messages[1].Content)
	assert.Equal(t, models.RoleUser, snap.Messages[2].Role)
	assert.Equal(t, "what shipped?", snap.Messages[2].Content)
	answer := snap.Messages[3]
	assert.Equal(t, "Version 2 shipped.", answer.Content)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "notes.md", answer.Sources[0].Filename)
}

func TestHydrateFailureIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"backend warming up"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := newEngine(t, server.URL)
	err := e.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend warming up")
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Setenv("RAGSYNC_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Server.BaseURL = "ftp://example.com"
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestWorkspaceDefault(t *testing.T) {
	e := newEngine(t, "http://localhost:8000")
	assert.Equal(t, "docs", e.Workspace(""))
	assert.Equal(t, "other", e.Workspace("other"))
}
