package store

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/progress"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logrus.NewEntry(logger))}, opts...)
	return New(opts...), hook
}

func drain(ch <-chan Change) []Change {
	var out []Change
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestInitialState(t *testing.T) {
	s, _ := newTestStore(t)
	st := s.Snapshot()
	assert.Equal(t, models.RunIdle, st.Indexing.Status)
	assert.Equal(t, models.ConnectionDisconnected, st.Connection)
	assert.Empty(t, st.Messages)
	assert.Zero(t, st.Version)
}

func TestProgressDispatch(t *testing.T) {
	s, hook := newTestStore(t)
	sub := s.Subscribe()

	require.True(t, s.Dispatch(ProgressReceived{Event: progress.Event{Type: "started", Data: map[string]interface{}{"files_total": 3.0}}}))
	assert.False(t, s.Dispatch(ProgressReceived{Event: progress.Event{Type: "mystery"}}))
	assert.False(t, s.Dispatch(ProgressReceived{Event: progress.Event{Type: "started", Data: map[string]interface{}{"files_total": 3.0}}}), "replay is a no-op")

	changes := drain(sub)
	require.Len(t, changes, 1)
	assert.Equal(t, "progress_received", changes[0].Action)
	assert.Equal(t, models.RunRunning, changes[0].State.Indexing.Status)
	assert.Equal(t, uint64(1), changes[0].State.Version)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "mystery", entry.Data["type"])
}

func TestDisconnectDoesNotEndRun(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(ConnectionChanged{Status: models.ConnectionConnected})
	s.Dispatch(ProgressReceived{Event: progress.Event{Type: "started"}})
	s.Dispatch(ConnectionChanged{Status: models.ConnectionDisconnected})

	st := s.Snapshot()
	assert.Equal(t, models.RunRunning, st.Indexing.Status)
	assert.Equal(t, models.ConnectionDisconnected, st.Connection)
}

func TestChannelExhausted(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(ChannelExhausted{Attempts: 5, Reason: "progress channel unavailable after 5 attempts"})
	st := s.Snapshot()
	assert.Equal(t, "progress channel unavailable after 5 attempts", st.ChannelError)

	s.Dispatch(ConnectionChanged{Status: models.ConnectionConnected})
	assert.Empty(t, s.Snapshot().ChannelError)
}

func TestStreamLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	sub := s.Subscribe()
	h := models.StreamHandle("h1")

	require.True(t, s.Dispatch(StreamStarted{Handle: h, Query: "what?", At: time.Unix(10, 0)}))
	require.True(t, s.Dispatch(SourcesReceived{Handle: h, Sources: []models.SourceRef{{Filename: "a.pdf"}}}))

	// Sources are visible before any content arrives.
	msg, ok := s.Snapshot().ActiveMessage()
	require.True(t, ok)
	assert.Len(t, msg.Sources, 1)
	assert.Empty(t, msg.Content)

	require.True(t, s.Dispatch(ContentReceived{Handle: h, Delta: "A"}))
	assert.False(t, s.Dispatch(ContentReceived{Handle: h, Delta: ""}))
	require.True(t, s.Dispatch(ContentReceived{Handle: h, Delta: "B"}))
	require.True(t, s.Dispatch(StreamCompleted{Handle: h}))

	st := s.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, models.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "what?", st.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, "AB", st.Messages[1].Content)
	assert.False(t, st.Streaming)
	assert.Empty(t, st.ActiveStream)

	assert.False(t, s.Dispatch(ContentReceived{Handle: h, Delta: "late"}))
	assert.Len(t, drain(sub), 5)
}

func TestStreamSupersede(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(StreamStarted{Handle: "h1", Query: "first"})
	s.Dispatch(ContentReceived{Handle: "h1", Delta: "par"})
	s.Dispatch(StreamStarted{Handle: "h2", Query: "second"})

	sub := s.Subscribe()
	assert.False(t, s.Dispatch(ContentReceived{Handle: "h1", Delta: "tial"}))
	assert.False(t, s.Dispatch(StreamCompleted{Handle: "h1"}))
	assert.False(t, s.IsActive("h1"))
	assert.True(t, s.IsActive("h2"))
	assert.Empty(t, drain(sub), "stale dispatches never notify")

	s.Dispatch(ContentReceived{Handle: "h2", Delta: "fresh"})
	st := s.Snapshot()
	require.Len(t, st.Messages, 4)
	assert.Equal(t, "par", st.Messages[1].Content)
	assert.Equal(t, "fresh", st.Messages[3].Content)
}

func TestStreamFailed(t *testing.T) {
	tests := []struct {
		name     string
		deltas   []string
		received bool
		role     models.Role
		content  string
	}{
		{name: "before any byte", role: models.RoleError, content: "Error: connection refused"},
		{name: "error record with no content", received: true, role: models.RoleError, content: "Error: connection refused"},
		{name: "mid-stream", deltas: []string{"Partial"}, received: true, role: models.RoleAssistant, content: "Partial\n\n[Error: connection refused]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			s.Dispatch(StreamStarted{Handle: "h", Query: "q"})
			for _, d := range tt.deltas {
				s.Dispatch(ContentReceived{Handle: "h", Delta: d})
			}
			require.True(t, s.Dispatch(StreamFailed{Handle: "h", Reason: "connection refused", Received: tt.received}))

			st := s.Snapshot()
			last := st.Messages[len(st.Messages)-1]
			assert.Equal(t, tt.role, last.Role)
			assert.Equal(t, tt.content, last.Content)
			assert.False(t, st.Streaming)
		})
	}
}

func TestSessionSwitch(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(StreamStarted{Handle: "h1", Query: "q"})

	require.True(t, s.Dispatch(SessionSwitching{Seq: 1, Workspace: "docs"}))
	st := s.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.ActiveStream)
	assert.False(t, s.Dispatch(ContentReceived{Handle: "h1", Delta: "late"}))

	s.Dispatch(SessionSwitching{Seq: 2, Workspace: "docs"})
	assert.False(t, s.Dispatch(SessionLoaded{Seq: 1, Session: models.ChatSession{ID: "1"}}), "older switch is dropped")
	assert.False(t, s.Dispatch(SessionLoadFailed{Seq: 1, Reason: "boom"}))

	history := []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}}
	require.True(t, s.Dispatch(SessionLoaded{Seq: 2, Session: models.ChatSession{ID: "2", DisplayName: "Session 2"}, Messages: history}))
	history[0].Content = "mutated"

	st = s.Snapshot()
	require.NotNil(t, st.Session)
	assert.Equal(t, "2", st.Session.ID)
	assert.Equal(t, "docs", st.Workspace)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "hello", st.Messages[0].Content)

	s.Dispatch(SessionSwitching{Seq: 3, Workspace: "docs"})
	require.True(t, s.Dispatch(SessionLoadFailed{Seq: 3, Reason: "not found"}))
	assert.Equal(t, "not found", s.Snapshot().SessionError)
}

func TestStreamStartedDuringLoadIsFenced(t *testing.T) {
	s, _ := newTestStore(t)

	s.Dispatch(SessionSwitching{Seq: 1, Workspace: "docs"})
	require.True(t, s.Dispatch(StreamStarted{Handle: "h1", Query: "new question"}))

	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "old question"},
		{Role: models.RoleAssistant, Content: "old answer"},
	}
	require.True(t, s.Dispatch(SessionLoaded{Seq: 1, Session: models.ChatSession{ID: "1"}, Messages: history}))

	st := s.Snapshot()
	assert.Empty(t, st.ActiveStream)
	assert.False(t, st.Streaming)

	assert.False(t, s.Dispatch(ContentReceived{Handle: "h1", Delta: "LATE"}))
	assert.False(t, s.Dispatch(StreamCompleted{Handle: "h1"}))
	st = s.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "old answer", st.Messages[1].Content)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(SessionSwitching{Seq: 1})
	s.Dispatch(SessionLoaded{Seq: 1, Session: models.ChatSession{ID: "1"}, Messages: []models.ChatMessage{{Content: "a", Sources: []models.SourceRef{{Filename: "f"}}}}})

	snap := s.Snapshot()
	snap.Messages[0].Content = "changed"
	snap.Messages[0].Sources[0].Filename = "changed"
	snap.Session.ID = "changed"

	fresh := s.Snapshot()
	assert.Equal(t, "a", fresh.Messages[0].Content)
	assert.Equal(t, "f", fresh.Messages[0].Sources[0].Filename)
	assert.Equal(t, "1", fresh.Session.ID)
}

func TestLaggingSubscriberSeesFinalState(t *testing.T) {
	s, _ := newTestStore(t, WithSubscriberBuffer(2))
	sub := s.Subscribe()

	s.Dispatch(StreamStarted{Handle: "h", Query: "q"})
	for i := 0; i < 50; i++ {
		s.Dispatch(ContentReceived{Handle: "h", Delta: "x"})
	}

	changes := drain(sub)
	require.Len(t, changes, 2)
	last := changes[len(changes)-1]
	assert.Equal(t, s.Snapshot().Version, last.State.Version)
	assert.Len(t, last.State.Messages[1].Content, 50)
}

func TestConcurrentDispatchIsSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	s.Dispatch(StreamStarted{Handle: "h", Query: "q"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Dispatch(ContentReceived{Handle: "h", Delta: "x"})
			}
		}()
	}
	wg.Wait()

	st := s.Snapshot()
	assert.Len(t, st.Messages[1].Content, 200)
	assert.Equal(t, uint64(201), st.Version)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s, _ := newTestStore(t)
	sub := s.Subscribe()
	s.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)

	s.Unsubscribe(sub)
	assert.True(t, s.Dispatch(ConnectionChanged{Status: models.ConnectionConnecting}))
}
