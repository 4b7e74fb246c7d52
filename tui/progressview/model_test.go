package progressview

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
	"github.com/grovetools/ragsync/tui/keymap"
)

type fakeController struct {
	calls   []string
	stopErr error
}

func (f *fakeController) StartIndexing(context.Context) error {
	f.calls = append(f.calls, "start")
	return nil
}

func (f *fakeController) StopIndexing(context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.stopErr
}

func (f *fakeController) Reconnect(context.Context) error {
	f.calls = append(f.calls, "reconnect")
	return nil
}

func runningState() store.State {
	return store.State{
		Workspace:  "docs",
		Connection: models.ConnectionConnected,
		Indexing: models.IndexingRun{
			Status: models.RunRunning,
			Progress: models.ProgressState{
				FilesTotal:     10,
				FilesProcessed: 4,
				ChunksTotal:    17,
				CurrentFile:    "guide.md",
				Percentage:     40,
			},
		},
	}
}

func TestChangesUpdateView(t *testing.T) {
	changes := make(chan store.Change, 1)
	m := New(store.State{Connection: models.ConnectionConnecting}, changes, nil, keymap.Default())

	view := m.View()
	assert.Contains(t, view, "connecting")
	assert.Contains(t, view, "status")

	changes <- store.Change{Action: "progress_received", State: runningState()}
	msg := m.Init()()
	updated, cmd := m.Update(msg)
	require.NotNil(t, cmd)

	view = updated.View()
	assert.Contains(t, view, "docs")
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "running")
	assert.Contains(t, view, "files 4/10  chunks 17")
	assert.Contains(t, view, "guide.md")
	assert.Contains(t, view, "40%")
	assert.Equal(t, 40.0, updated.(Model).State().Indexing.Progress.Percentage)
}

func TestClosedChangesQuit(t *testing.T) {
	changes := make(chan store.Change)
	close(changes)
	m := New(store.State{}, changes, nil, keymap.Default())

	_, cmd := m.Update(m.Init()())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestKeysInvokeController(t *testing.T) {
	ctrl := &fakeController{stopErr: errors.New("no run")}
	m := New(runningState(), make(chan store.Change), ctrl, keymap.Default())

	press := func(model tea.Model, r rune) tea.Model {
		next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		if cmd != nil {
			next, _ = next.Update(cmd())
		}
		return next
	}

	var model tea.Model = m
	model = press(model, 's')
	assert.Contains(t, model.View(), "start requested")

	model = press(model, 'x')
	assert.Contains(t, model.View(), "stop failed: no run")

	model = press(model, 'r')
	assert.Equal(t, []string{"start", "stop", "reconnect"}, ctrl.calls)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTerminalStatesRender(t *testing.T) {
	state := store.State{
		Connection:   models.ConnectionDisconnected,
		ChannelError: "gave up after 5 attempts",
		Indexing: models.IndexingRun{
			Status: models.RunErrored,
			Error:  "embedding service unavailable",
		},
	}
	view := New(state, nil, nil, keymap.Default()).View()
	assert.Contains(t, view, "disconnected")
	assert.Contains(t, view, "gave up after 5 attempts")
	assert.Contains(t, view, "embedding service unavailable")
	assert.True(t, strings.Contains(view, "errored"))
}
