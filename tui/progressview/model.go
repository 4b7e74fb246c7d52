// Package progressview renders live indexing progress from the store.
package progressview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
	"github.com/grovetools/ragsync/tui/keymap"
	"github.com/grovetools/ragsync/tui/theme"
)

// Controller performs the actions bound to keys.
type Controller interface {
	StartIndexing(ctx context.Context) error
	StopIndexing(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// ChangeMsg carries a store change into the program.
type ChangeMsg store.Change

type closedMsg struct{}

type actionDoneMsg struct {
	action string
	err    error
}

// Model is the bubbletea model for the watch view.
type Model struct {
	state   store.State
	changes <-chan store.Change
	ctrl    Controller

	keys  keymap.KeyMap
	help  help.Model
	bar   progress.Model
	theme *theme.Theme

	width   int
	notice  string
	failure string
}

// New creates a view seeded with initial and fed by changes.
func New(initial store.State, changes <-chan store.Change, ctrl Controller, keys keymap.KeyMap) Model {
	t := theme.DefaultTheme
	return Model{
		state:   initial,
		changes: changes,
		ctrl:    ctrl,
		keys:    keys,
		help:    help.New(),
		bar:     progress.New(progress.WithGradient(t.BarStart, t.BarEnd)),
		theme:   t,
	}
}

// State returns the last state the view rendered.
func (m Model) State() store.State { return m.state }

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		change, ok := <-m.changes
		if !ok {
			return closedMsg{}
		}
		return ChangeMsg(change)
	}
}

func (m Model) run(action string) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch action {
		case "start":
			err = ctrl.StartIndexing(ctx)
		case "stop":
			err = ctrl.StopIndexing(ctx)
		case "reconnect":
			err = ctrl.Reconnect(ctx)
		}
		return actionDoneMsg{action: action, err: err}
	}
}

// Init starts listening for changes.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), 80)
		return m, nil

	case ChangeMsg:
		m.state = msg.State
		return m, m.waitForChange()

	case closedMsg:
		return m, tea.Quit

	case actionDoneMsg:
		if msg.err != nil {
			m.failure = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.notice = ""
		} else {
			m.notice = msg.action + " requested"
			m.failure = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Start):
			return m, m.run("start")
		case key.Matches(msg, m.keys.Stop):
			return m, m.run("stop")
		case key.Matches(msg, m.keys.Reconnect):
			return m, m.run("reconnect")
		}
	}
	return m, nil
}

// View renders the model.
func (m Model) View() string {
	t := m.theme
	run := m.state.Indexing
	var b strings.Builder

	title := "ragsync"
	if m.state.Workspace != "" {
		title += " · " + m.state.Workspace
	}
	b.WriteString(t.Header.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.connectionLine())
	b.WriteString("\n")
	b.WriteString(statusLine(t, run))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(run.Progress.Percentage / 100))
	b.WriteString("\n")

	p := run.Progress
	b.WriteString(t.Muted.Render(fmt.Sprintf("files %d/%d  chunks %d", p.FilesProcessed, p.FilesTotal, p.ChunksTotal)))
	b.WriteString("\n")
	if p.CurrentFile != "" {
		b.WriteString(t.Normal.Render(p.CurrentFile))
		b.WriteString("\n")
	}
	if run.Message != "" && run.Message != p.CurrentFile {
		b.WriteString(t.Muted.Render(run.Message))
		b.WriteString("\n")
	}
	if run.Error != "" {
		b.WriteString(t.Error.Render(theme.IconError + " " + run.Error))
		b.WriteString("\n")
	}

	if m.failure != "" {
		b.WriteString("\n")
		b.WriteString(t.Error.Render(m.failure))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(t.Muted.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) connectionLine() string {
	t := m.theme
	switch m.state.Connection {
	case models.ConnectionConnected:
		return t.Success.Render(theme.IconSuccess + " connected")
	case models.ConnectionConnecting:
		return t.Warning.Render(theme.IconRunning + " connecting")
	default:
		line := t.Muted.Render(theme.IconIdle + " disconnected")
		if m.state.ChannelError != "" {
			line += " " + t.Error.Render(m.state.ChannelError)
		}
		return line
	}
}

func statusLine(t *theme.Theme, run models.IndexingRun) string {
	label := "status " + string(run.Status)
	switch run.Status {
	case models.RunRunning:
		return t.Accent.Render(theme.IconRunning + " " + label)
	case models.RunComplete:
		line := t.Success.Render(theme.IconSuccess + " " + label)
		if run.EmbeddingDim > 0 {
			line += t.Muted.Render(fmt.Sprintf("  (dim %d)", run.EmbeddingDim))
		}
		return line
	case models.RunStopped:
		return t.Warning.Render(theme.IconWarning + " " + label)
	case models.RunErrored:
		return t.Error.Render(theme.IconError + " " + label)
	default:
		return t.Muted.Render(theme.IconIdle + " " + label)
	}
}
