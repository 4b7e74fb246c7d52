// Package session coordinates new chats, session switches and submissions so
// that a superseded stream can never write into the visible conversation.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/chat"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/store"
)

// HistoryProvider fetches and creates chat sessions.
type HistoryProvider interface {
	ListSessions(ctx context.Context, workspace string) ([]models.ChatSession, error)
	CreateSession(ctx context.Context, workspace string) (models.ChatSession, error)
	LoadSession(ctx context.Context, workspace, sessionID string) ([]models.ChatMessage, error)
}

// Submitter starts a streaming answer.
type Submitter interface {
	Submit(ctx context.Context, req chat.Request) (*chat.Stream, error)
}

// StateStore is the part of the store the coordinator uses.
type StateStore interface {
	Dispatch(store.Action) bool
	Snapshot() store.State
}

// Coordinator sequences session changes. Each change is assigned a sequence
// number when it starts; a load that finishes after a newer change started
// is discarded by the store. Session changes may overlap each other, but a
// submission waits until none is in flight.
type Coordinator struct {
	store   StateStore
	history HistoryProvider
	chat    Submitter
	logger  *logrus.Entry

	// ops is held shared by session changes and exclusively by Submit.
	ops sync.RWMutex

	mu  sync.Mutex
	seq uint64
}

// New creates a Coordinator.
func New(st StateStore, history HistoryProvider, submitter Submitter, logger *logrus.Entry) *Coordinator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "session")
	}
	return &Coordinator{store: st, history: history, chat: submitter, logger: logger}
}

// NewChat starts a fresh session in workspace.
func (c *Coordinator) NewChat(ctx context.Context, workspace string) (models.ChatSession, error) {
	if workspace == "" {
		return models.ChatSession{}, errors.InvalidInput("workspace", "must not be empty")
	}
	c.ops.RLock()
	defer c.ops.RUnlock()
	return c.newChat(ctx, workspace)
}

func (c *Coordinator) newChat(ctx context.Context, workspace string) (models.ChatSession, error) {
	seq := c.begin(workspace)

	session, err := c.history.CreateSession(ctx, workspace)
	if err != nil {
		c.failed(seq, err)
		return models.ChatSession{}, err
	}
	c.loaded(seq, session, nil)
	return session, nil
}

// Switch replaces the visible conversation with the history of sessionID.
func (c *Coordinator) Switch(ctx context.Context, workspace, sessionID string) error {
	if workspace == "" {
		return errors.InvalidInput("workspace", "must not be empty")
	}
	if sessionID == "" {
		return errors.InvalidInput("session id", "must not be empty")
	}
	c.ops.RLock()
	defer c.ops.RUnlock()
	return c.switchTo(ctx, workspace, sessionID)
}

func (c *Coordinator) switchTo(ctx context.Context, workspace, sessionID string) error {
	seq := c.begin(workspace)

	messages, err := c.history.LoadSession(ctx, workspace, sessionID)
	if err != nil {
		c.failed(seq, err)
		return err
	}
	c.loaded(seq, models.ChatSession{ID: sessionID, DisplayName: models.SessionName(sessionID)}, messages)
	return nil
}

// Open resumes the newest session of workspace, creating one when none exist.
func (c *Coordinator) Open(ctx context.Context, workspace string) error {
	if workspace == "" {
		return errors.InvalidInput("workspace", "must not be empty")
	}
	c.ops.RLock()
	defer c.ops.RUnlock()

	sessions, err := c.history.ListSessions(ctx, workspace)
	if err != nil {
		seq := c.begin(workspace)
		c.failed(seq, err)
		return err
	}
	if len(sessions) == 0 {
		_, err := c.newChat(ctx, workspace)
		return err
	}
	return c.switchTo(ctx, workspace, sessions[0].ID)
}

// Submit asks query in the current session of workspace. A stream still
// running for an earlier query is superseded. Submit blocks while a session
// change is loading so the stream always targets the loaded conversation.
func (c *Coordinator) Submit(ctx context.Context, workspace, query string) (*chat.Stream, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	snap := c.store.Snapshot()
	if workspace == "" {
		workspace = snap.Workspace
	}
	var sessionID string
	if snap.Session != nil && snap.Workspace == workspace {
		sessionID = snap.Session.ID
	}
	return c.chat.Submit(ctx, chat.Request{Workspace: workspace, SessionID: sessionID, Query: query})
}

func (c *Coordinator) begin(workspace string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.store.Dispatch(store.SessionSwitching{Seq: c.seq, Workspace: workspace})
	return c.seq
}

func (c *Coordinator) loaded(seq uint64, session models.ChatSession, messages []models.ChatMessage) {
	if !c.store.Dispatch(store.SessionLoaded{Seq: seq, Session: session, Messages: messages}) {
		c.logger.WithField("session", session.ID).Debug("Session load superseded by a newer switch")
	}
}

func (c *Coordinator) failed(seq uint64, err error) {
	c.logger.WithError(err).Warn("Failed to load chat session")
	c.store.Dispatch(store.SessionLoadFailed{Seq: seq, Reason: err.Error()})
}
