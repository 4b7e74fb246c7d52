// Package engine assembles the client core from configuration and owns its
// lifecycle.
package engine

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/logging"
	"github.com/grovetools/ragsync/pkg/api"
	"github.com/grovetools/ragsync/pkg/channel"
	"github.com/grovetools/ragsync/pkg/chat"
	"github.com/grovetools/ragsync/pkg/session"
	"github.com/grovetools/ragsync/pkg/store"
)

// Options are the seams tests use to replace transports. Zero values use
// the real ones.
type Options struct {
	Dial       channel.DialFunc
	Scheduler  channel.Scheduler
	HTTPClient *http.Client
}

// Engine wires the store, the progress channel, the REST client, the chat
// consumer and the session coordinator.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	channel  *channel.Channel
	client   *api.Client
	chat     *chat.Consumer
	sessions *session.Coordinator
	logger   *logrus.Entry
}

// New builds an engine. Nothing connects until Start.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.NewLogger("engine")

	progressURL, err := channel.ProgressURL(cfg.Server.BaseURL, cfg.Server.ProgressPath)
	if err != nil {
		return nil, err
	}

	st := store.New(store.WithLogger(logging.NewLogger("store")))

	ch := channel.New(channel.Options{
		URL:            progressURL,
		ReconnectDelay: cfg.Channel.ReconnectDelay.Std(),
		MaxAttempts:    cfg.Channel.MaxAttempts,
		PingInterval:   cfg.Channel.PingInterval.Std(),
		DialTimeout:    cfg.Channel.DialTimeout.Std(),
		Dial:           opts.Dial,
		Scheduler:      opts.Scheduler,
		Logger:         logging.NewLogger("channel"),
	}, st)

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout.Std(), logging.NewLogger("api"))

	consumer := chat.New(chat.Options{
		URL:            strings.TrimSuffix(cfg.Server.BaseURL, "/") + cfg.Chat.Path,
		HTTPClient:     opts.HTTPClient,
		ReadBufferSize: cfg.Chat.ReadBufferSize,
		MaxLineBytes:   cfg.Chat.MaxLineBytes,
		Logger:         logging.NewLogger("chat"),
	}, st)

	coordinator := session.New(st, client, consumer, logging.NewLogger("session"))

	logger.WithFields(logrus.Fields{
		"base_url":  cfg.Server.BaseURL,
		"progress":  progressURL,
		"workspace": cfg.Workspace,
	}).Debug("Engine configured")

	return &Engine{
		cfg:      cfg,
		store:    st,
		channel:  ch,
		client:   client,
		chat:     consumer,
		sessions: coordinator,
		logger:   logger,
	}, nil
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store { return e.store }

// Client returns the REST client.
func (e *Engine) Client() *api.Client { return e.client }

// Sessions returns the session coordinator.
func (e *Engine) Sessions() *session.Coordinator { return e.sessions }

// Channel returns the progress channel.
func (e *Engine) Channel() *channel.Channel { return e.channel }

// Workspace resolves ws against the configured default.
func (e *Engine) Workspace(ws string) string {
	if ws != "" {
		return ws
	}
	return e.cfg.Workspace
}

// Start connects the progress channel and hydrates indexing state from the
// status endpoint concurrently. A failed connect is not an error: the
// channel keeps retrying on its own. A failed hydration is returned.
func (e *Engine) Start(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		if err := e.channel.Connect(ctx); err != nil {
			e.logger.WithError(err).Warn("Progress channel not connected, retrying in background")
		}
		return nil
	})

	g.Go(func() error {
		return e.Hydrate(ctx)
	})

	return g.Wait()
}

// Hydrate applies the backend's current indexing status to the store.
func (e *Engine) Hydrate(ctx context.Context) error {
	status, err := e.client.IndexingStatus(ctx)
	if err != nil {
		return err
	}
	e.store.Dispatch(store.IndexingHydrated{Running: status.IsRunning, Data: status.Progress})
	e.logger.WithField("running", status.IsRunning).Debug("Indexing state hydrated")
	return nil
}

// OpenSession loads the newest session of ws unless it is already the
// current one.
func (e *Engine) OpenSession(ctx context.Context, ws string) error {
	ws = e.Workspace(ws)
	snap := e.store.Snapshot()
	if snap.Workspace == ws && snap.Session != nil {
		return nil
	}
	return e.sessions.Open(ctx, ws)
}

// Ask submits query in the current session of ws, opening one first if
// needed.
func (e *Engine) Ask(ctx context.Context, ws, query string) (*chat.Stream, error) {
	ws = e.Workspace(ws)
	if ws == "" {
		return nil, errors.InvalidInput("workspace", "must not be empty")
	}
	if err := e.OpenSession(ctx, ws); err != nil {
		return nil, err
	}
	return e.sessions.Submit(ctx, ws, query)
}

// StartIndexing asks the backend to start indexing.
func (e *Engine) StartIndexing(ctx context.Context) error {
	resp, err := e.client.StartIndexing(ctx)
	if err != nil {
		return err
	}
	e.logger.Info(resp.Message)
	return nil
}

// StopIndexing sends the stop command over the channel when it is open and
// falls back to the REST endpoint otherwise.
func (e *Engine) StopIndexing(ctx context.Context) error {
	err := e.channel.SendStop()
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.ErrCodeChannelNotOpen) {
		e.logger.WithError(err).Warn("Stop over channel failed, using REST")
	}
	resp, err := e.client.StopIndexing(ctx)
	if err != nil {
		return err
	}
	e.logger.Info(resp.Message)
	return nil
}

// Reconnect reopens the progress channel with a fresh retry budget.
func (e *Engine) Reconnect(ctx context.Context) error {
	return e.channel.Connect(ctx)
}

// Close disconnects the progress channel.
func (e *Engine) Close() error {
	return e.channel.Disconnect()
}
