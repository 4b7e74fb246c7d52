// Package chat submits queries to the streaming chat endpoint and folds the
// response into the store.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/api"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/sse"
	"github.com/grovetools/ragsync/pkg/store"
)

// Dispatcher is the part of the store the consumer writes to.
type Dispatcher interface {
	Dispatch(store.Action) bool
	IsActive(models.StreamHandle) bool
}

// Options configures a Consumer.
type Options struct {
	// URL is the full chat endpoint, e.g. http://localhost:8000/api/search/.
	URL            string
	HTTPClient     *http.Client
	ReadBufferSize int
	MaxLineBytes   int
	Logger         *logrus.Entry
	NewHandle      func() models.StreamHandle
	Now            func() time.Time
}

// Request is one query against a workspace.
type Request struct {
	Workspace string
	SessionID string
	Query     string
}

type chatRequest struct {
	BucketName string `json:"bucket_name"`
	Query      string `json:"query"`
	SessionID  string `json:"session_id,omitempty"`
}

type record struct {
	Type    string              `json:"type"`
	Content string              `json:"content"`
	Message string              `json:"message"`
	Sources []models.WireSource `json:"sources"`
}

// Consumer issues chat requests. Each Submit supersedes the previous one.
type Consumer struct {
	opts       Options
	dispatcher Dispatcher
	client     *http.Client
	logger     *logrus.Entry
}

// New creates a Consumer.
func New(opts Options, dispatcher Dispatcher) *Consumer {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = sse.DefaultReadBufferSize
	}
	if opts.NewHandle == nil {
		opts.NewHandle = func() models.StreamHandle {
			return models.StreamHandle(uuid.NewString())
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	client := opts.HTTPClient
	if client == nil {
		// Streaming responses have no overall deadline.
		client = &http.Client{Timeout: 0}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "chat")
	}
	return &Consumer{opts: opts, dispatcher: dispatcher, client: client, logger: logger}
}

// Stream is one in-flight response.
type Stream struct {
	handle models.StreamHandle
	done   chan struct{}

	mu         sync.Mutex
	err        error
	superseded bool
}

// Handle returns the token fencing this stream's writes.
func (s *Stream) Handle() models.StreamHandle { return s.handle }

// Done is closed when the response has been fully consumed or abandoned.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the failure that ended the stream, if any. It is only
// meaningful after Done is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Superseded reports whether the stream stopped because a newer one replaced it.
func (s *Stream) Superseded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.superseded
}

// Wait blocks until the stream ends or ctx is done.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) finish(err error, superseded bool) {
	s.mu.Lock()
	s.err = err
	s.superseded = superseded
	s.mu.Unlock()
	close(s.done)
}

// Submit posts the query and starts reading the response in the background.
// The user message and an empty assistant placeholder are in the store when
// Submit returns.
func (c *Consumer) Submit(ctx context.Context, req Request) (*Stream, error) {
	query := strings.TrimSpace(req.Query)
	if req.Workspace == "" {
		return nil, errors.InvalidInput("workspace", "must not be empty")
	}
	if query == "" {
		return nil, errors.InvalidInput("query", "must not be empty")
	}

	body, err := json.Marshal(chatRequest{BucketName: req.Workspace, Query: query, SessionID: req.SessionID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode chat request")
	}

	s := &Stream{handle: c.opts.NewHandle(), done: make(chan struct{})}
	c.dispatcher.Dispatch(store.StreamStarted{Handle: s.handle, Query: query, At: c.opts.Now()})

	go c.run(ctx, s, body)
	return s, nil
}

func (c *Consumer) run(ctx context.Context, s *Stream, body []byte) {
	logger := c.logger.WithField("handle", s.handle)
	h := s.handle

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		c.fail(s, errors.Wrap(err, errors.ErrCodeStreamFailed, "failed to create chat request"), err.Error(), false)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.WithError(err).Warn("Chat request failed")
		c.fail(s, errors.Wrap(err, errors.ErrCodeStreamFailed, "chat request failed"), err.Error(), false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := api.ResponseError(resp, http.MethodPost, httpReq.URL.Path)
		logger.WithError(reqErr).Warn("Chat request rejected")
		c.fail(s, reqErr, reasonOf(reqErr), false)
		return
	}

	var (
		received   bool
		terminal   bool
		superseded bool
		streamErr  error
	)

	framer := sse.NewFramer(c.opts.MaxLineBytes)
	readErr := sse.ReadFields(resp.Body, framer, c.opts.ReadBufferSize, func(f sse.Field) bool {
		if !f.IsData() {
			return true
		}
		var rec record
		if err := json.Unmarshal([]byte(f.Value), &rec); err != nil {
			logger.WithError(errors.MalformedMessage("chat", err)).Warn("Skipping malformed record")
			return true
		}
		received = true

		var action store.Action
		switch rec.Type {
		case "sources":
			action = store.SourcesReceived{Handle: h, Sources: models.SourceRefs(rec.Sources)}
		case "content":
			action = store.ContentReceived{Handle: h, Delta: rec.Content}
		case "error":
			reason := rec.Message
			if reason == "" {
				reason = "unknown error"
			}
			streamErr = errors.New(errors.ErrCodeStreamFailed, reason)
			action = store.StreamFailed{Handle: h, Reason: reason, Received: true}
			terminal = true
		case "done":
			action = store.StreamCompleted{Handle: h}
			terminal = true
		default:
			logger.WithField("type", rec.Type).Debug("Skipping record of unknown type")
			return true
		}

		if !c.dispatcher.Dispatch(action) && !c.dispatcher.IsActive(h) {
			superseded = true
			terminal = false
			streamErr = nil
			return false
		}
		return !terminal
	})

	switch {
	case superseded:
		logger.Debug("Stream superseded, abandoning response")
		s.finish(nil, true)
	case terminal:
		s.finish(streamErr, false)
	case readErr != nil:
		logger.WithError(readErr).Warn("Chat stream interrupted")
		c.fail(s, errors.Wrap(readErr, errors.ErrCodeStreamFailed, "chat stream interrupted"), readErr.Error(), received)
	default:
		// End of body without a done record.
		c.dispatcher.Dispatch(store.StreamCompleted{Handle: h})
		s.finish(nil, false)
	}
}

func (c *Consumer) fail(s *Stream, err error, reason string, received bool) {
	applied := c.dispatcher.Dispatch(store.StreamFailed{Handle: s.handle, Reason: reason, Received: received})
	if !applied && !c.dispatcher.IsActive(s.handle) {
		s.finish(nil, true)
		return
	}
	s.finish(err, false)
}

func reasonOf(err *errors.Error) string {
	if detail, ok := err.Details["detail"].(string); ok && detail != "" {
		return detail
	}
	return err.Message
}
