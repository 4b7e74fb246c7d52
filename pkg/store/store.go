package store

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/progress"
)

// DefaultSubscriberBuffer is the channel capacity given to each subscriber.
const DefaultSubscriberBuffer = 16

// Store is the single owner of client state. Dispatches are applied one at a
// time in call order, and each applied dispatch produces one Change.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers map[<-chan Change]chan Change
	bufferSize  int
	logger      *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for dropped and unknown actions.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSubscriberBuffer sets the channel capacity of new subscriptions.
func WithSubscriberBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// New creates a Store with an idle run and a disconnected channel.
func New(opts ...Option) *Store {
	s := &Store{
		state: State{
			Indexing:   models.NewIndexingRun(),
			Connection: models.ConnectionDisconnected,
		},
		subscribers: make(map[<-chan Change]chan Change),
		bufferSize:  DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "store")
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Copy()
}

// IsActive reports whether handle identifies the stream currently allowed
// to write into the conversation.
func (s *Store) IsActive(handle models.StreamHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActive(handle)
}

// Dispatch applies an action. It returns true when the state changed, in
// which case every subscriber is notified.
func (s *Store) Dispatch(a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.apply(a) {
		return false
	}
	s.state.Version++

	change := Change{Action: a.Name(), State: s.state.Copy()}
	for _, ch := range s.subscribers {
		deliver(ch, change)
	}
	return true
}

// Subscribe returns a channel receiving a Change per applied dispatch. A
// subscriber that falls behind loses its oldest pending changes, never the
// newest.
func (s *Store) Subscribe() <-chan Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Change, s.bufferSize)
	s.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch <-chan Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(c)
	}
}

// deliver sends without blocking, evicting the oldest queued change when
// the buffer is full.
func deliver(ch chan Change, change Change) {
	for {
		select {
		case ch <- change:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *Store) isActive(handle models.StreamHandle) bool {
	return handle != "" && s.state.Streaming && handle == s.state.ActiveStream
}

func (s *Store) apply(a Action) bool {
	st := &s.state

	switch a := a.(type) {
	case ProgressReceived:
		run, known := progress.Reduce(st.Indexing, a.Event)
		if !known {
			s.logger.WithField("type", a.Event.Type).Debug("Ignoring unknown progress event")
			return false
		}
		if run == st.Indexing {
			return false
		}
		st.Indexing = run
		return true

	case IndexingHydrated:
		run := progress.Hydrate(st.Indexing, a.Running, a.Data)
		if run == st.Indexing {
			return false
		}
		st.Indexing = run
		return true

	case ConnectionChanged:
		if st.Connection == a.Status {
			return false
		}
		st.Connection = a.Status
		if a.Status == models.ConnectionConnected {
			st.ChannelError = ""
		}
		return true

	case ChannelExhausted:
		st.Connection = models.ConnectionDisconnected
		st.ChannelError = a.Reason
		return true

	case StreamStarted:
		if a.Handle == "" {
			return false
		}
		st.Messages = append(st.Messages,
			models.ChatMessage{Role: models.RoleUser, Content: a.Query, Timestamp: a.At},
			models.ChatMessage{Role: models.RoleAssistant, Timestamp: a.At},
		)
		st.ActiveStream = a.Handle
		st.Streaming = true
		return true

	case SourcesReceived:
		if !s.isActive(a.Handle) {
			return s.stale(a, a.Handle)
		}
		msg := &st.Messages[len(st.Messages)-1]
		msg.Sources = append([]models.SourceRef(nil), a.Sources...)
		return true

	case ContentReceived:
		if !s.isActive(a.Handle) {
			return s.stale(a, a.Handle)
		}
		if a.Delta == "" {
			return false
		}
		st.Messages[len(st.Messages)-1].Content += a.Delta
		return true

	case StreamFailed:
		if !s.isActive(a.Handle) {
			return s.stale(a, a.Handle)
		}
		msg := &st.Messages[len(st.Messages)-1]
		if !a.Received || msg.Content == "" {
			msg.Role = models.RoleError
			msg.Content = "Error: " + a.Reason
		} else {
			msg.Content += "\n\n[Error: " + a.Reason + "]"
		}
		st.ActiveStream = ""
		st.Streaming = false
		return true

	case StreamCompleted:
		if !s.isActive(a.Handle) {
			return s.stale(a, a.Handle)
		}
		st.ActiveStream = ""
		st.Streaming = false
		return true

	case SessionSwitching:
		st.SwitchSeq = a.Seq
		st.Workspace = a.Workspace
		st.Session = nil
		st.SessionError = ""
		st.Messages = nil
		st.ActiveStream = ""
		st.Streaming = false
		return true

	case SessionLoaded:
		if a.Seq != st.SwitchSeq {
			s.logger.WithField("seq", a.Seq).Debug("Dropping superseded session load")
			return false
		}
		session := a.Session
		st.Session = &session
		st.SessionError = ""
		// A stream started while the load was in flight targeted the cleared
		// conversation and must not write into the loaded history.
		st.ActiveStream = ""
		st.Streaming = false
		st.Messages = make([]models.ChatMessage, len(a.Messages))
		for i, m := range a.Messages {
			st.Messages[i] = m.Clone()
		}
		return true

	case SessionLoadFailed:
		if a.Seq != st.SwitchSeq {
			return false
		}
		st.SessionError = a.Reason
		return true
	}

	s.logger.WithField("action", a.Name()).Warn("Unhandled action")
	return false
}

func (s *Store) stale(a Action, handle models.StreamHandle) bool {
	s.logger.WithFields(logrus.Fields{
		"action": a.Name(),
		"handle": handle,
	}).Debug("Dropping action from superseded stream")
	return false
}
