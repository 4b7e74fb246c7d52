// Package channel maintains the reconnecting websocket that carries indexing
// progress events from the backend.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/models"
	"github.com/grovetools/ragsync/pkg/progress"
	"github.com/grovetools/ragsync/pkg/store"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxAttempts    = 5
	DefaultDialTimeout    = 10 * time.Second

	writeWait = 10 * time.Second

	stopCommand = "stop"
)

// Dispatcher receives the actions produced by the channel.
type Dispatcher interface {
	Dispatch(store.Action) bool
}

// Options configures a Channel. Zero values fall back to defaults.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	MaxAttempts    int
	// PingInterval enables keepalive pings when positive.
	PingInterval time.Duration
	DialTimeout  time.Duration
	Dial         DialFunc
	Scheduler    Scheduler
	Logger       *logrus.Entry
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
)

// Channel is one logical progress connection. Physical connections come and
// go underneath it; each carries a generation number so that callbacks from
// a replaced connection are ignored.
type Channel struct {
	opts       Options
	dispatcher Dispatcher
	logger     *logrus.Entry

	mu        sync.Mutex
	state     connState
	conn      Conn
	gen       uint64
	attempts  int
	exhausted bool
	torn      bool
	timer     Timer
	stopPing  chan struct{}

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Channel that reports to dispatcher.
func New(opts Options, dispatcher Dispatcher) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	} else if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Dial == nil {
		opts.Dial = WebsocketDialer(opts.DialTimeout)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger()).WithField("component", "channel")
	}
	return &Channel{
		opts:       opts,
		dispatcher: dispatcher,
		logger:     logger.WithField("url", opts.URL),
	}
}

// Connect opens the channel. It is a no-op while a connection is open or
// being dialed. After the reconnect budget is exhausted, Connect starts a
// fresh budget. A failed dial is returned and a reconnect is scheduled.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return nil
	}
	if c.exhausted {
		c.attempts = 0
		c.exhausted = false
	}
	c.torn = false
	c.stopTimerLocked()
	gen := c.beginDialLocked()
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

// Disconnect closes the connection and cancels any pending reconnect. It
// returns once the connection's goroutines have exited.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	c.torn = true
	c.gen++
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	c.state = stateIdle
	c.dispatcher.Dispatch(store.ConnectionChanged{Status: models.ConnectionDisconnected})
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.wg.Wait()
	c.logger.Debug("Progress channel disconnected")
	return err
}

// SendStop asks the backend to stop the running indexing job. It fails with
// CHANNEL_NOT_OPEN unless a connection is open.
func (c *Channel) SendStop() error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == stateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return errors.ChannelNotOpen(stopCommand)
	}
	if err := c.write(conn, websocket.TextMessage, []byte(stopCommand)); err != nil {
		return errors.Wrap(err, errors.ErrCodeChannelNotOpen, "failed to send stop command")
	}
	c.logger.Info("Sent stop command")
	return nil
}

// Status reports the state of the current connection.
func (c *Channel) Status() models.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		return models.ConnectionConnected
	case stateConnecting:
		return models.ConnectionConnecting
	}
	return models.ConnectionDisconnected
}

// Attempts returns the number of reconnects scheduled since the last
// successful connection.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Channel) beginDialLocked() uint64 {
	c.gen++
	c.state = stateConnecting
	c.dispatcher.Dispatch(store.ConnectionChanged{Status: models.ConnectionConnecting})
	return c.gen
}

func (c *Channel) dial(ctx context.Context, gen uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, err := c.opts.Dial(ctx, c.opts.URL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.torn {
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}

	if err != nil {
		c.state = stateIdle
		c.logger.WithError(err).Warn("Failed to connect progress channel")
		c.scheduleLocked()
		return errors.ConnectFailed(c.opts.URL, err)
	}

	c.conn = conn
	c.state = stateOpen
	c.attempts = 0
	c.dispatcher.Dispatch(store.ConnectionChanged{Status: models.ConnectionConnected})
	c.logger.Info("Progress channel connected")

	c.wg.Add(1)
	go c.readLoop(conn, gen)
	if c.opts.PingInterval > 0 {
		c.stopPing = make(chan struct{})
		c.wg.Add(1)
		go c.pingLoop(conn, c.stopPing)
	}
	return nil
}

func (c *Channel) readLoop(conn Conn, gen uint64) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Error("Recovered panic in progress read loop")
			c.handleClose(gen, fmt.Errorf("read loop panic: %v", r))
		}
	}()

	pongWait := c.opts.PingInterval * 2
	extend := func() {
		if pongWait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
	if pongWait > 0 {
		extend()
		conn.SetPongHandler(func(string) error {
			extend()
			return nil
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		extend()

		if !c.current(gen) {
			return
		}
		ev, err := progress.ParseEvent(data)
		if err != nil {
			c.logger.WithError(errors.MalformedMessage("progress", err)).Warn("Dropping progress message")
			continue
		}
		c.dispatcher.Dispatch(store.ProgressReceived{Event: ev})
	}
}

func (c *Channel) pingLoop(conn Conn, stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.write(conn, websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Debug("Ping failed")
				return
			}
		}
	}
}

func (c *Channel) write(conn Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && c.state == stateOpen
}

func (c *Channel) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != stateOpen {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	c.state = stateIdle
	c.logger.WithError(cause).Warn("Progress channel closed")
	c.scheduleLocked()
}

func (c *Channel) scheduleLocked() {
	c.dispatcher.Dispatch(store.ConnectionChanged{Status: models.ConnectionDisconnected})
	if c.torn {
		return
	}

	if c.attempts >= c.opts.MaxAttempts {
		c.exhausted = true
		exhausted := errors.ChannelExhausted(c.attempts, c.opts.ReconnectDelay)
		c.logger.WithField("attempts", c.attempts).Error("Progress channel reconnect budget exhausted")
		c.dispatcher.Dispatch(store.ChannelExhausted{Attempts: c.attempts, Reason: exhausted.Message})
		return
	}

	c.attempts++
	gen := c.gen
	c.logger.WithFields(logrus.Fields{
		"attempt": c.attempts,
		"delay":   c.opts.ReconnectDelay,
	}).Info("Scheduling progress channel reconnect")
	c.timer = c.opts.Scheduler.AfterFunc(c.opts.ReconnectDelay, func() {
		c.reconnect(gen)
	})
}

func (c *Channel) reconnect(scheduledGen uint64) {
	c.mu.Lock()
	if c.torn || scheduledGen != c.gen || c.state != stateIdle {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	gen := c.beginDialLocked()
	c.mu.Unlock()

	_ = c.dial(context.Background(), gen)
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
