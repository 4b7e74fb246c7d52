package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// DialFunc opens a websocket connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer returns a DialFunc backed by gorilla/websocket.
func WebsocketDialer(handshakeTimeout time.Duration) DialFunc {
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, u string) (Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, u, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
			}
			return nil, err
		}
		return conn, nil
	}
}

// ProgressURL joins the server base URL and the channel path, switching the
// scheme to ws or wss.
func ProgressURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in server url", u.Scheme)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
