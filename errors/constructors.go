package errors

import (
	"fmt"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// ChannelNotOpen is returned when a command is sent while the progress channel is down.
func ChannelNotOpen(command string) *Error {
	return New(ErrCodeChannelNotOpen, fmt.Sprintf("progress channel is not open, dropped %q", command)).
		WithDetail("command", command)
}

// ChannelExhausted creates the terminal error raised after the reconnect budget is spent.
func ChannelExhausted(attempts int, delay time.Duration) *Error {
	return New(ErrCodeChannelExhausted,
		fmt.Sprintf("progress channel lost after %d reconnect attempts; reconnect manually", attempts)).
		WithDetail("attempts", attempts).
		WithDetail("delay", delay.String())
}

// ConnectFailed wraps a dial failure for the given URL.
func ConnectFailed(url string, err error) *Error {
	return Wrap(err, ErrCodeConnectFailed, fmt.Sprintf("failed to connect to %s", url)).
		WithDetail("url", url)
}

// RequestFailed describes a non-successful backend response.
func RequestFailed(method, path string, status int, detail string) *Error {
	msg := fmt.Sprintf("%s %s returned status %d", method, path, status)
	err := New(ErrCodeRequestFailed, msg).
		WithDetail("method", method).
		WithDetail("path", path).
		WithDetail("status", status)
	if detail != "" {
		err.Message = fmt.Sprintf("%s: %s", msg, detail)
		err.WithDetail("detail", detail)
	}
	return err
}

// MalformedMessage wraps a decode failure of a single inbound record.
func MalformedMessage(source string, err error) *Error {
	return Wrap(err, ErrCodeMalformedMessage, fmt.Sprintf("malformed %s message", source)).
		WithDetail("source", source)
}

// InvalidInput creates an input validation error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}
