package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grovetools/ragsync/errors"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateBaseURL(c.Server.BaseURL); err != nil {
		return err
	}
	if err := validatePath("server.progress_path", c.Server.ProgressPath); err != nil {
		return err
	}
	if err := validatePath("chat.path", c.Chat.Path); err != nil {
		return err
	}

	if strings.ContainsAny(c.Workspace, "/?#") {
		return errors.New(errors.ErrCodeConfigValidation, "workspace cannot contain '/', '?' or '#'").
			WithDetail("workspace", c.Workspace)
	}

	durations := []struct {
		field string
		value Duration
	}{
		{"server.timeout", c.Server.Timeout},
		{"channel.reconnect_delay", c.Channel.ReconnectDelay},
		{"channel.ping_interval", c.Channel.PingInterval},
		{"channel.dial_timeout", c.Channel.DialTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s cannot be negative", d.field)).
				WithDetail(d.field, d.value.String())
		}
	}

	if c.Channel.MaxAttempts < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "channel.max_attempts cannot be negative").
			WithDetail("channel.max_attempts", c.Channel.MaxAttempts)
	}
	if c.Chat.ReadBufferSize < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "chat.read_buffer_size cannot be negative").
			WithDetail("chat.read_buffer_size", c.Chat.ReadBufferSize)
	}
	if c.Chat.MaxLineBytes < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "chat.max_line_bytes cannot be negative").
			WithDetail("chat.max_line_bytes", c.Chat.MaxLineBytes)
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "server.base_url is not a valid URL").
			WithDetail("base_url", raw)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("server.base_url has unsupported scheme %q", u.Scheme)).
			WithDetail("base_url", raw)
	}
	if u.Host == "" {
		return errors.New(errors.ErrCodeConfigValidation, "server.base_url has no host").
			WithDetail("base_url", raw)
	}
	return nil
}

func validatePath(field, path string) error {
	if !strings.HasPrefix(path, "/") {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must start with '/'", field)).
			WithDetail(field, path)
	}
	return nil
}
