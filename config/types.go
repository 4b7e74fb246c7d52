package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the merged ragsync configuration.
type Config struct {
	Version   string        `yaml:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1')"`
	Workspace string        `yaml:"workspace,omitempty" jsonschema:"description=Default workspace (bucket) for chat and sessions"`
	Server    ServerConfig  `yaml:"server,omitempty" jsonschema:"description=Backend connection settings"`
	Channel   ChannelConfig `yaml:"channel,omitempty" jsonschema:"description=Progress channel reconnect policy"`
	Chat      ChatConfig    `yaml:"chat,omitempty" jsonschema:"description=Streaming chat settings"`

	// Extensions captures all other top-level keys, such as "logging".
	Extensions map[string]interface{} `yaml:",inline" jsonschema:"-"`

	// Sources lists the files merged into this config, lowest precedence first.
	Sources []string `yaml:"-" json:"-" jsonschema:"-"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	BaseURL      string   `yaml:"base_url,omitempty" jsonschema:"description=Backend base URL (http or https)"`
	ProgressPath string   `yaml:"progress_path,omitempty" jsonschema:"description=Websocket path of the indexing progress channel"`
	Timeout      Duration `yaml:"timeout,omitempty" jsonschema:"description=Timeout for non-streaming requests"`
}

// ChannelConfig controls the progress channel.
type ChannelConfig struct {
	ReconnectDelay Duration `yaml:"reconnect_delay,omitempty" jsonschema:"description=Fixed delay between reconnect attempts"`
	MaxAttempts    int      `yaml:"max_attempts,omitempty" jsonschema:"minimum=0,description=Automatic reconnect attempts before giving up"`
	PingInterval   Duration `yaml:"ping_interval,omitempty" jsonschema:"description=Keepalive ping interval (0 disables)"`
	DialTimeout    Duration `yaml:"dial_timeout,omitempty" jsonschema:"description=Websocket handshake timeout"`
}

// ChatConfig controls chat submission and stream framing.
type ChatConfig struct {
	Path           string `yaml:"path,omitempty" jsonschema:"description=Chat submission path"`
	ReadBufferSize int    `yaml:"read_buffer_size,omitempty" jsonschema:"minimum=0,description=Bytes read from the response body per call"`
	MaxLineBytes   int    `yaml:"max_line_bytes,omitempty" jsonschema:"minimum=0,description=Longest stream line kept before it is dropped"`
}

// Duration is a time.Duration that reads as "3s" or as a number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// ParseDuration parses "1m30s" style strings or plain seconds.
func ParseDuration(s string) (Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(d), nil
}

// UnmarshalYAML accepts strings and numbers.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalJSON renders the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// JSONSchema describes the accepted duration forms.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$|^[0-9]+(\.[0-9]+)?$`},
			{Type: "number", Minimum: json.Number("0")},
		},
	}
}

// UnmarshalExtension decodes a top-level extension section, such as
// "logging", into target. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
