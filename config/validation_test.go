package config

import (
	"testing"

	"github.com/grovetools/ragsync/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"https base", func(c *Config) { c.Server.BaseURL = "https://rag.example.com" }, false},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://rag.example.com" }, true},
		{"no host", func(c *Config) { c.Server.BaseURL = "http://" }, true},
		{"relative progress path", func(c *Config) { c.Server.ProgressPath = "api/ws" }, true},
		{"relative chat path", func(c *Config) { c.Chat.Path = "search" }, true},
		{"workspace with slash", func(c *Config) { c.Workspace = "a/b" }, true},
		{"negative delay", func(c *Config) { c.Channel.ReconnectDelay = -1 }, true},
		{"negative attempts", func(c *Config) { c.Channel.MaxAttempts = -1 }, true},
		{"negative buffer", func(c *Config) { c.Chat.ReadBufferSize = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeConfigValidation) {
				t.Errorf("Expected CONFIG_VALIDATION, got %v", err)
			}
		})
	}
}
