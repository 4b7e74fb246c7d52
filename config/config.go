package config

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/ragsync/errors"
	"github.com/grovetools/ragsync/pkg/paths"
)

const (
	DefaultVersion        = "1"
	DefaultBaseURL        = "http://localhost:8000"
	DefaultProgressPath   = "/api/ws/indexing"
	DefaultChatPath       = "/api/search/"
	DefaultTimeout        = Duration(30 * time.Second)
	DefaultReconnectDelay = Duration(3 * time.Second)
	DefaultMaxAttempts    = 5
	DefaultPingInterval   = Duration(30 * time.Second)
	DefaultDialTimeout    = Duration(10 * time.Second)
	DefaultReadBufferSize = 4096
	DefaultMaxLineBytes   = 1 << 20
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var projectNames = []string{
	"ragsync.yml",
	"ragsync.yaml",
	"ragsync.toml",
	".ragsync.yml",
	".ragsync.yaml",
}

var overrideNames = []string{
	"ragsync.override.yml",
	"ragsync.override.yaml",
	"ragsync.override.toml",
}

// Default returns a config holding only default values.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultBaseURL
	}
	if c.Server.ProgressPath == "" {
		c.Server.ProgressPath = DefaultProgressPath
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultTimeout
	}
	if c.Channel.ReconnectDelay == 0 {
		c.Channel.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Channel.MaxAttempts == 0 {
		c.Channel.MaxAttempts = DefaultMaxAttempts
	}
	if c.Channel.PingInterval == 0 {
		c.Channel.PingInterval = DefaultPingInterval
	}
	if c.Channel.DialTimeout == 0 {
		c.Channel.DialTimeout = DefaultDialTimeout
	}
	if c.Chat.Path == "" {
		c.Chat.Path = DefaultChatPath
	}
	if c.Chat.ReadBufferSize == 0 {
		c.Chat.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Chat.MaxLineBytes == 0 {
		c.Chat.MaxLineBytes = DefaultMaxLineBytes
	}
}

// LoadDefault loads the configuration for the current directory with
// hierarchical merging:
// 1. Global config ({config dir}/ragsync.yml) - base layer
// 2. Project config (ragsync.yml, searched upward) - overrides global
// 3. Local override (ragsync.override.yml) - overrides all
// 4. Environment (RAGSYNC_SERVER_URL, RAGSYNC_WORKSPACE)
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, discardLogger())
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging.
func LoadFromWithLogger(startDir string, logger *logrus.Entry) (*Config, error) {
	finalConfig := &Config{}

	if globalPath := GlobalConfigPath(); globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		globalConfig, err := readLayer(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
		} else {
			finalConfig = mergeConfigs(finalConfig, globalConfig)
		}
	}

	projectPath, err := FindConfigFile(startDir)
	if err != nil && !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	}
	if projectPath != "" {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		projectConfig, err := readLayer(projectPath)
		if err != nil {
			return nil, err
		}
		finalConfig = mergeConfigs(finalConfig, projectConfig)

		for _, name := range overrideNames {
			overridePath := filepath.Join(filepath.Dir(projectPath), name)
			if _, err := os.Stat(overridePath); err != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")
			overrideConfig, err := readLayer(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}
			finalConfig = mergeConfigs(finalConfig, overrideConfig)
		}
	}

	return finish(finalConfig)
}

// Load reads a single configuration file, applies defaults and the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := readLayer(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadFromBytes parses a YAML document.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := decode(data, "yaml")
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches from startDir up to the filesystem root for a
// project configuration file.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range projectNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// GlobalConfigPath returns the first existing global config file, or "".
func GlobalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"ragsync.yml", "ragsync.yaml", "ragsync.toml"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := decode(data, formatOf(path))
	if err != nil {
		if coded, ok := err.(*errors.Error); ok {
			return nil, coded.WithDetail("path", path)
		}
		return nil, err
	}
	cfg.Sources = []string{path}
	return cfg, nil
}

// decode parses one layer. TOML is decoded generically and re-encoded as
// YAML so both formats share the YAML unmarshalers.
func decode(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	if format == "toml" {
		var raw map[string]interface{}
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to convert TOML configuration")
		}
		expanded = converted
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	return &cfg, nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGSYNC_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("RAGSYNC_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
