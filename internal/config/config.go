// Package config handles lens configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lingua-lens/lens/internal/errors"
)

// DefaultPath returns ~/.lens/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".lens", "config.toml")
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".lens")

	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:7411",
		},
		Engine: EngineConfig{
			RuntimeURL:         "http://localhost:11434",
			KeepAlive:          "30m",
			LoadTimeoutSeconds: 0,
		},
		Cloud: CloudConfig{
			Model:           "gpt-4o-mini",
			TimeoutMs:       10_000,
			MaxTokens:       150,
			PricePerMillion: 0.50,
		},
		Router: RouterConfig{
			LocalTimeoutMs: 15_000,
			CacheSize:      4096,
			LazyInit:       true,
			DedupInflight:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Paths: PathsConfig{
			DataDir:    dataDir,
			SettingsDB: filepath.Join(dataDir, "settings.db"),
			LockFile:   filepath.Join(dataDir, "lens.lock"),
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "failed to read config", errors.CategorySystem)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewBuilder(errors.CodeConfigInvalid, "failed to parse config "+configPath).
			User().
			Wrap(err).
			Build()
	}

	cfg = expandPaths(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is empty")
	}
	if c.Engine.RuntimeURL == "" {
		problems = append(problems, "engine.runtime_url is empty")
	}
	if c.Engine.LoadTimeoutSeconds < 0 {
		problems = append(problems, "engine.load_timeout_seconds is negative")
	}
	if c.Cloud.TimeoutMs <= 0 {
		problems = append(problems, "cloud.timeout_ms must be positive")
	}
	if c.Cloud.MaxTokens <= 0 {
		problems = append(problems, "cloud.max_tokens must be positive")
	}
	if c.Cloud.PricePerMillion < 0 {
		problems = append(problems, "cloud.price_per_million is negative")
	}
	if c.Router.LocalTimeoutMs <= 0 {
		problems = append(problems, "router.local_timeout_ms must be positive")
	}
	if c.Router.CacheSize <= 0 {
		problems = append(problems, "router.cache_size must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not json or console", c.Logging.Format))
	}
	if len(problems) == 0 {
		return nil
	}

	return errors.NewBuilder(errors.CodeConfigInvalid, "invalid configuration: "+strings.Join(problems, "; ")).
		User().
		WithSuggestion("Edit the config file or delete it to restore defaults").
		Build()
}

// LocalTimeout returns router.local_timeout_ms as a duration.
func (c *Config) LocalTimeout() time.Duration {
	return time.Duration(c.Router.LocalTimeoutMs) * time.Millisecond
}

// CloudTimeout returns cloud.timeout_ms as a duration.
func (c *Config) CloudTimeout() time.Duration {
	return time.Duration(c.Cloud.TimeoutMs) * time.Millisecond
}

// LoadTimeout returns engine.load_timeout_seconds as a duration.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Engine.LoadTimeoutSeconds) * time.Second
}

// expandPaths expands ~ and environment variables in paths.
func expandPaths(cfg *Config) *Config {
	cfg.Paths.DataDir = expandPath(cfg.Paths.DataDir)
	cfg.Paths.SettingsDB = expandPath(cfg.Paths.SettingsDB)
	cfg.Paths.LockFile = expandPath(cfg.Paths.LockFile)
	return cfg
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, p[1:])
	}
	return p
}
