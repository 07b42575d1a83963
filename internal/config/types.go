// Package config provides configuration types for the lens host.
package config

// Config represents the main lens configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Engine  EngineConfig  `toml:"engine"`
	Cloud   CloudConfig   `toml:"cloud"`
	Router  RouterConfig  `toml:"router"`
	Logging LoggingConfig `toml:"logging"`
	Paths   PathsConfig   `toml:"paths"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// EngineConfig configures the local inference runtime.
type EngineConfig struct {
	RuntimeURL         string `toml:"runtime_url"`
	KeepAlive          string `toml:"keep_alive"`
	LoadTimeoutSeconds int    `toml:"load_timeout_seconds"` // 0 = unbounded
}

// CloudConfig configures the cloud fallback client. The endpoint URL and
// API key are user settings, not configuration.
type CloudConfig struct {
	Model     string `toml:"model"`
	TimeoutMs int    `toml:"timeout_ms"`
	MaxTokens int    `toml:"max_tokens"`

	// PricePerMillion estimates cloud spend in dollars per million tokens.
	PricePerMillion float64 `toml:"price_per_million"`
}

// RouterConfig configures tier selection.
type RouterConfig struct {
	LocalTimeoutMs int  `toml:"local_timeout_ms"`
	CacheSize      int  `toml:"cache_size"`
	LazyInit       bool `toml:"lazy_init"`
	DedupInflight  bool `toml:"dedup_inflight"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `toml:"level"`  // debug, info, warn, error
	Format      string `toml:"format"` // json, console
	Development bool   `toml:"development"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	DataDir    string `toml:"data_dir"`
	SettingsDB string `toml:"settings_db"`
	LockFile   string `toml:"lock_file"`
}
