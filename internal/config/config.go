package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	llvmhttp "github.com/milkyapps/llvmgr/internal/http"
	"github.com/milkyapps/llvmgr/internal/progress"
)

// Config defines configuration for the llvmgr CLI.
type Config struct {
	CacheDir   string         `yaml:"cache_dir"`
	Mirror     string         `yaml:"mirror"`
	BufferSize int64          `yaml:"buffer_size"`
	Jobs       int            `yaml:"jobs"`
	HTTP       HTTPConfig     `yaml:"http"`
	Log        LogConfig      `yaml:"log"`
	Progress   ProgressConfig `yaml:"progress"`
}

// HTTPConfig defines download behavior.
type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff"`
}

// LogConfig defines the log file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ProgressConfig defines progress rendering.
type ProgressConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Width        int           `yaml:"width"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		BufferSize: 16 * 1024,
		HTTP: HTTPConfig{
			Timeout:         30 * time.Second,
			RetryBackoff:    time.Second,
			RetryMaxBackoff: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Progress: ProgressConfig{
			TickInterval: 100 * time.Millisecond,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	CacheDir   string `yaml:"cache_dir"`
	Mirror     string `yaml:"mirror"`
	BufferSize string `yaml:"buffer_size"`
	Jobs       int    `yaml:"jobs"`
	HTTP       struct {
		Timeout         string `yaml:"timeout"`
		RetryAttempts   int    `yaml:"retry_attempts"`
		RetryBackoff    string `yaml:"retry_backoff"`
		RetryMaxBackoff string `yaml:"retry_max_backoff"`
	} `yaml:"http"`
	Log      LogConfig `yaml:"log"`
	Progress struct {
		TickInterval string `yaml:"tick_interval"`
		Width        int    `yaml:"width"`
	} `yaml:"progress"`
}

// Load returns the defaults, overlaid with the file at path (if path is not
// empty) and then with LLVMGR_ environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.CacheDir != "" {
		cfg.CacheDir = yc.CacheDir
	}
	if yc.Mirror != "" {
		cfg.Mirror = yc.Mirror
	}
	if yc.BufferSize != "" {
		size, err := progress.ParseBytes(yc.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse buffer_size: %w", err)
		}
		cfg.BufferSize = size
	}
	if yc.Jobs != 0 {
		cfg.Jobs = yc.Jobs
	}
	if err := setDuration(&cfg.HTTP.Timeout, yc.HTTP.Timeout, "http.timeout"); err != nil {
		return Config{}, err
	}
	if yc.HTTP.RetryAttempts != 0 {
		cfg.HTTP.RetryAttempts = yc.HTTP.RetryAttempts
	}
	if err := setDuration(&cfg.HTTP.RetryBackoff, yc.HTTP.RetryBackoff, "http.retry_backoff"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.HTTP.RetryMaxBackoff, yc.HTTP.RetryMaxBackoff, "http.retry_max_backoff"); err != nil {
		return Config{}, err
	}
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}
	if yc.Log.File != "" {
		cfg.Log.File = yc.Log.File
	}
	if err := setDuration(&cfg.Progress.TickInterval, yc.Progress.TickInterval, "progress.tick_interval"); err != nil {
		return Config{}, err
	}
	if yc.Progress.Width != 0 {
		cfg.Progress.Width = yc.Progress.Width
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the LLVMGR_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("LLVMGR_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("LLVMGR_MIRROR"); v != "" {
		c.Mirror = v
	}
	if v := os.Getenv("LLVMGR_BUFFER_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse LLVMGR_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = size
	}
	if err := envInt(&c.Jobs, "LLVMGR_JOBS"); err != nil {
		return err
	}
	if err := envDuration(&c.HTTP.Timeout, "LLVMGR_HTTP_TIMEOUT"); err != nil {
		return err
	}
	if err := envInt(&c.HTTP.RetryAttempts, "LLVMGR_RETRY_ATTEMPTS"); err != nil {
		return err
	}
	if err := envDuration(&c.HTTP.RetryBackoff, "LLVMGR_RETRY_BACKOFF"); err != nil {
		return err
	}
	if err := envDuration(&c.HTTP.RetryMaxBackoff, "LLVMGR_RETRY_MAX_BACKOFF"); err != nil {
		return err
	}
	if v := os.Getenv("LLVMGR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LLVMGR_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("LLVMGR_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if err := envDuration(&c.Progress.TickInterval, "LLVMGR_TICK_INTERVAL"); err != nil {
		return err
	}
	if err := envInt(&c.Progress.Width, "LLVMGR_WIDTH"); err != nil {
		return err
	}

	return nil
}

func envInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(dst *time.Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		return errors.New("config: buffer_size must be positive")
	}
	if c.Jobs < 0 {
		return errors.New("config: jobs must not be negative")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if c.HTTP.RetryAttempts < 0 {
		return errors.New("config: http.retry_attempts must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if c.Progress.TickInterval <= 0 {
		return errors.New("config: progress.tick_interval must be positive")
	}
	if c.Progress.Width < 0 {
		return errors.New("config: progress.width must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.CacheDir != "" {
		c.CacheDir = override.CacheDir
	}
	if override.Mirror != "" {
		c.Mirror = override.Mirror
	}
	if override.BufferSize != 0 {
		c.BufferSize = override.BufferSize
	}
	if override.Jobs != 0 {
		c.Jobs = override.Jobs
	}
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.RetryAttempts != 0 {
		c.HTTP.RetryAttempts = override.HTTP.RetryAttempts
	}
	if override.HTTP.RetryBackoff != 0 {
		c.HTTP.RetryBackoff = override.HTTP.RetryBackoff
	}
	if override.HTTP.RetryMaxBackoff != 0 {
		c.HTTP.RetryMaxBackoff = override.HTTP.RetryMaxBackoff
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	if override.Log.File != "" {
		c.Log.File = override.Log.File
	}
	if override.Progress.TickInterval != 0 {
		c.Progress.TickInterval = override.Progress.TickInterval
	}
	if override.Progress.Width != 0 {
		c.Progress.Width = override.Progress.Width
	}
	return c
}

// HTTPOptions converts the HTTP section into client options.
func (c *Config) HTTPOptions() llvmhttp.Options {
	opts := llvmhttp.DefaultOptions()
	opts.Timeout = c.HTTP.Timeout
	opts.RetryAttempts = c.HTTP.RetryAttempts
	opts.RetryBackoff = c.HTTP.RetryBackoff
	opts.RetryMaxBackoff = c.HTTP.RetryMaxBackoff
	return opts
}
