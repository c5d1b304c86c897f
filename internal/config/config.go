// Package config loads the optional rustplay.yml file shared by the CLI
// and the server.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/rustplay/accel"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "rustplay.yml"

// Config holds settings for the run, repl and serve commands.
type Config struct {
	Addr        string
	RustDir     string
	Accelerator string
	Timeout     time.Duration
	SessionTTL  time.Duration
	LogLevel    string
	Memory      string
	Cache       bool
}

type configFile struct {
	Addr        string `yaml:"addr"`
	RustDir     string `yaml:"rust_dir"`
	Accelerator string `yaml:"accelerator"`
	Timeout     string `yaml:"timeout"`
	SessionTTL  string `yaml:"session_ttl"`
	LogLevel    string `yaml:"log_level"`
	Memory      string `yaml:"memory"`
	Cache       *bool  `yaml:"cache"`
}

// ValidationError aggregates config validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:       ":8080",
		Timeout:    30 * time.Second,
		SessionTTL: 15 * time.Minute,
		LogLevel:   "info",
		Memory:     "16mb",
		Cache:      true,
	}
}

// Load reads path over the defaults. A missing DefaultFile is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw configFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}

	if err := raw.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *configFile) apply(cfg *Config) error {
	var errs ValidationError
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.RustDir != "" {
		cfg.RustDir = f.RustDir
	}
	if f.Accelerator != "" {
		cfg.Accelerator = f.Accelerator
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Memory != "" {
		cfg.Memory = f.Memory
	}
	if f.Cache != nil {
		cfg.Cache = *f.Cache
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("timeout: %q is not a duration", f.Timeout))
		}
		cfg.Timeout = d
	}
	if f.SessionTTL != "" {
		d, err := time.ParseDuration(f.SessionTTL)
		if err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("session_ttl: %q is not a duration", f.SessionTTL))
		}
		cfg.SessionTTL = d
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs ValidationError
	if c.Addr == "" {
		errs.Issues = append(errs.Issues, "addr must be provided")
	}
	if c.Timeout < 0 {
		errs.Issues = append(errs.Issues, "timeout must not be negative")
	}
	if c.SessionTTL <= 0 {
		errs.Issues = append(errs.Issues, "session_ttl must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs.Issues = append(errs.Issues, err.Error())
	}
	if _, err := ParseMemory(c.Memory); err != nil {
		errs.Issues = append(errs.Issues, err.Error())
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level: unknown level %q", s)
	}
}

// ParseMemory maps a memory value to wasm pages. Empty means the
// runtime default and yields 0.
func ParseMemory(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "1mb":
		return accel.MemoryLimit1MB, nil
	case "16mb":
		return accel.MemoryLimit16MB, nil
	case "64mb":
		return accel.MemoryLimit64MB, nil
	case "256mb":
		return accel.MemoryLimit256MB, nil
	default:
		return 0, fmt.Errorf("memory: unknown limit %q (use 1mb, 16mb, 64mb or 256mb)", s)
	}
}
