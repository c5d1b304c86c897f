package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caffeineduck/rustplay/accel"
)

var ErrNoAccelerator = errors.New("no acceleration module loaded")

// Mode selects the source or test view of a file.
type Mode int

const (
	ModeSource Mode = iota
	ModeTest
)

func (m Mode) String() string {
	switch m {
	case ModeSource:
		return "source"
	case ModeTest:
		return "test"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "source" (or "") and "test".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "source", "src":
		return ModeSource, nil
	case "test", "tests":
		return ModeTest, nil
	default:
		return 0, fmt.Errorf("unknown mode %q: use source or test", s)
	}
}

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	mode    Mode
	timeout time.Duration
}

func defaultRunConfig() runConfig {
	return runConfig{
		mode:    ModeSource,
		timeout: 30 * time.Second,
	}
}

// WithMode selects source or test view.
func WithMode(m Mode) Option {
	return func(c *runConfig) {
		c.mode = m
	}
}

// WithTimeout bounds the run, including any acceleration module call.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	accel  *accel.Module
	logger *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{}
}

// WithAccelerator attaches a loaded acceleration module. The Executor
// takes ownership and closes it in Close.
func WithAccelerator(m *accel.Module) ExecutorOption {
	return func(c *executorConfig) {
		c.accel = m
	}
}

// WithLogger sets the logger for fallback warnings and run traces.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}
