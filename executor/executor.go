package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caffeineduck/rustplay/accel"
	"github.com/caffeineduck/rustplay/interp"
)

// Result holds the output and metadata from a run.
type Result struct {
	Output      string
	Duration    time.Duration
	Accelerated bool
	Error       error
}

// Executor runs Rust sources through the acceleration module when it
// applies and through the interpreter otherwise.
type Executor struct {
	accel  *accel.Module
	logger *slog.Logger
}

// New creates an Executor. Without WithAccelerator every run is
// interpreted.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{accel: cfg.accel, logger: cfg.logger}, nil
}

// Accelerated reports whether an acceleration module is attached.
func (e *Executor) Accelerated() bool {
	return e.accel != nil
}

// SampleCode returns the acceleration module's sample program.
func (e *Executor) SampleCode(ctx context.Context) (string, error) {
	if e.accel == nil {
		return "", ErrNoAccelerator
	}
	return e.accel.SampleCode(ctx)
}

// Run executes source, named filename, in the configured mode.
func (e *Executor) Run(ctx context.Context, filename, source string, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return Result{Error: contextError(err, cfg.timeout), Duration: time.Since(start)}
	}

	if cfg.mode == ModeSource && filename == accel.CanonicalFile && e.accel != nil {
		out, err := e.accel.RunHelloWorld(ctx)
		if err == nil {
			return Result{Output: out, Accelerated: true, Duration: time.Since(start)}
		}
		if ctx.Err() != nil {
			return Result{Error: contextError(ctx.Err(), cfg.timeout), Duration: time.Since(start)}
		}
		e.logger.Warn("acceleration module failed, interpreting instead",
			"file", filename, "error", err)
	}

	var out string
	switch cfg.mode {
	case ModeTest:
		out = interp.RunTests(filename, source)
	default:
		out = interp.Run(filename, source)
	}

	result := Result{Output: out, Duration: time.Since(start)}
	e.logger.Debug("run complete", "file", filename, "mode", cfg.mode, "duration", result.Duration)
	return result
}

// Close releases the acceleration module, if any.
func (e *Executor) Close() error {
	if e.accel == nil {
		return nil
	}
	return e.accel.Close(context.Background())
}

func contextError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return err
}
