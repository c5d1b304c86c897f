package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/rustplay/interp"
)

var ErrSessionClosed = errors.New("session closed")

// Session grows a main body one input at a time. Each Run re-evaluates
// the whole body and returns only the lines not printed before, so
// bindings persist across inputs.
type Session struct {
	exec *Executor

	mu      sync.Mutex
	lines   []string
	printed int
	closed  bool
}

// NewSession starts an empty session.
func (e *Executor) NewSession() *Session {
	return &Session{exec: e}
}

// Run appends code to the body. Input that makes evaluation fail is
// rejected and the body is left as it was.
func (s *Session) Run(ctx context.Context, code string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	if s.closed {
		return Result{Error: ErrSessionClosed, Duration: time.Since(start)}
	}
	if err := ctx.Err(); err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	candidate := make([]string, 0, len(s.lines)+1)
	candidate = append(candidate, s.lines...)
	candidate = append(candidate, strings.Split(strings.TrimRight(code, "\n"), "\n")...)

	out, err := interp.Eval(strings.Join(candidate, "\n"))
	if err != nil {
		s.exec.logger.Debug("session input rejected", "error", err)
		return Result{Output: interp.RuntimeError(err), Error: err, Duration: time.Since(start)}
	}

	s.lines = candidate
	fresh := out[min(s.printed, len(out)):]
	s.printed = len(out)

	return Result{Output: strings.Join(fresh, "\n"), Duration: time.Since(start)}
}

// Source renders the accumulated body as a complete program.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("fn main() {\n")
	for _, l := range s.lines {
		b.WriteString("    ")
		b.WriteString(strings.TrimSpace(l))
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// Reset discards the accumulated body.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.printed = 0
}

// Close ends the session; later runs fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.lines = nil
	return nil
}
