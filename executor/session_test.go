package executor

import (
	"context"
	"testing"

	"github.com/caffeineduck/rustplay/interp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	exec, err := New()
	require.NoError(t, err, "create executor")
	t.Cleanup(func() { exec.Close() })
	session := exec.NewSession()
	t.Cleanup(func() { session.Close() })
	return session
}

func TestSessionBasic(t *testing.T) {
	session := newSession(t)

	result := session.Run(context.Background(), `println!("hello");`)
	require.NoError(t, result.Error)
	assert.Equal(t, "hello", result.Output)
}

func TestSessionStatePersists(t *testing.T) {
	session := newSession(t)

	result := session.Run(context.Background(), `let x = 42;`)
	require.NoError(t, result.Error)
	assert.Empty(t, result.Output, "binding should print nothing")

	result = session.Run(context.Background(), `println!("{}", add(x, 1));`)
	require.NoError(t, result.Error)
	assert.Equal(t, "43", result.Output)
}

func TestSessionOnlyNewOutput(t *testing.T) {
	session := newSession(t)

	session.Run(context.Background(), `println!("one");`)
	result := session.Run(context.Background(), "println!(\"two\");\nprintln!(\"three\");")
	assert.Equal(t, "two\nthree", result.Output)
}

func TestSessionPlainSequence(t *testing.T) {
	session := newSession(t)

	session.Run(context.Background(), `let v = vec![1, 2, 3];`)
	result := session.Run(context.Background(), `println!("{} / {:?}", v, v);`)
	require.NoError(t, result.Error)
	assert.Equal(t, "1,2,3 / [1, 2, 3]", result.Output)
}

func TestSessionError(t *testing.T) {
	session := newSession(t)

	session.Run(context.Background(), `let v = vec![1, 2];`)
	result := session.Run(context.Background(), `println!("{}", add(v, 1));`)
	var kindErr *interp.KindError
	require.ErrorAs(t, result.Error, &kindErr)
	assert.Contains(t, result.Output, "Runtime Error: ")

	// rejected input is not kept
	result = session.Run(context.Background(), `println!("{:?}", v);`)
	require.NoError(t, result.Error)
	assert.Equal(t, "[1, 2]", result.Output)
}

func TestSessionSourceAndReset(t *testing.T) {
	session := newSession(t)

	session.Run(context.Background(), `let a = 5;`)
	session.Run(context.Background(), `println!("{}", a);`)

	want := "fn main() {\n    let a = 5;\n    println!(\"{}\", a);\n}\n"
	assert.Equal(t, want, session.Source())

	session.Reset()
	assert.Equal(t, "fn main() {\n}\n", session.Source())

	// a is gone, so the placeholder argument passes through as text
	result := session.Run(context.Background(), `println!("{}", a);`)
	assert.Equal(t, "a", result.Output)
}

func TestSessionClosedError(t *testing.T) {
	session := newSession(t)
	session.Close()

	result := session.Run(context.Background(), `println!("x");`)
	assert.ErrorIs(t, result.Error, ErrSessionClosed)
}

func TestSessionCanceledContext(t *testing.T) {
	session := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := session.Run(ctx, `println!("x");`)
	assert.ErrorIs(t, result.Error, context.Canceled)
}

func TestMultipleSessions(t *testing.T) {
	exec, err := New()
	require.NoError(t, err)
	defer exec.Close()

	s1 := exec.NewSession()
	s2 := exec.NewSession()
	s1.Run(context.Background(), `let x = 1;`)
	s2.Run(context.Background(), `let x = 2;`)

	r1 := s1.Run(context.Background(), `println!("{}", x);`)
	r2 := s2.Run(context.Background(), `println!("{}", x);`)
	assert.Equal(t, "1", r1.Output, "sessions share state")
	assert.Equal(t, "2", r2.Output, "sessions share state")
}
