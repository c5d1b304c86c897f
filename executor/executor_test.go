package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/rustplay/accel"
	"github.com/caffeineduck/rustplay/accel/acceltest"
	"github.com/caffeineduck/rustplay/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wasmHello  = "Hello, World from Rust via WebAssembly!"
	wasmSample = "fn main() {\n    println!(\"Hello, World from Rust via WebAssembly!\");\n}"
)

const helloSource = `fn main() {
    println!("Hello from Rust Ventures!");
}`

func newAccelerated(t *testing.T) *executor.Executor {
	t.Helper()
	mod, err := accel.Load(context.Background(), acceltest.Module(wasmHello, wasmSample))
	require.NoError(t, err, "load module")
	exec, err := executor.New(executor.WithAccelerator(mod))
	require.NoError(t, err, "create executor")
	t.Cleanup(func() { exec.Close() })
	return exec
}

func newPlain(t *testing.T) *executor.Executor {
	t.Helper()
	exec, err := executor.New()
	require.NoError(t, err, "create executor")
	t.Cleanup(func() { exec.Close() })
	return exec
}

func TestInterpretedRun(t *testing.T) {
	exec := newPlain(t)
	src := `fn main() {
    let v = vec![1, 2, 3];
    println!("Sum = {}", sum_vector(&v));
}`
	result := exec.Run(context.Background(), "calculator.rs", src)
	require.NoError(t, result.Error)
	assert.Equal(t, "Sum = 6", result.Output)
	assert.False(t, result.Accelerated, "plain executor reported an accelerated run")
	assert.False(t, exec.Accelerated(), "plain executor reports an accelerator")
}

func TestAcceleratedHello(t *testing.T) {
	exec := newAccelerated(t)
	require.True(t, exec.Accelerated(), "expected accelerator to be attached")

	result := exec.Run(context.Background(), "hello.rs", helloSource)
	require.NoError(t, result.Error)
	assert.True(t, result.Accelerated, "expected accelerated run for hello.rs")
	assert.Equal(t, wasmHello, result.Output)
}

func TestAcceleratedHelloMultiValueBuild(t *testing.T) {
	wasm := acceltest.Build([]acceltest.Func{
		{Name: acceltest.HelloWorld, Result: wasmHello},
		{Name: acceltest.SampleCode, Result: wasmSample},
	}, acceltest.Options{MultiValue: true, Glue: true})
	mod, err := accel.Load(context.Background(), wasm)
	require.NoError(t, err)
	exec, err := executor.New(executor.WithAccelerator(mod))
	require.NoError(t, err)
	defer exec.Close()

	result := exec.Run(context.Background(), "hello.rs", helloSource)
	require.NoError(t, result.Error)
	assert.True(t, result.Accelerated)
	assert.Equal(t, wasmHello, result.Output)
}

func TestAcceleratorOnlyForCanonicalFile(t *testing.T) {
	exec := newAccelerated(t)

	result := exec.Run(context.Background(), "other.rs", helloSource)
	assert.False(t, result.Accelerated, "only hello.rs should be accelerated")
	assert.Equal(t, "Hello from Rust Ventures!", result.Output)

	result = exec.Run(context.Background(), "hello.rs", helloSource, executor.WithMode(executor.ModeTest))
	assert.False(t, result.Accelerated, "test view should never be accelerated")
	assert.Contains(t, result.Output, "Running tests for hello.rs...")
}

func TestAcceleratorFailureFallsBack(t *testing.T) {
	mod, err := accel.Load(context.Background(), acceltest.Module(wasmHello, wasmSample))
	require.NoError(t, err)
	exec, err := executor.New(executor.WithAccelerator(mod))
	require.NoError(t, err)
	defer exec.Close()

	// a closed module errors on every call
	mod.Close(context.Background())

	result := exec.Run(context.Background(), "hello.rs", helloSource)
	require.NoError(t, result.Error)
	assert.False(t, result.Accelerated, "expected interpreted fallback")
	assert.Equal(t, "Hello from Rust Ventures!", result.Output)
}

func TestSampleCode(t *testing.T) {
	code, err := newAccelerated(t).SampleCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wasmSample, code)

	_, err = newPlain(t).SampleCode(context.Background())
	assert.ErrorIs(t, err, executor.ErrNoAccelerator)
}

func TestTestMode(t *testing.T) {
	exec := newPlain(t)
	src := `#[test]
fn test_add() {}
#[test]
fn test_divide() {}`

	result := exec.Run(context.Background(), "test_calculator.rs", src, executor.WithMode(executor.ModeTest))
	require.NoError(t, result.Error)
	for _, want := range []string{
		"test tests::test_add ... ok",
		"test tests::test_divide ... ok",
		"test result: ok. 2 passed",
	} {
		assert.Contains(t, result.Output, want)
	}
}

func TestRuntimeErrorIsOutput(t *testing.T) {
	exec := newPlain(t)
	src := `fn main() {
    println!("{}", divide(1, 0));
}`
	result := exec.Run(context.Background(), "x.rs", src)
	require.NoError(t, result.Error, "interpreter errors belong in Output")
	assert.Equal(t, "Runtime Error: Division by zero is not allowed!", result.Output)
}

func TestCanceledContext(t *testing.T) {
	exec := newAccelerated(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exec.Run(ctx, "hello.rs", helloSource)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Empty(t, result.Output)
}

func TestExecutorTimeout(t *testing.T) {
	exec := newPlain(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	result := exec.Run(ctx, "x.rs", helloSource, executor.WithTimeout(time.Second))
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "timeout")
}

func TestExecutorDurationTracked(t *testing.T) {
	result := newPlain(t).Run(context.Background(), "x.rs", helloSource)
	assert.Positive(t, result.Duration)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    executor.Mode
		wantErr bool
	}{
		{"", executor.ModeSource, false},
		{"source", executor.ModeSource, false},
		{"src", executor.ModeSource, false},
		{"test", executor.ModeTest, false},
		{"tests", executor.ModeTest, false},
		{"bench", 0, true},
	}
	for _, tt := range tests {
		got, err := executor.ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseMode(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseMode(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseMode(%q)", tt.in)
	}
	assert.Equal(t, "test", executor.ModeTest.String())
}

func TestConcurrentRuns(t *testing.T) {
	exec := newAccelerated(t)

	var wg sync.WaitGroup
	outputs := make([]string, 20)
	for i := range outputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "other.rs"
			if i%2 == 0 {
				name = "hello.rs"
			}
			outputs[i] = exec.Run(context.Background(), name, helloSource).Output
		}(i)
	}
	wg.Wait()

	for i, out := range outputs {
		want := "Hello from Rust Ventures!"
		if i%2 == 0 {
			want = wasmHello
		}
		assert.Equal(t, want, out, "run %d", i)
	}
}
