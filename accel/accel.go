// Package accel loads the optional native acceleration module.
//
// The module is the wasm-bindgen build of a Rust crate exporting
// `run_hello_world() -> String` and `get_sample_code() -> String`. Each
// entry point either takes a return pointer, into which it writes a
// (ptr, len) pair, or returns that pair directly. The string is copied
// out and handed back with __wbindgen_free. Imports from the wasm-bindgen
// glue module are stubbed, since no JavaScript host is present.
//
// Nothing in the interpreter depends on this package; callers that fail
// to load a module simply run without one.
package accel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// CanonicalFile is the sample whose output the module can produce.
const CanonicalFile = "hello.rs"

const (
	exportMemory       = "memory"
	exportHelloWorld   = "run_hello_world"
	exportSampleCode   = "get_sample_code"
	exportStackPointer = "__wbindgen_add_to_stack_pointer"
	exportFree         = "__wbindgen_free"
	exportStart        = "__wbindgen_start"

	// bytes reserved on the shadow stack for a returned (ptr, len)
	retAreaSize = 16
)

var glueModules = []string{"wbg", "__wbindgen_placeholder__"}

var (
	ErrInvalidModule = errors.New("invalid acceleration module")
	ErrClosed        = errors.New("acceleration module closed")
)

// returnStyle is how an entry point hands back its string.
type returnStyle int

const (
	returnViaPointer returnStyle = iota // (retptr i32) -> ()
	returnPair                          // () -> (ptr i32, len i32)
)

type entryPoint struct {
	name  string
	fn    api.Function
	style returnStyle
}

// Module is an instantiated acceleration module.
type Module struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	module  api.Module
	memory  api.Memory

	hello    entryPoint
	sample   entryPoint
	stackPtr api.Function
	free     api.Function

	mu     sync.Mutex
	closed bool
}

// LoadFile reads and loads a module from disk.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return Load(ctx, wasm, opts...)
}

// Load compiles and instantiates wasm.
func Load(ctx context.Context, wasm []byte, opts ...Option) (*Module, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = DefaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	m := &Module{runtime: rt, cache: cache}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		m.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		m.Close(ctx)
		return nil, fmt.Errorf("compile module: %w", err)
	}

	if err := stubGlueImports(ctx, rt, compiled); err != nil {
		m.Close(ctx)
		return nil, err
	}

	// no _start: the module is a library, not a command
	modConfig := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		m.Close(ctx)
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	m.module = mod

	if err := m.bind(); err != nil {
		m.Close(ctx)
		return nil, err
	}

	if start := mod.ExportedFunction(exportStart); start != nil {
		if _, err := start.Call(ctx); err != nil {
			m.Close(ctx)
			return nil, fmt.Errorf("%s: %w", exportStart, err)
		}
	}

	return m, nil
}

// bind resolves and type-checks the exports the module must provide.
func (m *Module) bind() error {
	mod := m.module
	m.memory = mod.ExportedMemory(exportMemory)
	if m.memory == nil {
		return missingExport(exportMemory)
	}

	var err error
	if m.hello, err = lookupEntryPoint(mod, exportHelloWorld); err != nil {
		return err
	}
	if m.sample, err = lookupEntryPoint(mod, exportSampleCode); err != nil {
		return err
	}

	m.free = mod.ExportedFunction(exportFree)
	if m.free == nil {
		return missingExport(exportFree)
	}
	if n := len(m.free.Definition().ParamTypes()); n != 2 && n != 3 {
		return fmt.Errorf("%w: %s takes %d parameters", ErrInvalidModule, exportFree, n)
	}

	if m.hello.style == returnViaPointer || m.sample.style == returnViaPointer {
		m.stackPtr = mod.ExportedFunction(exportStackPointer)
		if m.stackPtr == nil {
			return missingExport(exportStackPointer)
		}
	}
	return nil
}

func missingExport(name string) error {
	return fmt.Errorf("%w: missing export %q", ErrInvalidModule, name)
}

func lookupEntryPoint(mod api.Module, name string) (entryPoint, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return entryPoint{}, missingExport(name)
	}
	def := fn.Definition()
	params, results := def.ParamTypes(), def.ResultTypes()
	switch {
	case slices.Equal(params, []api.ValueType{api.ValueTypeI32}) && len(results) == 0:
		return entryPoint{name, fn, returnViaPointer}, nil
	case len(params) == 0 && slices.Equal(results, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}):
		return entryPoint{name, fn, returnPair}, nil
	}
	return entryPoint{}, fmt.Errorf("%w: %s does not return a string", ErrInvalidModule, name)
}

// stubGlueImports satisfies functions imported from the wasm-bindgen glue
// module with no-ops returning zeros. Entry points that only return
// strings never need their real behavior.
func stubGlueImports(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule) error {
	builders := map[string]wazero.HostModuleBuilder{}
	for _, def := range compiled.ImportedFunctions() {
		moduleName, name, _ := def.Import()
		if !slices.Contains(glueModules, moduleName) {
			continue
		}
		b, ok := builders[moduleName]
		if !ok {
			b = rt.NewHostModuleBuilder(moduleName)
			builders[moduleName] = b
		}
		results := def.ResultTypes()
		b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
				for i := range results {
					stack[i] = 0
				}
			}), def.ParamTypes(), results).
			Export(name)
	}
	for moduleName, b := range builders {
		if _, err := b.Instantiate(ctx); err != nil {
			return fmt.Errorf("stub %s imports: %w", moduleName, err)
		}
	}
	return nil
}

// RunHelloWorld calls the module's run_hello_world entry point.
func (m *Module) RunHelloWorld(ctx context.Context) (string, error) {
	return m.callString(ctx, m.hello)
}

// SampleCode calls the module's get_sample_code entry point.
func (m *Module) SampleCode(ctx context.Context) (string, error) {
	return m.callString(ctx, m.sample)
}

func (m *Module) callString(ctx context.Context, ep entryPoint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	var (
		ptr, size uint32
		err       error
	)
	switch ep.style {
	case returnViaPointer:
		ptr, size, err = m.callViaPointer(ctx, ep)
	case returnPair:
		var results []uint64
		results, err = ep.fn.Call(ctx)
		if err == nil {
			ptr, size = api.DecodeU32(results[0]), api.DecodeU32(results[1])
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", ep.name, ctx.Err())
		}
		return "", fmt.Errorf("%s: %w", ep.name, err)
	}

	data, ok := m.memory.Read(ptr, size)
	if !ok {
		return "", fmt.Errorf("%s: string of %d bytes at %d out of range", ep.name, size, ptr)
	}
	text := string(data)

	args := []uint64{api.EncodeU32(ptr), api.EncodeU32(size)}
	if len(m.free.Definition().ParamTypes()) == 3 {
		args = append(args, 1) // align of u8
	}
	if _, err := m.free.Call(ctx, args...); err != nil {
		return "", fmt.Errorf("%s: %w", exportFree, err)
	}
	return text, nil
}

// callViaPointer reserves a return area on the shadow stack, calls the
// entry point with it and reads back the (ptr, len) pair.
func (m *Module) callViaPointer(ctx context.Context, ep entryPoint) (ptr, size uint32, err error) {
	res, err := m.stackPtr.Call(ctx, api.EncodeI32(-retAreaSize))
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", exportStackPointer, err)
	}
	retptr := api.DecodeU32(res[0])
	defer func() {
		if _, restoreErr := m.stackPtr.Call(ctx, api.EncodeI32(retAreaSize)); restoreErr != nil && err == nil {
			err = fmt.Errorf("%s: %w", exportStackPointer, restoreErr)
		}
	}()

	if _, err = ep.fn.Call(ctx, api.EncodeU32(retptr)); err != nil {
		return 0, 0, err
	}

	var ok bool
	if ptr, ok = m.memory.ReadUint32Le(retptr); !ok {
		return 0, 0, fmt.Errorf("return pointer %d out of range", retptr)
	}
	if size, ok = m.memory.ReadUint32Le(retptr + 4); !ok {
		return 0, 0, fmt.Errorf("return pointer %d out of range", retptr)
	}
	return ptr, size, nil
}

// Close releases the runtime and compilation cache.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if err := m.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if m.cache != nil {
		if err := m.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultCacheDir is where WithDiskCache stores compiled modules when no
// directory is given.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "rustplay")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "rustplay")
	}
	return filepath.Join(os.TempDir(), "rustplay-cache")
}
