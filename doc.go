// Package rustplay runs the Rust demo programs of a code playground
// without a Rust toolchain.
//
// # Overview
//
// A small interpreter understands the subset of Rust the demos use: a
// main function made of let bindings and println! calls over the
// calculator builtins. Anything else in a program is skipped. An optional
// WebAssembly acceleration module answers the canonical hello.rs itself.
//
// # Basic Usage
//
//	exec, _ := executor.New()
//	defer exec.Close()
//
//	src, _ := source.Embedded().Read(ctx, "calculator.rs")
//	result := exec.Run(ctx, "calculator.rs", src)
//	fmt.Println(result.Output)
//
//	// Test view
//	tests, _ := source.Embedded().Read(ctx, source.TestFileName("calculator.rs"))
//	result = exec.Run(ctx, "calculator.rs", tests,
//	    executor.WithMode(executor.ModeTest))
//
//	// Session with persistent bindings
//	session := exec.NewSession()
//	session.Run(ctx, `let v = vec![1, 2, 3];`)
//	session.Run(ctx, `println!("{:?}", v);`)  // [1, 2, 3]
//
// # Acceleration
//
//	mod, err := accel.LoadFile(ctx, "pkg/rust_bg.wasm", accel.WithDiskCache())
//	if err == nil {
//	    exec, _ = executor.New(executor.WithAccelerator(mod))
//	}
//
// # Packages
//
//   - [github.com/caffeineduck/rustplay/interp]: the interpreter
//   - [github.com/caffeineduck/rustplay/accel]: acceleration module loader
//   - [github.com/caffeineduck/rustplay/executor]: runs, modes and sessions
//   - [github.com/caffeineduck/rustplay/source]: file listing and content
//
// The rustplay command wraps these in a CLI, a REPL and an HTTP server.
package rustplay
