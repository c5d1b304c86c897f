// Package executor runs Rust demo programs for display.
//
// # Overview
//
// An Executor wraps the [interp] micro-interpreter and, optionally, a
// WebAssembly acceleration module loaded with [accel]. When the module is
// attached and the file being run is the canonical hello.rs sample, the
// module's own output is returned verbatim; every other run, and any run
// where the module fails, goes through the interpreter.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, "calculator.rs", src)
//	fmt.Println(result.Output)
//
//	// test view
//	result = exec.Run(ctx, "test_calculator.rs", testSrc,
//	    executor.WithMode(executor.ModeTest))
//
// # Acceleration
//
//	mod, err := accel.LoadFile(ctx, "rust_bg.wasm", accel.WithDiskCache())
//	if err == nil {
//	    exec, _ = executor.New(executor.WithAccelerator(mod))
//	}
//
// # Sessions
//
// Sessions accept one statement at a time and keep earlier bindings:
//
//	session := exec.NewSession()
//	session.Run(ctx, `let v = vec![1, 2, 3];`)
//	session.Run(ctx, `println!("{}", sum_vector(&v));`)  // Output: 6
package executor
