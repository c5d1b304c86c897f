// Package acceltest assembles tiny acceleration modules for tests, so no
// Rust toolchain is needed to exercise the wasm path.
//
// The modules have the export shape wasm-bindgen produces for
// `#[wasm_bindgen] fn f() -> String`: each entry point takes a return
// pointer and writes a (ptr, len) pair there, with the glue exports
// __wbindgen_add_to_stack_pointer and __wbindgen_free alongside.
package acceltest

// Export and import names expected by the accel package.
const (
	Memory         = "memory"
	HelloWorld     = "run_hello_world"
	SampleCode     = "get_sample_code"
	StackPointer   = "__wbindgen_add_to_stack_pointer"
	Free           = "__wbindgen_free"
	Start          = "__wbindgen_start"
	GlueModule     = "wbg"
	GlueInitTable  = "__wbindgen_init_externref_table"
	FreeCounter    = "frees"
	stackTop       = 4096
	firstDataStart = 8192
)

// Module returns a valid module whose entry points return hello and
// sample.
func Module(hello, sample string) []byte {
	return Build([]Func{{HelloWorld, hello}, {SampleCode, sample}}, Options{})
}

// Func is an exported entry point returning a copy of Result.
type Func struct {
	Name   string
	Result string
}

// Options selects which parts of the module are emitted.
type Options struct {
	NoMemory       bool
	NoStackPointer bool
	NoFree         bool
	// MultiValue makes entry points return (ptr, len) directly instead of
	// writing through a return pointer, as newer wasm-bindgen builds do.
	MultiValue bool
	// Glue adds an import from the "wbg" module and a __wbindgen_start
	// export that calls it.
	Glue bool
}

const (
	typeRetptr = iota // (i32) -> ()
	typeStack         // (i32) -> i32
	typeFree          // (i32, i32, i32) -> ()
	typeMulti         // () -> (i32, i32)
	typeVoid          // () -> ()
)

const (
	opCall      = 0x10
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Store  = 0x36
	opI32Const  = 0x41
	opI32Add    = 0x6a
	opEnd       = 0x0b
)

// Build assembles a module in the binary format. A free call increments
// the exported mutable global "frees".
func Build(funcs []Func, opts Options) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	section := func(id byte, body []byte) {
		out = append(out, id)
		out = append(out, uleb(uint64(len(body)))...)
		out = append(out, body...)
	}

	section(1, []byte{
		0x05,
		0x60, 0x01, 0x7f, 0x00,
		0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00,
		0x60, 0x00, 0x02, 0x7f, 0x7f,
		0x60, 0x00, 0x00,
	})

	imported := 0
	if opts.Glue {
		imports := uleb(1)
		imports = append(imports, name(GlueModule)...)
		imports = append(imports, name(GlueInitTable)...)
		imports = append(imports, 0x00, typeVoid)
		section(2, imports)
		imported = 1
	}

	type def struct {
		name string
		typ  byte
		body []byte
	}
	var defs []def

	offsets := make([]int32, len(funcs))
	next := int32(firstDataStart)
	for i, f := range funcs {
		offsets[i] = next
		next += int32(len(f.Result)+15) &^ 15
	}

	for i, f := range funcs {
		ptr, size := offsets[i], int32(len(f.Result))
		var body []byte
		typ := byte(typeRetptr)
		switch {
		case opts.MultiValue:
			typ = typeMulti
			body = append(body, opI32Const)
			body = append(body, sleb(ptr)...)
			body = append(body, opI32Const)
			body = append(body, sleb(size)...)
		case !opts.NoMemory:
			body = append(body, opLocalGet, 0x00, opI32Const)
			body = append(body, sleb(ptr)...)
			body = append(body, opI32Store, 0x02, 0x00)
			body = append(body, opLocalGet, 0x00, opI32Const)
			body = append(body, sleb(size)...)
			body = append(body, opI32Store, 0x02, 0x04)
		}
		defs = append(defs, def{f.Name, typ, body})
	}
	if !opts.NoStackPointer {
		defs = append(defs, def{StackPointer, typeStack, []byte{
			opGlobalGet, 0x00, opLocalGet, 0x00, opI32Add, opGlobalSet, 0x00, opGlobalGet, 0x00,
		}})
	}
	if !opts.NoFree {
		defs = append(defs, def{Free, typeFree, []byte{
			opGlobalGet, 0x01, opI32Const, 0x01, opI32Add, opGlobalSet, 0x01,
		}})
	}
	if opts.Glue {
		defs = append(defs, def{Start, typeVoid, []byte{opCall, 0x00}})
	}

	fns := uleb(uint64(len(defs)))
	for _, d := range defs {
		fns = append(fns, d.typ)
	}
	section(3, fns)

	if !opts.NoMemory {
		section(5, []byte{0x01, 0x00, 0x01})
	}

	globals := []byte{0x02, 0x7f, 0x01, opI32Const}
	globals = append(globals, sleb(stackTop)...)
	globals = append(globals, opEnd, 0x7f, 0x01, opI32Const, 0x00, opEnd)
	section(6, globals)

	count := len(defs) + 1
	if !opts.NoMemory {
		count++
	}
	exports := uleb(uint64(count))
	if !opts.NoMemory {
		exports = append(exports, name(Memory)...)
		exports = append(exports, 0x02, 0x00)
	}
	for i, d := range defs {
		exports = append(exports, name(d.name)...)
		exports = append(exports, 0x00)
		exports = append(exports, uleb(uint64(imported+i))...)
	}
	exports = append(exports, name(FreeCounter)...)
	exports = append(exports, 0x03, 0x01)
	section(7, exports)

	code := uleb(uint64(len(defs)))
	for _, d := range defs {
		body := append([]byte{0x00}, d.body...)
		body = append(body, opEnd)
		code = append(code, uleb(uint64(len(body)))...)
		code = append(code, body...)
	}
	section(10, code)

	if !opts.NoMemory {
		data := uleb(uint64(len(funcs)))
		for i, f := range funcs {
			data = append(data, 0x00, opI32Const)
			data = append(data, sleb(offsets[i])...)
			data = append(data, opEnd)
			data = append(data, uleb(uint64(len(f.Result)))...)
			data = append(data, f.Result...)
		}
		section(11, data)
	}

	return out
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}
