package interp

import (
	"strings"
)

// Kind distinguishes the two shapes a variable can hold.
type Kind int

const (
	KindNumber Kind = iota
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is either a single number or an ordered sequence of numbers.
type Value struct {
	kind Kind
	num  float64
	seq  []float64
}

// Number returns a scalar Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Sequence returns a sequence Value. The slice is copied.
func Sequence(ns ...float64) Value {
	seq := make([]float64, len(ns))
	copy(seq, ns)
	return Value{kind: KindSequence, seq: seq}
}

func (v Value) Kind() Kind { return v.kind }

// Num returns the scalar and whether v is a number.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Seq returns the elements and whether v is a sequence.
func (v Value) Seq() ([]float64, bool) {
	return v.seq, v.kind == KindSequence
}

// AsSequence views v as a sequence, wrapping a scalar into one element.
func (v Value) AsSequence() []float64 {
	if v.kind == KindSequence {
		return v.seq
	}
	return []float64{v.num}
}

// String renders a number plainly and a sequence in debug form.
func (v Value) String() string {
	if v.kind == KindSequence {
		return debugSequence(v.seq)
	}
	return formatNumber(v.num)
}

func debugSequence(seq []float64) string {
	parts := make([]string, len(seq))
	for i, n := range seq {
		parts[i] = formatNumber(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// plainSequence is the form `{}` prints: elements joined by bare commas.
func plainSequence(seq []float64) string {
	parts := make([]string, len(seq))
	for i, n := range seq {
		parts[i] = formatNumber(n)
	}
	return strings.Join(parts, ",")
}

// Env is the variable environment of a single execution.
type Env map[string]Value

// NewEnv returns an empty environment.
func NewEnv() Env {
	return make(Env)
}

// Lookup returns the value bound to name.
func (e Env) Lookup(name string) (Value, bool) {
	v, ok := e[name]
	return v, ok
}

// Bind sets name, replacing any earlier binding.
func (e Env) Bind(name string, v Value) {
	e[name] = v
}
