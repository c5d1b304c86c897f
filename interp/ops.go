package interp

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDivisionByZero = errors.New("Division by zero is not allowed!")
	ErrNegativeSqrt   = errors.New("Cannot calculate square root of negative number")
)

// ArityError reports a builtin called with the wrong number of numbers.
type ArityError struct {
	Op   Op
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s expects %d argument(s), got %d", e.Op, e.Want, e.Got)
}

// KindError reports a variable used with the wrong shape.
type KindError struct {
	Name string
	Want Kind
	Got  Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("`%s` is a %s where a %s was expected", e.Name, e.Got, e.Want)
}

// Op enumerates the calculator builtins.
type Op int

const (
	OpAdd Op = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpSqrtApproximate
	OpSumVector
	OpAverageVector
)

var opNames = [...]string{
	OpAdd:             "add",
	OpSubtract:        "subtract",
	OpMultiply:        "multiply",
	OpDivide:          "divide",
	OpPower:           "power",
	OpSqrtApproximate: "sqrt_approximate",
	OpSumVector:       "sum_vector",
	OpAverageVector:   "average_vector",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// LookupOp resolves a builtin by its source name.
func LookupOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// Ops lists every builtin in declaration order.
func Ops() []Op {
	ops := make([]Op, len(opNames))
	for i := range opNames {
		ops[i] = Op(i)
	}
	return ops
}

// arity returns the fixed argument count, or -1 for variadic vector ops.
func (o Op) arity() int {
	switch o {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpPower:
		return 2
	case OpSqrtApproximate:
		return 1
	default:
		return -1
	}
}

// Apply evaluates the builtin over already flattened arguments.
func (o Op) Apply(args []float64) (float64, error) {
	if n := o.arity(); n >= 0 && len(args) != n {
		return 0, &ArityError{Op: o, Want: n, Got: len(args)}
	}

	switch o {
	case OpAdd:
		return args[0] + args[1], nil
	case OpSubtract:
		return args[0] - args[1], nil
	case OpMultiply:
		return args[0] * args[1], nil
	case OpDivide:
		if args[1] == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Floor(args[0] / args[1]), nil
	case OpPower:
		return math.Pow(args[0], args[1]), nil
	case OpSqrtApproximate:
		if args[0] < 0 {
			return 0, ErrNegativeSqrt
		}
		return math.Sqrt(args[0]), nil
	case OpSumVector:
		return sum(args), nil
	case OpAverageVector:
		if len(args) == 0 {
			return 0, nil
		}
		return sum(args) / float64(len(args)), nil
	default:
		return 0, fmt.Errorf("unknown operation %v", o)
	}
}

func sum(ns []float64) float64 {
	var total float64
	for _, n := range ns {
		total += n
	}
	return total
}
