// Package interp is a line-oriented micro-interpreter for small Rust
// "calculator" programs.
//
// # Grammar
//
// Only the body of fn main() is read, one trimmed line at a time. Each
// line is tried as a binding and then as a print:
//
//	let a = 42;                 // integer
//	let r = 2.5;                // decimal
//	let v = vec![1, 2, 3];      // sequence of integers
//	println!("{} + {} = {}", a, 7, add(a, 7));
//	println!("{:?} sums to {}", v, sum_vector(&v));
//	println!("{:.2}", average_vector(&v));
//
// Anything else is ignored. There is no control flow, no multi-line
// statements and no user-defined functions; calls resolve only against
// the calculator builtins (see [Op]).
//
// # Placeholders
//
// Each {...} consumes the next argument. A builtin call is evaluated and
// honours a precision marker such as {:.2}; a variable prints its value,
// a sequence as 1,2,3 under {} and [1, 2, 3] under {:?}; any other
// argument is printed as written.
//
// # Output
//
// [Run] always returns a string: the printed lines, or a message when
// main is missing or evaluation fails ("Runtime Error: ..."). [RunTests]
// renders a test report for test files.
package interp
