package interp

import (
	"regexp"
	"strconv"
	"strings"
)

// LetStatus tags the outcome of ParseLet.
type LetStatus int

const (
	// LetNoMatch means the line is not a let statement.
	LetNoMatch LetStatus = iota
	// LetBound means the right-hand side produced a value.
	LetBound
	// LetUnbound means the line is a let statement whose right-hand side
	// is not a supported literal; nothing is bound.
	LetUnbound
)

// LetResult is the tagged result of parsing one line as a binding.
type LetResult struct {
	Status LetStatus
	Name   string
	Expr   string
	Value  Value
}

var (
	letStmt    = regexp.MustCompile(`^let\s+(?:mut\s+)?(\w+)\s*(?::\s*[^=;]+?)?\s*=\s*([^;]+);`)
	intLiteral = regexp.MustCompile(`^\d+$`)
	vecLiteral = regexp.MustCompile(`^vec!\[([^\]]*)\]`)
	fltLiteral = regexp.MustCompile(`^\d*\.\d+$`)
)

// ParseLet recognizes `let <ident> = <expr>;`. Supported expressions, in
// priority order: a non-negative integer, a vec! of integers, a decimal
// with a fractional part.
func ParseLet(line string) LetResult {
	m := letStmt.FindStringSubmatch(line)
	if m == nil {
		return LetResult{Status: LetNoMatch}
	}
	res := LetResult{Status: LetUnbound, Name: m[1], Expr: strings.TrimSpace(m[2])}

	if v, ok := evalLiteral(res.Expr); ok {
		res.Status = LetBound
		res.Value = v
	}
	return res
}

func evalLiteral(expr string) (Value, bool) {
	switch {
	case intLiteral.MatchString(expr):
		n, err := strconv.ParseFloat(expr, 64)
		if err != nil {
			return Value{}, false
		}
		return Number(n), true
	case vecLiteral.MatchString(expr):
		return parseVec(vecLiteral.FindStringSubmatch(expr)[1])
	case fltLiteral.MatchString(expr):
		n, err := strconv.ParseFloat(expr, 64)
		if err != nil {
			return Value{}, false
		}
		return Number(n), true
	}
	return Value{}, false
}

func parseVec(content string) (Value, bool) {
	parts := strings.Split(content, ",")
	elems := make([]float64, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" && i == len(parts)-1 {
			// trailing comma or vec![]
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Value{}, false
		}
		elems = append(elems, float64(n))
	}
	return Sequence(elems...), true
}
