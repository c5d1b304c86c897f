package interp

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// placeholder is a parsed `{...}` token from a format string.
type placeholder struct {
	debug     bool
	precision int // -1 when absent
}

var precisionMarker = regexp.MustCompile(`\.(\d+)`)

func parsePlaceholder(raw string) placeholder {
	ph := placeholder{precision: -1, debug: strings.Contains(raw, "?")}
	if m := precisionMarker.FindStringSubmatch(raw); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			ph.precision = p
		}
	}
	return ph
}

// Render substitutes the arguments into the format string. Placeholders
// consume arguments strictly left to right; placeholders left over once
// the arguments run out are kept verbatim.
func (p PrintlnResult) Render(env Env) (string, error) {
	var (
		b    strings.Builder
		next int
		f    = p.Format
	)
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c == '}' && i+1 < len(f) && f[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(f) && f[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(f[i:], '}')
		if end < 0 {
			b.WriteString(f[i:])
			break
		}
		raw := f[i : i+end+1]
		i += end

		if next >= len(p.Args) {
			b.WriteString(raw)
			continue
		}
		text, err := resolve(parsePlaceholder(raw), p.Args[next], env)
		if err != nil {
			return "", err
		}
		next++
		b.WriteString(text)
	}
	return b.String(), nil
}

// resolve renders one argument expression. A call to a known builtin is
// evaluated; a known variable is rendered by value; anything else is
// passed through as raw text.
func resolve(ph placeholder, arg string, env Env) (string, error) {
	if c, ok := parseCall(arg); ok {
		if op, known := LookupOp(c.name); known {
			n, err := evalCall(op, c.args, env)
			if err != nil {
				return "", err
			}
			if ph.precision >= 0 {
				return formatFixed(n, ph.precision), nil
			}
			return formatNumber(n), nil
		}
	}

	if v, ok := env.Lookup(arg); ok {
		if seq, isSeq := v.Seq(); isSeq {
			if ph.debug {
				return debugSequence(seq), nil
			}
			return plainSequence(seq), nil
		}
		n, _ := v.Num()
		return formatNumber(n), nil
	}

	return arg, nil
}

type call struct {
	name string
	args []string
}

var callHead = regexp.MustCompile(`^(\w+)\s*\(`)

// parseCall matches `name(args...)` spanning the whole expression.
func parseCall(expr string) (call, bool) {
	expr = strings.TrimSpace(expr)
	m := callHead.FindStringSubmatch(expr)
	if m == nil {
		return call{}, false
	}
	open := len(m[0])
	close := closingParen(expr, open)
	if close != len(expr)-1 {
		return call{}, false
	}
	return call{name: m[1], args: SplitArgs(expr[open:close])}, true
}

func evalCall(op Op, args []string, env Env) (float64, error) {
	var flat []float64
	for _, a := range args {
		ns, err := evalCallArg(a, env)
		if err != nil {
			return 0, err
		}
		flat = append(flat, ns...)
	}
	return op.Apply(flat)
}

// evalCallArg evaluates one builtin argument. A leading & borrows the
// value as a sequence; bare variables must be numbers.
func evalCallArg(arg string, env Env) ([]float64, error) {
	arg = strings.TrimSpace(arg)

	if strings.HasPrefix(arg, "&") {
		ref := strings.TrimSpace(strings.TrimPrefix(arg[1:], "mut "))
		if v, ok := env.Lookup(ref); ok {
			return v.AsSequence(), nil
		}
		if v, ok := evalLiteral(ref); ok {
			return v.AsSequence(), nil
		}
		return evalCallArg(ref, env)
	}

	if c, ok := parseCall(arg); ok {
		if op, known := LookupOp(c.name); known {
			n, err := evalCall(op, c.args, env)
			if err != nil {
				return nil, err
			}
			return []float64{n}, nil
		}
	}

	if v, ok := env.Lookup(arg); ok {
		n, isNum := v.Num()
		if !isNum {
			return nil, &KindError{Name: arg, Want: KindNumber, Got: KindSequence}
		}
		return []float64{n}, nil
	}

	return []float64{parseLeadingFloat(arg)}, nil
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// parseLeadingFloat reads the numeric prefix of s, so Rust literals such
// as 64.0 or 3u32 parse; anything else is 0.
func parseLeadingFloat(s string) float64 {
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case n == 0:
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func formatFixed(n float64, precision int) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return formatNumber(n)
	}
	if n == 0 {
		n = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(n, 'f', precision, 64)
}
