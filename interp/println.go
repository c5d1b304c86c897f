package interp

import (
	"strings"
)

// PrintlnStatus tags the outcome of ParsePrintln.
type PrintlnStatus int

const (
	PrintlnNoMatch PrintlnStatus = iota
	PrintlnMatched
	// PrintlnMalformed means the line names println! but its argument
	// list could not be read. Such lines print nothing.
	PrintlnMalformed
)

// PrintlnResult is the tagged result of parsing one line as a print.
type PrintlnResult struct {
	Status PrintlnStatus
	// Format is the format string with escapes already resolved.
	Format string
	// Args holds the top-level argument expressions after the format.
	Args []string
}

const printlnMacro = "println!"

// ParsePrintln recognizes `println!("<format>"[, <args>])`.
func ParsePrintln(line string) PrintlnResult {
	idx := macroIndex(line, printlnMacro)
	if idx < 0 {
		return PrintlnResult{Status: PrintlnNoMatch}
	}
	malformed := PrintlnResult{Status: PrintlnMalformed}

	s := line[idx+len(printlnMacro):]
	i := skipSpace(s, 0)
	if i >= len(s) || s[i] != '(' {
		return malformed
	}
	i = skipSpace(s, i+1)
	if i < len(s) && s[i] == ')' {
		return PrintlnResult{Status: PrintlnMatched}
	}
	if i >= len(s) || s[i] != '"' {
		return malformed
	}
	end := skipString(s, i)
	if end >= len(s) {
		return malformed
	}
	res := PrintlnResult{Status: PrintlnMatched, Format: unescape(s[i+1 : end])}

	i = skipSpace(s, end+1)
	if i >= len(s) {
		return malformed
	}
	switch s[i] {
	case ')':
		return res
	case ',':
		close := closingParen(s, i+1)
		if close < 0 {
			return malformed
		}
		res.Args = SplitArgs(s[i+1 : close])
		return res
	default:
		return malformed
	}
}

// macroIndex finds name where it starts a word, so eprintln! and
// my_println! do not match println!.
func macroIndex(line, name string) int {
	for from := 0; ; {
		i := strings.Index(line[from:], name)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isIdentByte(line[i-1]) {
			return i
		}
		from = i + 1
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// closingParen finds the ')' that closes an already opened paren,
// scanning from i. Quoted text is skipped.
func closingParen(s string, i int) int {
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = skipString(s, i)
		case '(', '[':
			depth++
		case ')', ']':
			if depth == 0 {
				if s[i] == ')' {
					return i
				}
				return -1
			}
			depth--
		}
	}
	return -1
}

// SplitArgs splits an argument list on top-level commas. Commas nested in
// parentheses, brackets or quoted text do not split.
func SplitArgs(list string) []string {
	var (
		args    []string
		current strings.Builder
		depth   int
		quoted  bool
	)
	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case c == '\\' && quoted && i+1 < len(list):
			current.WriteByte(c)
			i++
			c = list[i]
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}
	if last := strings.TrimSpace(current.String()); last != "" {
		args = append(args, last)
	}
	return args
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"', '\'':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
