package interp

import (
	"regexp"
	"strings"
)

var mainHeader = regexp.MustCompile(`\bfn\s+main\s*\(\s*\)[^{;]*\{`)

// ExtractMain returns the body of the first parameterless main function.
// Braces inside string literals, char literals and comments are skipped,
// so format strings such as "{}" do not end the body early. ok is false
// when there is no main function or its braces never balance.
func ExtractMain(source string) (body string, ok bool) {
	loc := mainHeader.FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	end := matchBrace(source, open)
	if end < 0 {
		return "", false
	}
	return source[open+1 : end], true
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"':
			i = skipString(s, i)
		case '\'':
			i = skipChar(s, i)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return -1
				}
				i += nl
			} else if i+1 < len(s) && s[i+1] == '*' {
				close := strings.Index(s[i+2:], "*/")
				if close < 0 {
					return -1
				}
				i += close + 3
			}
		}
	}
	return -1
}

// skipString returns the index of the quote closing the string at i.
func skipString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(s)
}

// skipChar skips 'x' and '\x' literals; a lone quote (a lifetime) is
// left alone.
func skipChar(s string, i int) int {
	if i+2 < len(s) && s[i+1] != '\\' && s[i+2] == '\'' {
		return i + 2
	}
	if i+3 < len(s) && s[i+1] == '\\' && s[i+3] == '\'' {
		return i + 3
	}
	return i
}

// statementLines splits a body into trimmed lines.
func statementLines(body string) []string {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}
