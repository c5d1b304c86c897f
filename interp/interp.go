package interp

import (
	"fmt"
	"strings"
)

// Eval runs a main body and returns the printed lines. Lines matching
// neither a let binding nor a println! are skipped. The first evaluation
// failure aborts the run; no partial output is returned with it.
func Eval(body string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("%v", r)
		}
	}()

	env := NewEnv()
	for _, line := range statementLines(body) {
		if line == "" {
			continue
		}
		if let := ParseLet(line); let.Status != LetNoMatch {
			if let.Status == LetBound {
				env.Bind(let.Name, let.Value)
			}
			continue
		}
		p := ParsePrintln(line)
		if p.Status != PrintlnMatched {
			continue
		}
		text, err := p.Render(env)
		if err != nil {
			return nil, err
		}
		lines = append(lines, text)
	}
	return lines, nil
}

// Run interprets source as a program and returns what it would print.
// The result is always a displayable string: structural and evaluation
// failures are rendered as messages rather than returned.
func Run(filename, source string) string {
	body, ok := ExtractMain(source)
	if !ok {
		return fmt.Sprintf("Error: No main function found in %s", filename)
	}
	lines, err := Eval(body)
	if err != nil {
		return RuntimeError(err)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Executed %s - no output produced", filename)
	}
	return strings.Join(lines, "\n")
}

// RuntimeError renders an evaluation failure as a single output line.
func RuntimeError(err error) string {
	return "Runtime Error: " + err.Error()
}
