package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/rustplay/executor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive REPL with persistent bindings",
		Long: `Start an interactive REPL (Read-Eval-Print Loop) session.

Each input is a statement of a main body; let bindings persist and only new
output is printed.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Commands:
  :source   print the accumulated program
  :reset    forget all bindings

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
		Args: cobra.NoArgs,
		RunE: runRepl,
	}
	cmd.Flags().String("history", "", "History file path (default: ~/.rustplay_history)")
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".rustplay_history")
	}

	exec, err := newExecutor(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer exec.Close()

	session := exec.NewSession()
	defer session.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             io.NopCloser(cmd.InOrStdin()),
		Stdout:            cmd.OutOrStdout(),
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "rustplay REPL (type 'exit' to quit, Ctrl+D to exit)")

	r := &repl{session: session, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		if !r.handle(cmd.Context(), line) {
			return nil
		}
	}
}

type repl struct {
	session *executor.Session
	out     io.Writer
	errOut  io.Writer
}

// handle evaluates one input and reports whether the loop should go on.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case "exit", "quit":
		return false
	case ":source":
		fmt.Fprint(r.out, r.session.Source())
		return true
	case ":reset":
		r.session.Reset()
		return true
	}

	result := r.session.Run(ctx, line)
	if result.Error != nil {
		if result.Output != "" {
			fmt.Fprintln(r.errOut, result.Output)
		} else {
			fmt.Fprintf(r.errOut, "Error: %v\n", result.Error)
		}
		return true
	}
	if result.Output != "" {
		fmt.Fprintln(r.out, result.Output)
	}
	return true
}
