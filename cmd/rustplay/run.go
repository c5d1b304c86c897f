package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/caffeineduck/rustplay/executor"
	"github.com/caffeineduck/rustplay/source"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a Rust program",
		Long: `Run a Rust program and print what it would display.

Code can be provided via:
  - File argument: rustplay run calculator.rs
    (a path on disk, or a name looked up in --dir or the built-in samples)
  - Inline flag: rustplay run -c 'fn main() { println!("hi"); }'
  - Stdin: cat hello.rs | rustplay run

With --test the test view is run instead: for a sample name, its
tests/test_<name>.rs file is loaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	addRunFlags(cmd)
	return cmd
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [file]",
		Short: "Run the test view of a Rust program",
		Long: `Run the test view of a Rust program (same as run --test).

  rustplay test calculator.rs     runs tests/test_calculator.rs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, args, executor.ModeTest)
		},
	}
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().String("name", "main.rs", "File name reported for inline or stdin code")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().String("name", "main.rs", "File name reported for inline or stdin code")
	cmd.Flags().Bool("test", false, "Run the test view")
	cmd.Flags().String("mode", "", "View: source or test (overrides --test)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode := executor.ModeSource
	if test, _ := cmd.Flags().GetBool("test"); test {
		mode = executor.ModeTest
	}
	if cmd.Flags().Changed("mode") {
		s, _ := cmd.Flags().GetString("mode")
		m, err := executor.ParseMode(s)
		if err != nil {
			return err
		}
		mode = m
	}
	return runProgram(cmd, args, mode)
}

func runProgram(cmd *cobra.Command, args []string, mode executor.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	code, _ := cmd.Flags().GetString("code")
	name, _ := cmd.Flags().GetString("name")

	var src string
	switch {
	case code != "":
		src = code
	case len(args) > 0:
		name, src, err = loadProgram(ctx, newProvider(cfg), args[0], mode == executor.ModeTest)
		if err != nil {
			return err
		}
	default:
		// Check if stdin has data (not a terminal)
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return cmd.Help()
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		src = string(data)
		if src == "" {
			return cmd.Help()
		}
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	exec, err := newExecutor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer exec.Close()

	result := exec.Run(ctx, name, src, executor.WithMode(mode), executor.WithTimeout(cfg.Timeout))
	if result.Error != nil {
		return result.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	return nil
}

// loadProgram reads arg from disk when it names an existing file and from
// the provider otherwise. The returned name is what output refers to: the
// sample's own name even when its test file was loaded.
func loadProgram(ctx context.Context, provider source.Provider, arg string, test bool) (name, src string, err error) {
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", "", err
		}
		return filepath.Base(arg), string(data), nil
	}

	file := source.FileFor(arg, test)
	src, err = provider.Read(ctx, file)
	if err != nil {
		return "", "", err
	}
	return path.Base(arg), src, nil
}
