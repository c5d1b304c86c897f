package main

import (
	"fmt"

	"github.com/caffeineduck/rustplay/source"
	"github.com/spf13/cobra"
)

func newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the Rust source files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			files, err := newProvider(cfg).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a Rust source file",
		Long: `Print a Rust source file from --dir or the built-in samples.

  rustplay show hello.rs                 src/hello.rs
  rustplay show --test hello.rs          tests/test_hello.rs
  rustplay show tests/test_hello.rs      tests/test_hello.rs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			test, _ := cmd.Flags().GetBool("test")
			content, err := newProvider(cfg).Read(cmd.Context(), source.FileFor(args[0], test))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
	cmd.Flags().Bool("test", false, "Show the test file instead")
	return cmd
}
