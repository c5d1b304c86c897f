package main

import (
	"fmt"
	"os"

	"github.com/caffeineduck/rustplay/accel"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the compilation cache",
		Long: `Manage the on-disk cache of compiled acceleration modules.

The cache lives in $XDG_CACHE_HOME/rustplay (or ~/.cache/rustplay).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), accel.DefaultCacheDir())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all cached compilations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := accel.DefaultCacheDir()
			if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", dir)
			return nil
		},
	})

	return cmd
}
