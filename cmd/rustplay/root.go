package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caffeineduck/rustplay/accel"
	"github.com/caffeineduck/rustplay/executor"
	"github.com/caffeineduck/rustplay/internal/config"
	"github.com/caffeineduck/rustplay/source"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rustplay [file]",
		Short: "Run Rust demo programs without a Rust toolchain",
		Long: `rustplay - Show and run the Rust sample programs of a code playground.

Programs are evaluated by a small interpreter that understands let bindings,
println! formatting and the calculator builtins (add, subtract, multiply,
divide, power, sqrt_approximate, sum_vector, average_vector). When a
WebAssembly acceleration module is given with --accel, hello.rs is answered
by the module itself.

Files are read from --dir (a directory with src/ and tests/) or from the
samples built into the binary.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRun, // Default to run command behavior
	}

	root.PersistentFlags().String("config", "", "Config file (default: ./rustplay.yml if present)")
	root.PersistentFlags().String("dir", "", "Directory with src/ and tests/ (default: built-in samples)")
	root.PersistentFlags().String("accel", "", "WebAssembly acceleration module")
	root.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	root.PersistentFlags().String("memory", "", "Acceleration memory limit: 1mb, 16mb, 64mb, 256mb")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	addRunFlags(root)

	root.AddCommand(
		newRunCmd(),
		newTestCmd(),
		newReplCmd(),
		newFilesCmd(),
		newShowCmd(),
		newSampleCmd(),
		newCacheCmd(),
		newServeCmd(),
	)
	return root
}

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies explicitly set flags on
// top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("dir") {
		cfg.RustDir, _ = flags.GetString("dir")
	}
	if flags.Changed("accel") {
		cfg.Accelerator, _ = flags.GetString("accel")
	}
	if flags.Changed("no-cache") {
		noCache, _ := flags.GetBool("no-cache")
		cfg.Cache = !noCache
	}
	if flags.Changed("memory") {
		cfg.Memory, _ = flags.GetString("memory")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL, _ = flags.GetDuration("session-ttl")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newProvider(cfg *config.Config) source.Provider {
	if cfg.RustDir != "" {
		return source.NewDirProvider(cfg.RustDir)
	}
	return source.Embedded()
}

// newExecutor loads the configured acceleration module, if any. A module
// that fails to load is reported and the executor interprets everything.
func newExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*executor.Executor, error) {
	opts := []executor.ExecutorOption{executor.WithLogger(logger)}

	if cfg.Accelerator != "" {
		var accelOpts []accel.Option
		if cfg.Cache {
			accelOpts = append(accelOpts, accel.WithDiskCache())
		}
		if pages, _ := config.ParseMemory(cfg.Memory); pages > 0 {
			accelOpts = append(accelOpts, accel.WithMemoryLimit(pages))
		}

		mod, err := accel.LoadFile(ctx, cfg.Accelerator, accelOpts...)
		if err != nil {
			logger.Warn("acceleration module unavailable, interpreting only",
				"path", cfg.Accelerator, "error", err)
		} else {
			opts = append(opts, executor.WithAccelerator(mod))
		}
	}

	return executor.New(opts...)
}
