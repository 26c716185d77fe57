package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreapp "svorder/internal/core/app"
	"svorder/internal/core/config"
	"svorder/internal/output"
	"svorder/internal/shared/observability"
	"svorder/internal/ui/cli"

	"github.com/spf13/cobra"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type options struct {
	verbose      bool
	absolute     bool
	includePaths []string
	defines      []string
	configPath   string
	jobs         int
	format       string
	frontend     string
	graphFormat  string
	graphOut     string
	exportDB     string
	metricsFile  string
	watch        bool
	ui           bool
	metricsAddr  string
}

// run executes one svorder invocation and returns its exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(ctx, stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "svorder: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "Run 'svorder --help' for usage.")
		return exitUsage
	}
	return exitError
}

func newRootCmd(ctx context.Context, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "svorder [flags] <file|dir>...",
		Short: "Compute a SystemVerilog compilation order",
		Long: `svorder parses SystemVerilog and Verilog sources, finds which files define and
use which modules and packages, and prints the files so that every file comes
after the files it depends on.`,
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{errors.New("at least one source file or directory is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(ctx, cmd, opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress and dependency diagnostics to stderr")
	f.BoolVarP(&opts.absolute, "absolute", "a", false, "print canonical absolute paths")
	f.StringArrayVarP(&opts.includePaths, "include-path", "I", nil, "add an include search directory (repeatable)")
	f.StringArrayVarP(&opts.defines, "define", "D", nil, "predefine a macro as NAME or NAME=VALUE (repeatable)")
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file (default ./"+config.DefaultFile+" if present)")
	f.IntVarP(&opts.jobs, "jobs", "j", 0, "number of files parsed in parallel")
	f.StringVar(&opts.format, "format", "", "order output format: space, lines or json")
	f.StringVar(&opts.frontend, "frontend", "", "parser frontend: native or tree-sitter")
	f.StringVar(&opts.graphFormat, "graph-format", "", "graph export format: dot, tsv or mermaid")
	f.StringVar(&opts.graphOut, "graph-out", "", "write the file dependency graph to this path")
	f.StringVar(&opts.exportDB, "export-db", "", "record the run in this SQLite database")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")
	f.BoolVarP(&opts.watch, "watch", "w", false, "rerun whenever a source or header changes")
	f.BoolVar(&opts.ui, "ui", false, "watch with a terminal UI")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address in watch mode")
	return cmd
}

func execute(ctx context.Context, cmd *cobra.Command, opts *options, args []string, stdout, stderr io.Writer) error {
	setupLogging(opts, stderr)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()
	defer writeMetrics(cfg)

	app, err := coreapp.New(cfg)
	if err != nil {
		return err
	}

	if opts.watch || opts.ui {
		return watch(ctx, app, cfg, opts, args, stdout)
	}

	res, err := app.Run(ctx, args)
	if err != nil {
		return err
	}
	if err := app.WriteArtifacts(res); err != nil {
		return err
	}
	return output.WriteOrder(stdout, cfg.Output.Format, res.Order, res.Omitted)
}

func watch(ctx context.Context, app *coreapp.App, cfg *config.Config, opts *options, args []string, stdout io.Writer) error {
	if addr := strings.TrimSpace(cfg.Observability.MetricsAddr); addr != "" {
		srv := cli.NewObservabilityServer(addr, app)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = srv.Stop(context.Background()) }()
	}

	if opts.ui {
		return cli.RunUI(ctx, app, args)
	}

	app.SetUpdateHandler(func(u coreapp.Update) {
		if u.Err != nil {
			return
		}
		if err := output.WriteOrder(stdout, cfg.Output.Format, u.Result.Order, u.Result.Omitted); err != nil {
			slog.Error("failed to write order", "error", err)
		}
	})
	return app.Watch(ctx, args)
}

// loadConfig layers, lowest first: defaults, the config file, SVORDER_*
// environment variables, then flags. Repeatable list flags extend the file
// lists instead of replacing them.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, used, err := config.LoadOrDefault(opts.configPath, cwd)
	if err != nil {
		return nil, err
	}
	if used != "" {
		config.ResolvePaths(cfg, filepath.Dir(used))
		slog.Debug("config loaded", "path", used)
	}
	config.ApplyEnvOverrides(cfg)

	f := cmd.Flags()
	cfg.IncludePaths = append(cfg.IncludePaths, opts.includePaths...)
	cfg.Defines = append(cfg.Defines, opts.defines...)
	if f.Changed("absolute") {
		cfg.Absolute = opts.absolute
	}
	if f.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	setIfChanged(f.Changed("format"), &cfg.Output.Format, opts.format)
	setIfChanged(f.Changed("frontend"), &cfg.Frontend.Name, opts.frontend)
	setIfChanged(f.Changed("graph-format"), &cfg.Output.GraphFormat, opts.graphFormat)
	setIfChanged(f.Changed("graph-out"), &cfg.Output.GraphPath, opts.graphOut)
	setIfChanged(f.Changed("export-db"), &cfg.Output.Database, opts.exportDB)
	setIfChanged(f.Changed("metrics-file"), &cfg.Observability.MetricsFile, opts.metricsFile)
	setIfChanged(f.Changed("metrics-addr"), &cfg.Observability.MetricsAddr, opts.metricsAddr)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setIfChanged(changed bool, target *string, value string) {
	if changed {
		*target = value
	}
}

func writeMetrics(cfg *config.Config) {
	path := strings.TrimSpace(cfg.Observability.MetricsFile)
	if path == "" {
		return
	}
	if err := observability.WriteTextfile(path); err != nil {
		slog.Warn("failed to write metrics file", "path", path, "error", err)
	}
}

func setupLogging(opts *options, stderr io.Writer) {
	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}

	out := stderr
	if opts.ui {
		// In UI mode, avoid terminal logs corrupting the TUI.
		if f, err := openLogFile(resolveLogPath()); err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", err)
			out = io.Discard
		} else {
			out = f
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log dir for %s: %w", logPath, err)
	}
	if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
		return nil, fmt.Errorf("refusing to write logs to symlink path %s", logPath)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	return f, nil
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "svorder", "svorder.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "svorder", "svorder.log")
	}

	return "svorder.log"
}
