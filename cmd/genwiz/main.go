package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/martinemde/genwiz/internal/channel"
	"github.com/martinemde/genwiz/internal/config"
	"github.com/martinemde/genwiz/internal/generator"
	"github.com/martinemde/genwiz/internal/host"
	"github.com/martinemde/genwiz/internal/logging"
	"github.com/martinemde/genwiz/internal/session"
	"github.com/martinemde/genwiz/internal/ui"
	"github.com/martinemde/genwiz/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const version = "0.1.0"

var _ host.UI = (*ui.Terminal)(nil)

func main() {
	if err := run(os.Args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what the persistent pre-run resolves for every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr, v: viper.New()})
	root.SetArgs(args[1:])
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "genwiz [workspace]",
		Short:         "Run project generators as an interactive wizard",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, args)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runWizard,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("genwiz version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: .genwiz/config.yaml or ~/.config/genwiz/config.yaml)")
	flags.String("color", ui.ColorAuto, "control color output (auto, always, never)")
	flags.String("log-level", "", "diagnostic log level (debug, info, warn, error)")
	flags.String("log-file", "", "write diagnostic logs as JSON to this file")
	_ = a.v.BindPFlag("color", flags.Lookup("color"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_file", flags.Lookup("log-file"))

	_ = root.RegisterFlagCompletionFunc("color", fixedCompletion(ui.ColorAuto, ui.ColorAlways, ui.ColorNever))
	_ = root.RegisterFlagCompletionFunc("log-level", fixedCompletion("debug", "info", "warn", "error"))
	root.ValidArgsFunction = completeWorkspace

	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		if cmd != root {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		color, _ := cmd.Flags().GetString("color")
		printHelp(cmd.OutOrStdout(), color)
	})

	root.AddCommand(newWorkerCmd(a), newListCmd(a))
	return root
}

// setup loads configuration and the logger. Bound flags win over files and
// environment only when set explicitly. The project config comes from the
// workspace argument when there is one, which is where the worker runs.
func (a *app) setup(_ *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	if len(args) == 1 && args[0] != "" {
		if abs, err := filepath.Abs(args[0]); err == nil {
			dir = abs
		}
	}
	cfg, err := config.Load(a.v, a.cfgFile, dir)
	if err != nil {
		return err
	}
	a.cfg = cfg

	ui.ConfigureColorProfile(cfg.Color)

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// runWizard starts the wizard in the workspace and waits for it to finish.
func (a *app) runWizard(_ *cobra.Command, args []string) error {
	workspace, err := workspaceArg(args)
	if err != nil {
		return err
	}

	term := ui.NewTerminal(a.stdout)
	sup, err := host.New(a.workerConfig(), term, a.logger)
	if err != nil {
		return err
	}
	mgr := session.NewManager(sup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Replace(ctx, workspace); err != nil {
		if errors.Is(err, host.ErrNoWorkspaceOpen) {
			return nil
		}
		return fmt.Errorf("starting session: %w", err)
	}

	go func() {
		<-ctx.Done()
		mgr.Destroy()
	}()

	if err := mgr.Wait(context.Background()); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}

// workspaceArg resolves the workspace root. No argument means the current
// directory; an explicit empty argument stays empty.
func workspaceArg(args []string) (string, error) {
	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return wd, nil
	}
	if args[0] == "" {
		return "", nil
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace %s: %w", args[0], err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", args[0])
	}
	return abs, nil
}

func fixedCompletion(values ...string) cobra.CompletionFunc {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeWorkspace offers directories for the single workspace argument.
func completeWorkspace(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveFilterDirs
}

// workerConfig passes the resolved settings on to the worker process. The
// worker reads the same config file the host read, whatever its own cwd.
func (a *app) workerConfig() host.Config {
	args := []string{"worker"}
	if a.cfg.File != "" {
		if abs, err := filepath.Abs(a.cfg.File); err == nil {
			args = append(args, "--config", abs)
		}
	}
	return host.Config{
		Executable:  a.cfg.Worker.Executable,
		Args:        args,
		Env:         []string{logging.LevelEnvVar + "=" + a.cfg.LogLevel},
		GracePeriod: a.cfg.Worker.GracePeriod,
	}
}

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run the generator side of a wizard session",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runWorker()
		},
	}
}

// runWorker serves one session over the inherited channel. It reports
// generator failures to the host, not through its exit status.
func (a *app) runWorker() error {
	logger := a.logger.Named("worker")

	conn, err := channel.FromEnv(channel.WithParseErrorHandler(func(line []byte, err error) {
		logger.Warn("ignoring malformed message", zap.ByteString("line", line), zap.Error(err))
	}))
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("getting current directory: %w", err)
	}
	path, err := generator.NewSearchPath(wd, a.cfg.Generators.Paths)
	if err != nil {
		_ = conn.Close()
		return err
	}
	engine := generator.NewTemplateEngine(path, wd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Serve(ctx, conn, engine, logger); err != nil {
		logger.Debug("session ended", zap.Error(err))
	}
	return nil
}
