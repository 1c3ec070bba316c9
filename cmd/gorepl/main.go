// Package main provides the gorepl CLI entry point.
// gorepl is an interactive read-eval-print loop for Go.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"gorepl/internal/config"
	"gorepl/internal/logger"
	"gorepl/internal/session"
	"gorepl/internal/shell"
	"gorepl/internal/version"
)

// app carries the configuration loaded for one invocation.
type app struct {
	cfg *config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gorepl",
		Short: "gorepl - an interactive Go REPL",
		Long: `gorepl evaluates Go expressions, statements and declarations interactively.
Commands start with a colon; type :help inside the REPL for the list.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
		RunE:              a.runRepl,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file [default: ~/.gorepl/config.yaml]")
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: warn]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("history-file", "", "History file [default: ~/.gorepl/history.yaml]")
	flags.Int("history-max", 0, "Number of history entries kept")
	flags.String("startup-policy", "", "What a failing startup expression does (continue|abort)")
	flags.String("output-dir", "", "Directory for generated evaluation programs")
	flags.String("prompt", "", "Input prompt")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive REPL",
		Long:  `Start the interactive REPL. This is also what gorepl does without a subcommand.`,
		RunE:  a.runRepl,
	}

	execCmd := &cobra.Command{
		Use:   "exec <input>...",
		Short: "Run inputs non-interactively",
		Long: `Run each argument as one REPL input, in order, after the startup expressions.
Arguments may be Go source or :commands. The exit status is non-zero if any input fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runExec,
	}

	var detailed bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
		},
	}
	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show build and platform details")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	rootCmd.AddCommand(replCmd, execCmd, versionCmd, configCmd)
	return rootCmd
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}
	a.cfg = cfg

	if err := version.ValidateVersion(); err != nil {
		logger.Warn("Build carries an invalid version", "error", err)
	}
	if ok, err := version.CheckGoVersion(runtime.Version()); err != nil || !ok {
		logger.Warn("Go runtime outside the supported range", "go", runtime.Version(), "supported", version.GoConstraint)
	}
	logger.Debug("Configuration loaded", "file", cfg.File)
	return nil
}

func (a *app) newSession(cmd *cobra.Command) (*session.Session, error) {
	sc, err := a.cfg.SessionConfig()
	if err != nil {
		return nil, err
	}
	return session.New(sc, session.WithWriter(cmd.OutOrStdout()))
}

func (a *app) runRepl(cmd *cobra.Command, _ []string) error {
	logger.Info("Starting gorepl", "version", version.Version)

	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	rl, err := shell.NewReadline(shell.ReadlineConfig{
		Prompt:    a.cfg.Prompt,
		Completer: s.AutoCompleter(),
		History:   s.History(),
		Stdout:    cmd.OutOrStdout(),
	})
	if err != nil {
		_ = s.Shutdown()
		return err
	}

	var hooks shell.ExitHooks
	hooks.Add("shutdown session", s.Shutdown)
	hooks.Add("close terminal", rl.Close)
	ctx, stop := hooks.Watch(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
	fmt.Fprintln(cmd.OutOrStdout(), "Type :help for the list of commands, :quit to exit.")

	s.Start()
	runErr := shell.New(s, rl, a.cfg.Prompt).Run(ctx)
	return errors.Join(runErr, hooks.Run())
}

func (a *app) runExec(cmd *cobra.Command, args []string) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}
	s.Start()

	var errs []error
	for _, input := range args {
		if _, err := s.Execute(input); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d input(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
