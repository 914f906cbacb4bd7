// Package cli wires configuration, logging, storage and a front-end into the usertasks command.
package cli

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"usertasks/app"
	"usertasks/config"
	"usertasks/logging"
	"usertasks/session"
	"usertasks/store"
	"usertasks/tui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// ErrCheckFailed is returned by the check command when the data file does not validate.
var ErrCheckFailed = errors.New("data file check failed")

// NewRootCommand builds the usertasks command reading from in and writing the transcript to out.
// Diagnostics and startup errors go to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "usertasks",
		Short:   "Per-user task lists behind a numbered menu",
		Long:    "usertasks keeps a JSON file of accounts, each with its own task list, and edits it through a numbered text menu.",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, errOut)
			if err != nil {
				return err
			}
			return runInteractive(cfg, logger, in, out)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	config.RegisterFlags(cmd.PersistentFlags())
	cmd.AddCommand(newCheckCommand(out, errOut))
	return cmd
}

func setup(cmd *cobra.Command, errOut io.Writer) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(errOut, logging.Options{
		Level:           logging.ParseLevel(cfg.LogLevel),
		Formatter:       logging.ParseFormatter(cfg.LogFormat),
		ReportTimestamp: true,
	})
	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", "file", cfg.ConfigFile)
	}
	return cfg, logger, nil
}

func runInteractive(cfg *config.Config, logger *log.Logger, in io.Reader, out io.Writer) error {
	state, status, err := store.Open(cfg.DataFile, cfg.Seed)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	logger.Debug("data file loaded", "path", cfg.DataFile, "accounts", len(state))
	if status != "" {
		logger.Warn(status, "path", cfg.DataFile)
	}

	svc := app.NewService(state, store.Writer{Path: cfg.DataFile, Backups: cfg.Backups})

	if cfg.UI == config.UITUI {
		return tui.Run(svc, status, logger, tea.WithInput(in), tea.WithOutput(out))
	}
	if status != "" {
		fmt.Fprintln(out, lipgloss.NewRenderer(out).NewStyle().Foreground(lipgloss.Color("214")).Render(status))
	}
	return session.New(svc, in, out, logger).Run()
}

func newCheckCommand(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the data file and summarize its accounts",
		Long: "check validates the data file against the embedded schema and prints one line per account.\n" +
			"Reading takes the same advisory lock as the interactive program, so a <data file>.lock file\n" +
			"is created next to the data file if it is not there yet.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, errOut)
			if err != nil {
				return err
			}
			return check(cfg.DataFile, logger, out)
		},
	}
}

func check(path string, logger *log.Logger, out io.Writer) error {
	r := lipgloss.NewRenderer(out)
	okStyle := r.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle := r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	if !store.Exists(path) {
		fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("%s: no data file", path)))
		return ErrCheckFailed
	}
	if err := store.ValidateFile(path); err != nil {
		logger.Debug("validation failed", "path", path, "err", err)
		fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("%s: %v", path, err)))
		return ErrCheckFailed
	}

	state, err := store.Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("%s: valid, %d accounts", path, len(state))))
	for _, acc := range state {
		done := 0
		for _, task := range acc.Tasks {
			if task.Completed {
				done++
			}
		}
		fmt.Fprintf(out, "  %s: %d tasks, %d completed\n", acc.Username, len(acc.Tasks), done)
	}
	return nil
}
