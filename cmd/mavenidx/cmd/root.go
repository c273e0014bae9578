// Package cmd provides the CLI commands for mavenidx.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/logging"
	"github.com/mavenidx/mavenidx/pkg/version"
)

// Exit codes of the CLI surface.
const (
	exitUsage   = 1
	exitIO      = 2
	exitCorrupt = 3
)

var (
	debugMode      bool
	logFile        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the mavenidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mavenidx",
		Short: "Maven repository indexer",
		Long: `mavenidx scans a local Maven repository, maintains a persistent
inverted index of every discovered artifact, serves keyword and faceted
search over that index, and publishes it as downloadable snapshots
(full plus incremental chunks) so that peers can mirror it cheaply.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("mavenidx version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newPackCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIdentifyCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the configured logger.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cfg.FilePath = logFile

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// stopLogging flushes and closes the log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		slog.Error("command_failed", slog.String("error", err.Error()))
	}
	return err
}

// ExitCode maps an error onto the documented CLI exit codes:
// 1 usage, 2 I/O failure, 3 corrupt index.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch idxerrors.GetCode(err) {
	case idxerrors.ErrCodeCorruptIndex, idxerrors.ErrCodeUnsupportedIndex:
		return exitCorrupt
	}
	if idxerrors.GetCategory(err) == idxerrors.CategoryIO {
		return exitIO
	}
	return exitUsage
}
