package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/composureai/perfectstorm/internal/executor"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// Exit codes for executor binaries (spec.md §6).
const (
	// ExitCodeSuccess indicates normal termination (a cancellation
	// signal was received and the loop exited cleanly).
	ExitCodeSuccess = 0
	// ExitCodeFatal indicates a fatal configuration/validation error.
	ExitCodeFatal = 1
)

// rootCmd is the base command; each reconciler role is a subcommand
// (spec.md §6, "Executor CLI flags").
var rootCmd = &cobra.Command{
	Use:          "perfectstorm",
	Short:        "Perfect Storm cluster-orchestration executors",
	SilenceUsage: true,
}

// SetVersion injects the build-time version into the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "perfectstorm version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps a returned error to spec.md §6's two-code scheme: a
// FatalError propagating out of an executor's Run loop means validation
// or misconfiguration, anything else from cobra itself (bad flags) is
// also treated as fatal.
func getExitCode(err error) int {
	var fatal *executor.FatalError
	if errors.As(err, &fatal) {
		logging.Error("perfectstorm", err, "fatal error, exiting")
		return ExitCodeFatal
	}
	logging.Error("perfectstorm", err, "command failed")
	return ExitCodeFatal
}

func init() {
	rootCmd.AddCommand(newConsulCmd())
	rootCmd.AddCommand(newLBCmd())
	rootCmd.AddCommand(newStatusCmd())
}
