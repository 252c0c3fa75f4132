// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mlforge/mlforge/internal/config"
	"github.com/mlforge/mlforge/internal/issue"

	"github.com/charmbracelet/fang"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output. Set by the --verbose flag, or by the
	// ui.verbose config key when the flag is absent.
	verbose bool
	// cfgFile is the explicit config file path from --config.
	cfgFile string
	// colorScheme is the glamour style for rendered help cards, taken from
	// the ui.color_scheme config key.
	colorScheme = config.ColorSchemeAuto
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the CLI and runs it. This is called by main.main(). A
// returned ExitError carries the process exit code; any other error exits 1.
func Execute() {
	setupLogging(verbose)

	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	// fang.Execute provides styled help/errors; the version is passed via
	// fang.WithVersion since fang overrides rootCmd.Version.
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// newRootCommand assembles the root command and its subcommand tree.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mlforge",
		Short: "Compose and launch layered images for ML project workspaces",
		Long: TitleStyle.Render("mlforge") + SubtitleStyle.Render(" - layered image composition for ML projects") + `

mlforge turns a three-parameter project identity (owner, contact, project)
into a reproducible container image: it layers a per-project workspace
directory and the project's Python dependencies on top of a shared ml-base
image, registers the project's entrypoint script, and launches the result
with run-time arguments passed through verbatim.

Projects declare their parameters in a 'forgefile.cue' file; one-off builds
can pass the identity directly via flags.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Scaffold a project:        mlforge init --owner acme --contact ml@acme.io
  2. Add Python dependencies:   edit requirements.txt
  3. Compose the image:         mlforge build
  4. Launch the workspace:      mlforge run -- --epochs 10

` + SubtitleStyle.Render("Examples:") + `
  mlforge plan                 Preview the build without an engine
  mlforge pin                  Pin the base image to today's digest
  mlforge validate             Check the forgefile and entrypoint script
  mlforge config show          Show current configuration`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mlforge/config.cue)")

	root.AddCommand(
		newBuildCommand(app),
		newRunCommand(app),
		newPlanCommand(app),
		newPinCommand(app),
		newCleanCommand(app),
		newInitCommand(),
		newValidateCommand(),
		newConfigCommand(app),
		newCompletionCommand(),
	)

	return root
}

// setupLogging installs the charm log handler as the slog default. Debug
// records are emitted only in verbose mode; the forge's own packages log
// progress at debug and anomalies at warn.
func setupLogging(verboseMode bool) {
	level := charmlog.WarnLevel
	if verboseMode {
		level = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           level,
		ReportTimestamp: false,
	})
	slog.SetDefault(slog.New(handler))
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// render their remediation steps; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
