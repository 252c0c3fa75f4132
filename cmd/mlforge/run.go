// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/mlforge/mlforge/internal/compose"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"
	"github.com/mlforge/mlforge/pkg/types"

	"github.com/spf13/cobra"
)

// runFlags are the inputs for the run command.
type runFlags struct {
	tag         string
	project     string
	contextDir  string
	engine      string
	interactive bool
}

// newRunCommand creates the `mlforge run` command.
func newRunCommand(app *App) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [args...]",
		Short: "Launch the composed image",
		Long: `Launch the composed project image through its registered entrypoint.

Every argument after the command (or after --) is handed to the entrypoint
script exactly as written: nothing is reordered, merged, or interpreted.
The container's exit code becomes mlforge's exit code, so scripts and CI
pipelines observe the entrypoint's real outcome.

The image tag is resolved from --tag, then --project, then the forgefile
in the current directory or a parent.

Examples:
  mlforge run                            Run the bare entrypoint
  mlforge run -- --epochs 10 --fast      Pass flags through to the script
  mlforge run train.py data/set.csv      Positional arguments pass through
  mlforge run -i                         Attach stdin (interactive session)`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, app, flags, args)
		},
	}

	// The first positional argument ends flag parsing, so flags meant for
	// the entrypoint never have to be escaped with --.
	cmd.Flags().SetInterspersed(false)

	f := cmd.Flags()
	f.StringVarP(&flags.tag, "tag", "t", "", "image tag to run (default: derived from the project)")
	f.StringVar(&flags.project, "project", "", "project name to derive the image tag from")
	f.StringVarP(&flags.contextDir, "context", "C", "", "project directory to search for the forgefile")
	f.StringVar(&flags.engine, "engine", "", "container engine to run with (docker, podman, docker-api)")
	f.BoolVarP(&flags.interactive, "interactive", "i", false, "attach stdin to the container")

	return cmd
}

// runDispatch resolves the image tag and hands off to the dispatch service.
// Nothing is written to stdout here: stdout belongs to the container.
func runDispatch(cmd *cobra.Command, app *App, flags *runFlags, args []string) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfigOrDefaults(ctx, cfgFile)
	if err != nil {
		return fail(cmd, err)
	}

	tag, err := resolveRunTag(flags)
	if err != nil {
		return fail(cmd, err)
	}

	engineType, err := resolveEngineType(flags.engine, cfg)
	if err != nil {
		return fail(cmd, err)
	}

	code, err := app.Dispatch.Run(ctx, engineType, DispatchRequest{
		Image:       tag,
		Args:        args,
		Interactive: flags.interactive,
	})
	if err != nil {
		return failWith(cmd, err, code)
	}
	if code != 0 {
		// The entrypoint ran and exited non-zero. That outcome already
		// reached the user through the container's own output; only the
		// code needs to propagate.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: code}
	}
	return nil
}

// resolveRunTag determines the image tag to launch: the explicit --tag
// wins, then a tag derived from --project, then the forgefile's project.
func resolveRunTag(flags *runFlags) (container.ImageTag, error) {
	if flags.tag != "" {
		tag := container.ImageTag(flags.tag)
		if err := tag.Validate(); err != nil {
			return "", err
		}
		return tag, nil
	}

	if flags.project != "" {
		id := identity.Identity{Project: identity.ProjectName(flags.project)}
		return compose.NewConfig(id).EffectiveTag(), nil
	}

	startDir := flags.contextDir
	if startDir == "" {
		startDir = "."
	}
	path, err := forgefile.Find(types.FilesystemPath(startDir))
	if err != nil {
		if errors.Is(err, forgefile.ErrNotFound) {
			return "", noRunTargetError(startDir, err)
		}
		return "", err
	}
	f, err := forgefile.Parse(path)
	if err != nil {
		return "", err
	}
	return compose.FromForgefile(f).EffectiveTag(), nil
}

// noRunTargetError reports a run with no way to determine the image.
func noRunTargetError(dir string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("resolve run target").
		WithResource(dir).
		WithSuggestion("Pass --tag or --project to name the image").
		WithSuggestion(fmt.Sprintf("Or run from a directory with a %s", forgefile.DefaultName)).
		Wrap(cause).
		BuildError()
}
