// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cleanFlags are the inputs for the clean command.
type cleanFlags struct {
	tag        string
	project    string
	contextDir string
	engine     string
	force      bool
}

// newCleanCommand creates the `mlforge clean` command.
func newCleanCommand(app *App) *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the composed project image",
		Long: `Remove the composed project image from the engine's local store.

The image tag is resolved the same way run resolves it: --tag, then
--project, then the forgefile in the current directory or a parent. An
image that is not present is not an error; clean is idempotent.

The base image and the forgefile are never touched: the next build
recreates the removed image from them.

Examples:
  mlforge clean                          Remove the forgefile project's image
  mlforge clean --project sentiment      Remove mlforge-sentiment:latest
  mlforge clean --force                  Remove even while containers reference it`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, app, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.tag, "tag", "t", "", "image tag to remove (default: derived from the project)")
	f.StringVar(&flags.project, "project", "", "project name to derive the image tag from")
	f.StringVarP(&flags.contextDir, "context", "C", "", "project directory to search for the forgefile")
	f.StringVar(&flags.engine, "engine", "", "container engine to clean (docker, podman, docker-api)")
	f.BoolVarP(&flags.force, "force", "f", false, "remove the image even if containers still reference it")

	return cmd
}

func runClean(cmd *cobra.Command, app *App, flags *cleanFlags) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cfg, err := app.loadConfigOrDefaults(ctx, cfgFile)
	if err != nil {
		return fail(cmd, err)
	}

	tag, err := resolveRunTag(&runFlags{
		tag:        flags.tag,
		project:    flags.project,
		contextDir: flags.contextDir,
	})
	if err != nil {
		return fail(cmd, err)
	}

	engineType, err := resolveEngineType(flags.engine, cfg)
	if err != nil {
		return fail(cmd, err)
	}

	exists, err := app.Images.Exists(ctx, engineType, tag)
	if err != nil {
		return fail(cmd, err)
	}
	if !exists {
		fmt.Fprintf(stdout, "%s Nothing to remove: %s is not in the local store\n",
			infoIcon, CmdStyle.Render(string(tag)))
		return nil
	}

	if verbose {
		description, inspectErr := app.Images.Inspect(ctx, engineType, tag)
		if inspectErr != nil {
			fmt.Fprintf(stderr, "%s failed to inspect %s before removal: %v\n", warnIcon, tag, inspectErr)
		} else {
			fmt.Fprintln(stderr, description)
		}
	}

	if err := app.Images.Remove(ctx, engineType, tag, flags.force); err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintf(stdout, "%s Removed %s\n", successIcon, CmdStyle.Render(string(tag)))
	return nil
}
