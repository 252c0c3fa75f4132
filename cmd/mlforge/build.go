// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mlforge/mlforge/internal/compose"
	"github.com/mlforge/mlforge/internal/config"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/internal/layer"
	"github.com/mlforge/mlforge/internal/registry"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"
	"github.com/mlforge/mlforge/pkg/types"

	"github.com/spf13/cobra"
)

// composeFlags are the inputs shared by every command that expands a
// composition: build, plan, and pin.
type composeFlags struct {
	owner      string
	contact    string
	project    string
	contextDir string
	registry   string
}

// register binds the shared composition flags to the command.
func (cf *composeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cf.owner, "owner", "", "registry namespace the base image is published under")
	f.StringVar(&cf.contact, "contact", "", "maintainer contact recorded on the image")
	f.StringVar(&cf.project, "project", "", "project name for the workspace directory")
	f.StringVarP(&cf.contextDir, "context", "C", "", "project directory to search for the forgefile (default: current directory)")
	f.StringVar(&cf.registry, "registry", "", "base image registry host (overrides forgefile and config)")
}

// buildFlags are the inputs for the build command.
type buildFlags struct {
	composeFlags
	tag          string
	engine       string
	pin          bool
	noCache      bool
	installCache bool
}

// newBuildCommand creates the `mlforge build` command.
func newBuildCommand(app *App) *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compose the project image",
		Long: `Compose the project image: layer the workspace directory, the Python
dependencies from the manifest, and the entrypoint script on top of the
owner's ml-base image.

The identity comes from the forgefile.cue in the project directory (or a
parent). Without a forgefile, pass --owner, --contact, and --project for a
one-off build.

A failed build tags nothing: the image from the previous successful build
stays untouched.

Examples:
  mlforge build                          Build from the forgefile
  mlforge build --pin                    Use the digest from forgefile.lock
  mlforge build --no-cache               Rebuild every layer from scratch
  mlforge build --tag ml-dev:latest      Override the image tag`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, flags)
		},
	}

	flags.composeFlags.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&flags.tag, "tag", "t", "", "tag for the built image (default: mlforge-<project>:latest)")
	f.StringVar(&flags.engine, "engine", "", "container engine to build with (docker, podman, docker-api)")
	f.BoolVar(&flags.pin, "pin", false, "resolve the base image through forgefile.lock")
	f.BoolVar(&flags.noCache, "no-cache", false, "build without the engine's layer cache")
	f.BoolVar(&flags.installCache, "install-cache", false, "keep the installer's package cache in the image")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, flags *buildFlags) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cfg, err := app.loadConfigOrDefaults(ctx, cfgFile)
	if err != nil {
		return fail(cmd, err)
	}

	composeCfg, err := resolveComposeConfig(&flags.composeFlags, cfg)
	if err != nil {
		return fail(cmd, err)
	}

	if flags.tag != "" {
		composeCfg.Apply(compose.WithTag(container.ImageTag(flags.tag)))
	}
	composeCfg.Apply(
		compose.WithInstallCache(boolFlag(cmd, "install-cache", flags.installCache, cfg.Build.InstallCache)),
		compose.WithBuildCache(!boolFlag(cmd, "no-cache", flags.noCache, !cfg.Build.BuildCache)),
	)

	if boolFlag(cmd, "pin", flags.pin, cfg.Build.Pin) {
		if err := applyPinnedDigest(composeCfg); err != nil {
			return fail(cmd, err)
		}
	}

	engineType, err := resolveEngineType(flags.engine, cfg)
	if err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Compose Image"))
	fmt.Fprintf(stdout, "%s Project: %s\n", infoIcon, CmdStyle.Render(string(composeCfg.Identity.Project)))
	fmt.Fprintf(stdout, "%s Context: %s\n", infoIcon, pathStyle.Render(composeCfg.ContextDir))
	fmt.Fprintln(stdout)

	// Engine output streams live in verbose mode. Otherwise it is buffered
	// and flushed only when the build fails, so a clean build prints just
	// the step progression.
	var engineOut bytes.Buffer
	output := io.Writer(&engineOut)
	if verbose {
		output = stderr
	}
	composeCfg.Apply(
		compose.WithObserver(progressObserver(stdout)),
		compose.WithOutput(output),
	)

	result, err := app.Composer.Build(ctx, engineType, composeCfg)
	if err != nil {
		if engineOut.Len() > 0 {
			fmt.Fprintln(stderr)
			_, _ = io.Copy(stderr, &engineOut)
		}
		return fail(cmd, err)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s Composed %s\n", successIcon, CmdStyle.Render(string(result.Tag)))
	fmt.Fprintf(stdout, "%s Base:    %s\n", infoIcon, result.BaseRef)
	fmt.Fprintf(stdout, "%s Workdir: %s\n", infoIcon, result.WorkDir)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Launch it with: %s\n", CmdStyle.Render("mlforge run -- [args...]"))

	return nil
}

// progressObserver renders one line per completed composition step.
func progressObserver(w io.Writer) layer.ObserverFunc {
	return func(step layer.StepName, phase layer.Phase) {
		if phase == layer.PhaseFailed {
			fmt.Fprintf(w, "  %s %s\n", errorIcon, step)
			return
		}
		fmt.Fprintf(w, "  %s %s %s\n", successIcon, step, SubtitleStyle.Render("("+phase.String()+")"))
	}
}

// boolFlag resolves a boolean setting: the flag value when the user set the
// flag, otherwise the configured default.
func boolFlag(cmd *cobra.Command, name string, flagValue, configValue bool) bool {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return configValue
}

// resolveComposeConfig assembles the composition configuration from the
// forgefile and the command-line flags. Flags always win: identity flags
// override the forgefile's identity fields, and --registry overrides both
// the forgefile and the configured default.
//
// Without a forgefile the identity must arrive complete via flags;
// otherwise the error points at mlforge init.
func resolveComposeConfig(flags *composeFlags, cfg *config.Config) (*compose.Config, error) {
	startDir := flags.contextDir
	if startDir == "" {
		startDir = "."
	}

	path, err := forgefile.Find(types.FilesystemPath(startDir))
	switch {
	case err == nil:
		f, parseErr := forgefile.Parse(path)
		if parseErr != nil {
			return nil, parseErr
		}
		applyIdentityOverrides(f, flags)

		var opts []compose.Option
		if f.Base == nil || f.Base.Registry == "" {
			opts = append(opts, compose.WithRegistry(cfg.Registry))
		}
		if flags.registry != "" {
			opts = append(opts, compose.WithRegistry(forgefile.RegistryHost(flags.registry)))
		}
		return compose.FromForgefile(f, opts...), nil

	case errors.Is(err, forgefile.ErrNotFound):
		if flags.owner == "" || flags.contact == "" || flags.project == "" {
			return nil, noForgefileError(startDir, err)
		}
		id := identity.Identity{
			Owner:   identity.OwnerName(flags.owner),
			Contact: identity.ContactAddress(flags.contact),
			Project: identity.ProjectName(flags.project),
		}
		opts := []compose.Option{compose.WithRegistry(cfg.Registry)}
		if flags.contextDir != "" {
			opts = append(opts, compose.WithContextDir(flags.contextDir))
		}
		if flags.registry != "" {
			opts = append(opts, compose.WithRegistry(forgefile.RegistryHost(flags.registry)))
		}
		return compose.NewConfig(id, opts...), nil

	default:
		return nil, err
	}
}

// applyIdentityOverrides replaces forgefile identity fields with explicitly
// flagged values.
func applyIdentityOverrides(f *forgefile.Forgefile, flags *composeFlags) {
	if flags.owner != "" {
		f.Owner = identity.OwnerName(flags.owner)
	}
	if flags.contact != "" {
		f.Contact = identity.ContactAddress(flags.contact)
	}
	if flags.project != "" {
		f.Project = identity.ProjectName(flags.project)
	}
}

// applyPinnedDigest swaps the floating base reference for the digest
// recorded in forgefile.lock. A forgefile that already pins a digest wins
// over the lock; a missing or stale lock aborts the build rather than
// silently floating.
func applyPinnedDigest(composeCfg *compose.Config) error {
	resolved, err := compose.ResolveBase(composeCfg.Identity.Owner, composeCfg.Base)
	if err != nil {
		return err
	}
	if resolved.Pinned() {
		return nil
	}

	lockPath := registry.LockPath(composeCfg.ContextDir)
	lock, err := registry.ReadLock(lockPath)
	if err != nil {
		if errors.Is(err, registry.ErrLockNotFound) {
			return issue.NewErrorContext().
				WithOperation("pin base image").
				WithResource(resolved.Ref()).
				WithSuggestion("Run 'mlforge pin' first to record the current digest").
				Wrap(err).
				BuildError()
		}
		return err
	}

	digest, err := lock.DigestFor(resolved.Ref())
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("pin base image").
			WithResource(lockPath).
			WithSuggestion("Run 'mlforge pin' to refresh the lock for the current base").
			Wrap(err).
			BuildError()
	}

	composeCfg.Apply(compose.WithPinnedDigest(digest))
	return nil
}

// noForgefileError reports a composition attempted without a forgefile or a
// complete identity.
func noForgefileError(dir string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("resolve project identity").
		WithResource(dir).
		WithSuggestion("Run 'mlforge init' to scaffold a forgefile.cue").
		WithSuggestion("Or pass --owner, --contact, and --project for a one-off build").
		Wrap(cause).
		BuildError()
}
