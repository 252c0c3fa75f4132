// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/mlforge/mlforge/internal/compose"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/internal/registry"
	"github.com/mlforge/mlforge/pkg/forgefile"

	"github.com/spf13/cobra"
)

// pinFlags are the inputs for the pin command.
type pinFlags struct {
	composeFlags
	check bool
}

// newPinCommand creates the `mlforge pin` command.
func newPinCommand(app *App) *cobra.Command {
	flags := &pinFlags{}

	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Pin the base image to its current digest",
		Long: `Pin the base image: resolve the floating base reference against the
registry and record the digest it currently serves in forgefile.lock.

A floating tag like ml-base:latest deliberately tracks whatever the
registry serves, so two builds of the same project can start from
different bases. Pinning trades that freshness for reproducibility:
builds run with --pin (or build.pin in the config) use the locked digest
until the next 'mlforge pin'.

Examples:
  mlforge pin                   Record the current digest
  mlforge pin --check           Report drift between lock and registry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPin(cmd, app, flags)
		},
	}

	flags.composeFlags.register(cmd)
	cmd.Flags().BoolVar(&flags.check, "check", false, "compare the lock against the registry without writing")

	return cmd
}

func runPin(cmd *cobra.Command, app *App, flags *pinFlags) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	cfg, err := app.loadConfigOrDefaults(ctx, cfgFile)
	if err != nil {
		return fail(cmd, err)
	}

	composeCfg, err := resolveComposeConfig(&flags.composeFlags, cfg)
	if err != nil {
		return fail(cmd, err)
	}

	resolved, err := compose.ResolveBase(composeCfg.Identity.Owner, composeCfg.Base)
	if err != nil {
		return fail(cmd, err)
	}
	if resolved.Pinned() {
		fmt.Fprintf(stdout, "%s Base is already digest-pinned in the forgefile: %s\n", infoIcon, resolved.Ref())
		return nil
	}

	ref := resolved.Ref()
	fmt.Fprintf(stdout, "%s Resolving %s...\n", infoIcon, CmdStyle.Render(ref))

	digest, err := app.Resolver.ResolveDigest(ctx, ref)
	if err != nil {
		return fail(cmd, err)
	}

	lockPath := registry.LockPath(composeCfg.ContextDir)

	if flags.check {
		return checkPin(cmd, lockPath, ref, digest)
	}

	lock := registry.NewLock(ref, digest, time.Now())
	if err := lock.Write(lockPath); err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintf(stdout, "%s Pinned %s\n", successIcon, CmdStyle.Render(ref))
	fmt.Fprintf(stdout, "%s Digest: %s\n", infoIcon, digest)
	fmt.Fprintf(stdout, "%s Lock:   %s\n", infoIcon, pathStyle.Render(lockPath))
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Build against it with: %s\n", CmdStyle.Render("mlforge build --pin"))

	return nil
}

// checkPin compares the recorded digest against what the registry serves
// right now. Drift exits non-zero so CI can gate on it.
func checkPin(cmd *cobra.Command, lockPath, ref string, current forgefile.ImageDigest) error {
	stdout := cmd.OutOrStdout()

	lock, err := registry.ReadLock(lockPath)
	if err != nil {
		if errors.Is(err, registry.ErrLockNotFound) {
			return fail(cmd, issue.NewErrorContext().
				WithOperation("check pin").
				WithResource(ref).
				WithSuggestion("Run 'mlforge pin' to create the lock first").
				Wrap(err).
				BuildError())
		}
		return fail(cmd, err)
	}

	locked, err := lock.DigestFor(ref)
	if err != nil {
		return fail(cmd, err)
	}

	if locked == current {
		fmt.Fprintf(stdout, "%s Lock is current: %s\n", successIcon, current)
		return nil
	}

	fmt.Fprintf(stdout, "%s Lock has drifted from the registry\n", errorIcon)
	fmt.Fprintf(stdout, "%s Locked (%s): %s\n", infoIcon, lock.Base.PinnedAt.Format(time.RFC3339), locked)
	fmt.Fprintf(stdout, "%s Current:     %s\n", infoIcon, current)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Refresh it with: %s\n", CmdStyle.Render("mlforge pin"))

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: 1}
}
