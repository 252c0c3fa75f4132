// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mlforge/mlforge/internal/boot"
	"github.com/mlforge/mlforge/internal/config"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/internal/registry"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/types"

	"github.com/spf13/cobra"
)

// fail renders err to the command's stderr and converts it into an
// ExitError so Cobra neither re-prints the error nor shows usage. Known
// failure classes additionally render their catalog card with remediation
// steps.
func fail(cmd *cobra.Command, err error) error {
	return failWith(cmd, err, 1)
}

// failWith renders err and returns a silenced ExitError with the code.
func failWith(cmd *cobra.Command, err error, code types.ExitCode) error {
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "%s %s\n", errorIcon, formatErrorForDisplay(err, verbose))
	renderIssueCard(stderr, err)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: code, Err: err}
}

// renderIssueCard writes the catalog help card matching the error's
// sentinel, if one exists. Cards are rendered markdown with doc links, so
// they only fire for failure classes where a short suggestion line is not
// enough to get unstuck.
func renderIssueCard(stderr io.Writer, err error) {
	id, ok := issueIDFor(err)
	if !ok {
		return
	}

	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(glamourStyle(colorScheme))
	if renderErr != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", id, "error", renderErr)
		return
	}
	fmt.Fprint(stderr, rendered)
}

// issueIDFor maps error sentinels to their issue catalog entries.
func issueIDFor(err error) (issue.Id, bool) {
	switch {
	case errors.Is(err, forgefile.ErrNotFound):
		return issue.ForgefileNotFoundId, true
	case errors.Is(err, container.ErrNoEngineAvailable):
		return issue.ContainerEngineNotFoundId, true
	case errors.Is(err, registry.ErrLockStale):
		return issue.LockDriftId, true
	case errors.Is(err, boot.ErrScriptSyntax):
		return issue.EntrypointInvalidId, true
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId, true
	default:
		return 0, false
	}
}

// glamourStyle maps the configured color scheme to a glamour style path.
func glamourStyle(scheme config.ColorScheme) string {
	switch scheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}
