// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mlforge/mlforge/internal/boot"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/types"

	"github.com/spf13/cobra"
)

// validateFlags are the inputs for the validate command.
type validateFlags struct {
	strict bool
}

// newValidateCommand creates the `mlforge validate` command. Validation is
// pure inspection, so it does not take the App.
func newValidateCommand() *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate the forgefile and project files",
		Long: `Validate a project without building it: parse the forgefile against the
CUE schema, check the identity and base selection, verify the dependency
manifest and entrypoint script exist, and parse the entrypoint as POSIX
shell.

Without arguments, the forgefile is located like build locates it: in the
current directory or the nearest parent. A path argument names either a
forgefile or a directory containing one.

Examples:
  mlforge validate                    Validate the nearest forgefile
  mlforge validate ./sentiment        Validate a specific project
  mlforge validate --strict           Treat warnings as errors`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, flags *validateFlags, args []string) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	path, err := resolveValidateTarget(args)
	if err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Project Validation"))
	fmt.Fprintf(stdout, "%s Path: %s\n", infoIcon, pathStyle.Render(string(path)))
	fmt.Fprintln(stdout)

	f, err := forgefile.Parse(path)
	if err != nil {
		fmt.Fprintf(stderr, "%s CUE schema validation failed\n", errorIcon)
		fmt.Fprintln(stderr)
		fmt.Fprintf(stderr, "  %s\n", err)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: err}
	}
	fmt.Fprintf(stdout, "%s CUE schema validation passed\n", successIcon)

	issues := f.ValidateWithContext(&forgefile.ValidationContext{
		StrictMode: flags.strict,
		FilePath:   f.FilePath,
	})

	// The files validator reports a missing entrypoint; the syntax check
	// only adds signal when the script exists but does not parse.
	if synErr := validateEntrypointSyntax(f); synErr != nil {
		issues = append(issues, forgefile.ValidationError{
			Validator: "entrypoint",
			Field:     "entrypoint",
			Message:   synErr.Error(),
			Severity:  forgefile.SeverityError,
		})
	} else {
		fmt.Fprintf(stdout, "%s Entrypoint parses as POSIX shell\n", successIcon)
	}

	if len(issues) == 0 {
		fmt.Fprintf(stdout, "%s Structure and file checks passed\n", successIcon)
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "%s Project is valid\n", successIcon)
		return nil
	}

	renderValidationIssues(stderr, issues)

	if issues.HasErrors() {
		fmt.Fprintln(stderr)
		fmt.Fprintf(stderr, "%s Validation failed with %d error(s) and %d warning(s)\n",
			errorIcon, issues.ErrorCount(), issues.WarningCount())
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: 1, Err: issues}
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s Project is valid with %d warning(s)\n", warnIcon, issues.WarningCount())
	return nil
}

// resolveValidateTarget locates the forgefile to validate. An explicit file
// argument is used as-is; a directory must contain one directly; no
// argument searches upward from the current directory like build does.
func resolveValidateTarget(args []string) (types.FilesystemPath, error) {
	if len(args) == 0 {
		return forgefile.Find(".")
	}

	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("cannot validate %s: %w", target, err)
	}
	if !info.IsDir() {
		return types.FilesystemPath(target), nil
	}

	candidate := filepath.Join(target, forgefile.DefaultName)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("%w: no %s in %s", forgefile.ErrNotFound, forgefile.DefaultName, target)
	}
	return types.FilesystemPath(candidate), nil
}

// validateEntrypointSyntax parses the entrypoint script as POSIX shell.
// A missing script returns nil: file existence is the files validator's
// finding, not a second one.
func validateEntrypointSyntax(f *forgefile.Forgefile) error {
	path := filepath.Join(string(f.Dir()), string(f.EffectiveEntrypoint()))
	err := boot.ValidateScriptFile(path)
	if err == nil || errors.Is(err, boot.ErrEntrypointNotFound) {
		return nil
	}
	return err
}

// renderValidationIssues prints the numbered issue list, errors first.
func renderValidationIssues(stderr io.Writer, issues forgefile.ValidationErrors) {
	fmt.Fprintln(stderr)
	fmt.Fprintf(stderr, "%s %d issue(s) found:\n", warnIcon, len(issues))
	fmt.Fprintln(stderr)

	for i, iss := range issues {
		icon := warnIcon
		if iss.IsError() {
			icon = errorIcon
		}
		tag := VerboseStyle.Render(fmt.Sprintf("[%s]", iss.Validator))
		if iss.Field != "" {
			fmt.Fprintf(stderr, "  %d. %s %s %s: %s\n", i+1, icon, tag, iss.Field, iss.Message)
			continue
		}
		fmt.Fprintf(stderr, "  %d. %s %s %s\n", i+1, icon, tag, iss.Message)
	}
}
