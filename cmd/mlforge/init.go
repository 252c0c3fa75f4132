// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"

	"github.com/spf13/cobra"
)

// initFlags are the inputs for the init command.
type initFlags struct {
	owner   string
	contact string
	project string
	force   bool
}

// newInitCommand creates the `mlforge init` command. Scaffolding needs no
// services, so it does not take the App.
func newInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a new mlforge project",
		Long: `Scaffold a new mlforge project: a forgefile.cue carrying the identity,
an empty requirements.txt, and an executable entrypoint.sh starter.

The target directory defaults to the current directory; the project name
defaults to the directory's name. Existing requirements.txt and
entrypoint.sh files are never touched, and the forgefile is only
overwritten with --force.

Examples:
  mlforge init --owner acme --contact ml@acme.io
  mlforge init --owner acme --contact ml@acme.io --project sentiment ./sentiment`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.owner, "owner", "", "registry namespace the base image is published under")
	f.StringVar(&flags.contact, "contact", "", "maintainer contact recorded on composed images")
	f.StringVar(&flags.project, "project", "", "project name (default: target directory name)")
	f.BoolVarP(&flags.force, "force", "f", false, "overwrite an existing forgefile.cue")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("contact")

	return cmd
}

func runInit(cmd *cobra.Command, flags *initFlags, args []string) error {
	stdout := cmd.OutOrStdout()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fail(cmd, fmt.Errorf("failed to resolve target directory: %w", err))
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fail(cmd, fmt.Errorf("failed to create target directory: %w", err))
	}

	project := flags.project
	if project == "" {
		project = filepath.Base(absDir)
	}

	id := identity.Identity{
		Owner:   identity.OwnerName(flags.owner),
		Contact: identity.ContactAddress(flags.contact),
		Project: identity.ProjectName(project),
	}
	if err := id.Validate(); err != nil {
		return fail(cmd, err)
	}

	forgefilePath := filepath.Join(absDir, forgefile.DefaultName)
	if _, err := os.Stat(forgefilePath); err == nil && !flags.force {
		return fail(cmd, fmt.Errorf("%s already exists; use --force to overwrite", forgefilePath))
	}

	content := forgefile.GenerateCUE(&forgefile.Forgefile{
		Owner:   id.Owner,
		Contact: id.Contact,
		Project: id.Project,
	})
	if err := os.WriteFile(forgefilePath, []byte(content), 0o644); err != nil {
		return fail(cmd, fmt.Errorf("failed to write forgefile: %w", err))
	}
	fmt.Fprintf(stdout, "%s Created %s\n", successIcon, pathStyle.Render(forgefilePath))

	manifestPath := filepath.Join(absDir, string(forgefile.DefaultManifest))
	created, err := writeIfAbsent(manifestPath, starterManifest(project), 0o644)
	if err != nil {
		return fail(cmd, err)
	}
	reportScaffold(stdout, manifestPath, created)

	entrypointPath := filepath.Join(absDir, string(forgefile.DefaultEntrypoint))
	created, err = writeIfAbsent(entrypointPath, starterEntrypoint(project), 0o755)
	if err != nil {
		return fail(cmd, err)
	}
	reportScaffold(stdout, entrypointPath, created)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, SubtitleStyle.Render("Next steps:"))
	fmt.Fprintf(stdout, "  1. Add Python dependencies to %s\n", forgefile.DefaultManifest)
	fmt.Fprintf(stdout, "  2. Edit %s to start your workload\n", forgefile.DefaultEntrypoint)
	fmt.Fprintf(stdout, "  3. Run '%s' to compose the image\n", CmdStyle.Render("mlforge build"))
	fmt.Fprintf(stdout, "  4. Run '%s' to launch it\n", CmdStyle.Render("mlforge run"))

	return nil
}

// writeIfAbsent writes content to path unless the file already exists.
// Reports whether it wrote the file.
func writeIfAbsent(path, content string, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// reportScaffold prints the created/kept line for a scaffolded file.
func reportScaffold(w io.Writer, path string, created bool) {
	if created {
		fmt.Fprintf(w, "%s Created %s\n", successIcon, pathStyle.Render(path))
		return
	}
	fmt.Fprintf(w, "%s Kept existing %s\n", infoIcon, pathStyle.Render(path))
}

// starterManifest returns the scaffolded dependency manifest.
func starterManifest(project string) string {
	return fmt.Sprintf(`# Python dependencies for %s.
# One requirement per line; mlforge build installs them into the image.
`, project)
}

// starterEntrypoint returns the scaffolded entrypoint script. It parses as
// POSIX shell and echoes its argument vector, so a fresh project passes
// validation and demonstrates verbatim argument passthrough.
func starterEntrypoint(project string) string {
	return fmt.Sprintf(`#!/bin/sh
# Entrypoint for %s. Arguments given to 'mlforge run' arrive here verbatim.
set -eu

echo "%s workspace ready (args: $*)"
`, project, project)
}
