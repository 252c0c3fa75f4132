// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/mlforge/mlforge/internal/compose"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/layer"

	"github.com/spf13/cobra"
)

// planFlags are the inputs for the plan command.
type planFlags struct {
	composeFlags
	tag          string
	pin          bool
	installCache bool
	raw          bool
}

// newPlanCommand creates the `mlforge plan` command.
func newPlanCommand(app *App) *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the composition without building",
		Long: `Preview the composition: expand the identity into the ordered build
steps and the Dockerfile they produce, without touching a container engine.

Planning is pure, so it surfaces every configuration problem a build would
hit: a bad identity, an unresolvable base reference, or an invalid label.

Examples:
  mlforge plan                  Show steps and the rendered Dockerfile
  mlforge plan --pin            Preview with the locked base digest
  mlforge plan --raw            Print only the Dockerfile (pipeable)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, app, flags)
		},
	}

	flags.composeFlags.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&flags.tag, "tag", "t", "", "tag the built image would carry")
	f.BoolVar(&flags.pin, "pin", false, "resolve the base image through forgefile.lock")
	f.BoolVar(&flags.installCache, "install-cache", false, "keep the installer's package cache in the image")
	f.BoolVar(&flags.raw, "raw", false, "print only the rendered Dockerfile")

	return cmd
}

func runPlan(cmd *cobra.Command, app *App, flags *planFlags) error {
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

	if flags.tag != "" {
		composeCfg.Apply(compose.WithTag(container.ImageTag(flags.tag)))
	}
	composeCfg.Apply(compose.WithInstallCache(
		boolFlag(cmd, "install-cache", flags.installCache, cfg.Build.InstallCache)))

	if boolFlag(cmd, "pin", flags.pin, cfg.Build.Pin) {
		if err := applyPinnedDigest(composeCfg); err != nil {
			return fail(cmd, err)
		}
	}

	plan, err := app.Composer.Plan(composeCfg)
	if err != nil {
		return fail(cmd, err)
	}

	// Collect the step progression while rendering, so the preview shows
	// the same phase transitions a real build reports.
	type stepEvent struct {
		step  layer.StepName
		phase layer.Phase
	}
	var events []stepEvent
	dockerfile, err := plan.Render(func(step layer.StepName, phase layer.Phase) {
		events = append(events, stepEvent{step: step, phase: phase})
	})
	if err != nil {
		return fail(cmd, err)
	}

	if flags.raw {
		fmt.Fprint(stdout, dockerfile)
		return nil
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Composition Plan"))
	fmt.Fprintf(stdout, "%s Project: %s\n", infoIcon, CmdStyle.Render(string(composeCfg.Identity.Project)))
	base := plan.Base()
	if base.Pinned() {
		fmt.Fprintf(stdout, "%s Base:    %s %s\n", infoIcon, plan.BaseRef(), SubtitleStyle.Render("(pinned)"))
	} else {
		fmt.Fprintf(stdout, "%s Base:    %s %s\n", infoIcon, plan.BaseRef(), SubtitleStyle.Render("(floating tag)"))
	}
	fmt.Fprintf(stdout, "%s Workdir: %s\n", infoIcon, plan.WorkDir())
	fmt.Fprintf(stdout, "%s Tag:     %s\n", infoIcon, CmdStyle.Render(string(plan.Tag())))
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, SubtitleStyle.Render("Steps:"))
	for i, ev := range events {
		fmt.Fprintf(stdout, "  %d. %-22s %s\n", i+1, ev.step, SubtitleStyle.Render(ev.phase.String()))
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, SubtitleStyle.Render("Dockerfile:"))
	fmt.Fprint(stdout, dockerfile)

	return nil
}
