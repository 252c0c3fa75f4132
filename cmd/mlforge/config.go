// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/mlforge/mlforge/internal/config"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/pkg/forgefile"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `mlforge config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mlforge configuration",
		Long: `Manage mlforge configuration.

Configuration is stored in:
  - Linux: ~/.config/mlforge/config.cue
  - macOS: ~/Library/Application Support/mlforge/config.cue
  - Windows: %APPDATA%\mlforge\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfigFile(cmd.OutOrStdout())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.OutOrStdout())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd, app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

// showConfig loads directly through the package so the resolved file path
// can be displayed alongside the values; the provider interface reports
// values only.
func showConfig(cmd *cobra.Command) error {
	stdout := cmd.OutOrStdout()

	cfg, path, err := config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render(glamourStyle(colorScheme))
		fmt.Fprint(cmd.ErrOrStderr(), rendered)
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(stdout)

	if path != "" {
		fmt.Fprintf(stdout, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "%s: %s\n", keyStyle.Render("container_engine"), valueStyle.Render(engineDisplay(cfg.ContainerEngine)))
	fmt.Fprintf(stdout, "%s: %s\n", keyStyle.Render("registry"), valueStyle.Render(string(cfg.Registry)))

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s:\n", keyStyle.Render("build"))
	fmt.Fprintf(stdout, "  install_cache: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Build.InstallCache)))
	fmt.Fprintf(stdout, "  build_cache: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Build.BuildCache)))
	fmt.Fprintf(stdout, "  pin: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Build.Pin)))

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(stdout, "  color_scheme: %s\n", valueStyle.Render(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(stdout, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

// engineDisplay names the auto-detect zero value for display.
func engineDisplay(t container.EngineType) string {
	if t == "" {
		return "(auto-detect)"
	}
	return string(t)
}

func initConfigFile(stdout io.Writer) error {
	if err := config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s Created default configuration at %s\n", SuccessStyle.Render(successIcon), cfgPath)
	return nil
}

func showConfigPath(stdout io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(stdout, "Config file: %s\n", cfgPath)
	return nil
}

func setConfigValue(cmd *cobra.Command, app *App, key, value string) error {
	cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{})
	if err != nil {
		return err
	}

	switch key {
	case "container_engine":
		engine := container.EngineType(value)
		if err := engine.Validate(); err != nil {
			return err
		}
		cfg.ContainerEngine = engine

	case "registry":
		host := forgefile.RegistryHost(value)
		if err := host.Validate(); err != nil {
			return err
		}
		cfg.Registry = host

	case "build.install_cache":
		cfg.Build.InstallCache = value == "true" || value == "1"

	case "build.build_cache":
		cfg.Build.BuildCache = value == "true" || value == "1"

	case "build.pin":
		cfg.Build.Pin = value == "true" || value == "1"

	case "ui.color_scheme":
		scheme := config.ColorScheme(value)
		if valid, errs := scheme.IsValid(); !valid {
			return errs[0]
		}
		cfg.UI.ColorScheme = scheme

	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: container_engine, registry, build.install_cache, build.build_cache, build.pin, ui.color_scheme, ui.verbose", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s = %s\n", SuccessStyle.Render(successIcon), key, value)
	return nil
}
