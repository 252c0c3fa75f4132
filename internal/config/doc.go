// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/mlforge/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/mlforge/config.cue on macOS, %APPDATA%\mlforge\config.cue
// on Windows), with a config.cue in the current directory as fallback and MLFORGE_*
// environment variables layered on top. The package provides type-safe access to the
// container engine selection, registry override, build cache toggles, and UI settings.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
