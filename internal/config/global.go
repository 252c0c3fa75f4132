// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride redirects ConfigDir for tests. os.UserHomeDir() does
// not reliably respect the HOME environment variable on all platforms
// (e.g., macOS in CI), so tests point the mlforge config lookup at a temp
// directory through this instead.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom directory for the config.cue lookup,
// bypassing the platform config-dir resolution. Test-only seam; pair with
// Reset in cleanup.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
