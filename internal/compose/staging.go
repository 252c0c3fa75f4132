// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mlforge/mlforge/internal/boot"
	"github.com/mlforge/mlforge/pkg/forgefile"
)

// stagedDockerfileName is the Dockerfile's name inside the build context.
const stagedDockerfileName = "Dockerfile"

// ErrManifestNotFound is the sentinel error wrapped by ManifestNotFoundError.
var ErrManifestNotFound = errors.New("dependency manifest not found")

// ManifestNotFoundError reports a missing dependency manifest at staging
// time, before any engine call.
type ManifestNotFoundError struct {
	// Path is the expected manifest location.
	Path string
}

// Error implements the error interface.
func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("dependency manifest not found at %s", e.Path)
}

// Unwrap returns ErrManifestNotFound for errors.Is() compatibility.
func (e *ManifestNotFoundError) Unwrap() error { return ErrManifestNotFound }

// stageBuildContext materializes a temporary build context holding the
// staged manifest, the staged entrypoint script, and the Dockerfile.
// Nothing is handed to an engine here; a staging failure leaves no
// context behind.
//
// Note: Docker installed via Snap has limited filesystem access:
// - Cannot access /tmp (different namespace)
// - Cannot access hidden directories like ~/.cache (home interface restriction)
// - CAN access visible directories in $HOME like ~/mlforge-build
//
// We use a visible directory in the user's home as the build context location.
func stageBuildContext(cfg *Config, dockerfile string) (buildContextDir string, cleanup func(), err error) {
	// Containment first: a manifest or entrypoint path that climbs out of
	// the project directory must fail before anything touches the disk.
	manifestSrc, err := forgefile.ResolveWithin(cfg.ContextDir, string(cfg.Manifest))
	if err != nil {
		return "", nil, fmt.Errorf("invalid dependency manifest path: %w", err)
	}
	entrypointSrc, err := forgefile.ResolveWithin(cfg.ContextDir, string(cfg.Entrypoint))
	if err != nil {
		return "", nil, fmt.Errorf("invalid entrypoint path: %w", err)
	}

	var buildContextParent string

	// Try HOME first, but verify it actually exists (handles cases like
	// HOME=/no-home or misconfigured environments).
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			buildContextParent = filepath.Join(home, "mlforge-build")
		}
	}

	// Fallback if HOME is unavailable or doesn't exist
	if buildContextParent == "" {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			buildContextParent = filepath.Join(cwd, ".mlforge-build")
		} else {
			// Last resort: use system temp (may fail with Snap Docker)
			buildContextParent = filepath.Join(os.TempDir(), "mlforge-build")
		}
	}

	if mkdirErr := os.MkdirAll(buildContextParent, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(buildContextParent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create build context directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	if _, statErr := os.Stat(manifestSrc); statErr != nil {
		cleanup()
		if os.IsNotExist(statErr) {
			return "", nil, &ManifestNotFoundError{Path: manifestSrc}
		}
		return "", nil, fmt.Errorf("failed to read dependency manifest: %w", statErr)
	}
	if copyErr := copyFile(manifestSrc, filepath.Join(tmpDir, StagedManifestName)); copyErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to stage dependency manifest: %w", copyErr)
	}

	if _, stageErr := boot.StageEntrypoint(entrypointSrc, tmpDir); stageErr != nil {
		cleanup()
		return "", nil, stageErr
	}

	dockerfilePath := filepath.Join(tmpDir, stagedDockerfileName)
	if writeErr := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); writeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", writeErr)
	}

	return tmpDir, cleanup, nil
}

// copyFile copies a file from src to dst, preserving the source's
// permission bits.
func copyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = srcFile.Close() }() // Read-only file; close error non-critical

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return nil
}
