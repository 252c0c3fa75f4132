// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// StageEntrypoint copies the bootstrap script at srcPath verbatim into
// stagingDir under the fixed staged name, then sets the execute bit on the
// staged copy. The script is syntax-checked before anything is written, so
// a broken script stages nothing.
//
// The returned path is the staged script location.
func StageEntrypoint(srcPath, stagingDir string) (string, error) {
	content, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &EntrypointNotFoundError{Path: srcPath}
		}
		return "", fmt.Errorf("failed to read entrypoint script: %w", err)
	}

	if err := ValidateScript(bytes.NewReader(content), srcPath); err != nil {
		return "", err
	}

	dst := filepath.Join(stagingDir, StagedEntrypointName)
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to place entrypoint script: %w", err)
	}
	// Execute bit strictly after placement. The image layer repeats the
	// chmod, so a filesystem that drops mode bits here does not break the
	// built image, but the staged copy should still be honest.
	if err := os.Chmod(dst, EntrypointFileMode); err != nil {
		return "", fmt.Errorf("failed to set entrypoint permissions: %w", err)
	}

	return dst, nil
}
