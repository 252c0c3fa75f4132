// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxRelativePathLength is the maximum allowed length for manifest and
// entrypoint paths declared in a forgefile.
const MaxRelativePathLength = 4096

var (
	// ErrInvalidManifestPath is the sentinel error wrapped by InvalidManifestPathError.
	ErrInvalidManifestPath = errors.New("invalid manifest path")

	// ErrInvalidEntrypointPath is the sentinel error wrapped by InvalidEntrypointPathError.
	ErrInvalidEntrypointPath = errors.New("invalid entrypoint path")
)

type (
	// ManifestPath represents the dependency manifest location, relative
	// to the forgefile directory. The zero value ("") is valid and means
	// "use DefaultManifest".
	ManifestPath string

	// EntrypointPath represents the entrypoint script location, relative
	// to the forgefile directory. The zero value ("") is valid and means
	// "use DefaultEntrypoint".
	EntrypointPath string

	// InvalidManifestPathError is returned when a ManifestPath value is
	// absolute, contains a null byte, or exceeds the length limit.
	InvalidManifestPathError struct {
		Value  ManifestPath
		Reason string
	}

	// InvalidEntrypointPathError is returned when an EntrypointPath value
	// is absolute, contains a null byte, or exceeds the length limit.
	InvalidEntrypointPathError struct {
		Value  EntrypointPath
		Reason string
	}
)

// String returns the string representation of the ManifestPath.
func (p ManifestPath) String() string { return string(p) }

// Validate returns an error if the ManifestPath has an invalid shape.
// Containment within the forgefile directory is checked separately by the
// files validator, which knows the base directory.
func (p ManifestPath) Validate() error {
	if reason := relativePathShapeProblem(string(p)); reason != "" {
		return &InvalidManifestPathError{Value: p, Reason: reason}
	}
	return nil
}

// Error implements the error interface for InvalidManifestPathError.
func (e *InvalidManifestPathError) Error() string {
	return fmt.Sprintf("invalid manifest path %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidManifestPath for errors.Is() compatibility.
func (e *InvalidManifestPathError) Unwrap() error { return ErrInvalidManifestPath }

// String returns the string representation of the EntrypointPath.
func (p EntrypointPath) String() string { return string(p) }

// Validate returns an error if the EntrypointPath has an invalid shape.
// Containment within the forgefile directory is checked separately by the
// files validator, which knows the base directory.
func (p EntrypointPath) Validate() error {
	if reason := relativePathShapeProblem(string(p)); reason != "" {
		return &InvalidEntrypointPathError{Value: p, Reason: reason}
	}
	return nil
}

// Error implements the error interface for InvalidEntrypointPathError.
func (e *InvalidEntrypointPathError) Error() string {
	return fmt.Sprintf("invalid entrypoint path %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidEntrypointPath for errors.Is() compatibility.
func (e *InvalidEntrypointPathError) Unwrap() error { return ErrInvalidEntrypointPath }

// relativePathShapeProblem checks the shape constraints shared by manifest
// and entrypoint paths. Returns a human-readable reason, or "" if the path
// is acceptable. The zero value ("") is acceptable (defaults apply).
func relativePathShapeProblem(s string) string {
	if s == "" {
		return ""
	}
	if strings.TrimSpace(s) == "" {
		return "must not be whitespace-only"
	}
	if len(s) > MaxRelativePathLength {
		return fmt.Sprintf("too long (%d chars, max %d)", len(s), MaxRelativePathLength)
	}
	if strings.ContainsRune(s, '\x00') {
		return "contains a null byte"
	}
	if isAbsolutePath(s) {
		return "must be relative to the forgefile directory"
	}
	return ""
}

// isAbsolutePath reports whether the path is absolute on any supported
// platform. filepath.IsAbs alone is not enough: a forgefile written on
// Linux may declare `C:\evil` and be consumed on Windows, so both POSIX
// and Windows forms are rejected everywhere.
func isAbsolutePath(s string) bool {
	if filepath.IsAbs(s) {
		return true
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) {
		return true
	}
	// Windows drive letter (C:\ or C:/)
	if len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') {
		return true
	}
	return false
}

// ErrPathEscapes is returned by ResolveWithin when a relative path climbs
// out of its base directory.
var ErrPathEscapes = errors.New("path escapes the forgefile directory")

// ResolveWithin joins rel to baseDir and verifies the cleaned result stays
// inside baseDir. Returns the joined path, or an error wrapping
// ErrPathEscapes when the relative path climbs out (e.g., via "..").
// Every consumer of a forgefile-declared path resolves it through here:
// the shape checks in Validate cannot reject traversal because ".."
// segments are only meaningful against a concrete base directory.
func ResolveWithin(baseDir, rel string) (string, error) {
	nativePath := filepath.FromSlash(rel)
	fullPath := filepath.Clean(filepath.Join(baseDir, nativePath))

	relPath, err := filepath.Rel(baseDir, fullPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrPathEscapes)
	}
	return fullPath, nil
}
