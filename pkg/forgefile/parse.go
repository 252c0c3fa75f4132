// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/mlforge/mlforge/pkg/cueschema"
	"github.com/mlforge/mlforge/pkg/fspath"
	"github.com/mlforge/mlforge/pkg/types"
)

//go:embed forgefile_schema.cue
var forgefileSchema string

// ErrNotFound is returned by Find when no forgefile exists in the start
// directory or any of its parents.
var ErrNotFound = errors.New("no forgefile found")

// Parse reads and parses a forgefile from the given path.
func Parse(path types.FilesystemPath) (*Forgefile, error) {
	pathStr := string(path)
	data, err := os.ReadFile(pathStr)
	if err != nil {
		return nil, fmt.Errorf("failed to read forgefile at %s: %w", path, err)
	}

	return ParseBytes(data, pathStr)
}

// ParseBytes parses forgefile content from bytes.
// Uses cueschema.ParseAndDecodeString for the 3-step CUE parsing flow:
// compile schema → compile user data → validate and decode.
//
// Structural validation runs here; filesystem validation (manifest and
// entrypoint existence) is deferred to ValidateWithContext so parsing
// works on machines without the project files present.
func ParseBytes(data []byte, path string) (*Forgefile, error) {
	result, err := cueschema.ParseAndDecodeString[Forgefile](
		forgefileSchema,
		data,
		"#Forgefile",
		cueschema.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	f := result.Value
	f.FilePath = types.FilesystemPath(path)

	if errs := f.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return f, nil
}

// Find locates the nearest forgefile, starting at start and walking up
// parent directories until the filesystem root. Returns the path of the
// first forgefile.cue found, or ErrNotFound.
func Find(start types.FilesystemPath) (types.FilesystemPath, error) {
	dir, err := fspath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		candidate := fspath.JoinStr(dir, DefaultName)
		if info, err := os.Stat(string(candidate)); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := fspath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, start)
		}
		dir = parent
	}
}
