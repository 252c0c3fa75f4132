// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesValidator checks that the files a forgefile references actually
// exist and stay inside the forgefile directory. It runs against the
// filesystem (or the fs.FS injected through the ValidationContext), so it
// is kept separate from the structural checks: parsing a forgefile on a
// machine that does not have the project checked out should not fail.
type FilesValidator struct{}

// NewFilesValidator creates a new FilesValidator.
func NewFilesValidator() *FilesValidator {
	return &FilesValidator{}
}

// Name returns the validator name.
func (v *FilesValidator) Name() ValidatorName {
	return "files"
}

// Validate checks manifest and entrypoint containment and existence.
func (v *FilesValidator) Validate(ctx *ValidationContext, f *Forgefile) []ValidationError {
	baseDir := string(f.Dir())
	fsys := ctx.FS
	if fsys == nil {
		fsys = os.DirFS(baseDir)
	}

	var errs []ValidationError
	errs = append(errs, v.checkFile(fsys, baseDir, "manifest", string(f.EffectiveManifest()), "dependency manifest")...)
	errs = append(errs, v.checkFile(fsys, baseDir, "entrypoint", string(f.EffectiveEntrypoint()), "entrypoint script")...)
	return errs
}

// checkFile verifies one referenced file: containment within baseDir,
// existence, and that it is a regular file rather than a directory.
func (v *FilesValidator) checkFile(fsys fs.FS, baseDir, field, rel, what string) []ValidationError {
	if _, err := ResolveWithin(baseDir, rel); err != nil {
		return []ValidationError{{
			Validator: v.Name(),
			Field:     field,
			Message:   err.Error(),
			Severity:  SeverityError,
		}}
	}

	// fs.FS paths are always slash-separated and relative.
	fsPath := filepath.ToSlash(filepath.Clean(rel))
	info, err := fs.Stat(fsys, fsPath)
	if err != nil {
		return []ValidationError{{
			Validator: v.Name(),
			Field:     field,
			Message:   fmt.Sprintf("%s %q not found in %s", what, rel, baseDir),
			Severity:  SeverityError,
		}}
	}
	if info.IsDir() {
		return []ValidationError{{
			Validator: v.Name(),
			Field:     field,
			Message:   fmt.Sprintf("%s %q is a directory, expected a file", what, rel),
			Severity:  SeverityError,
		}}
	}
	return nil
}
