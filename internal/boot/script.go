// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"errors"
	"fmt"
	"io"
	"os"

	"mvdan.cc/sh/v3/syntax"
)

// ErrScriptSyntax is the sentinel error wrapped by ScriptSyntaxError.
var ErrScriptSyntax = errors.New("entrypoint script failed syntax validation")

// ScriptSyntaxError reports a bootstrap script that does not parse as
// POSIX shell. The zero-fallback of running a broken script at container
// start is never acceptable, so this is a build-time failure.
type ScriptSyntaxError struct {
	// Path is the script location as reported to the parser.
	Path string
	// Err is the parser's diagnostic, including line and column.
	Err error
}

// Error implements the error interface.
func (e *ScriptSyntaxError) Error() string {
	return fmt.Sprintf("entrypoint script %s failed syntax validation: %v", e.Path, e.Err)
}

// Unwrap returns ErrScriptSyntax for errors.Is() compatibility.
func (e *ScriptSyntaxError) Unwrap() error { return ErrScriptSyntax }

// ValidateScript parses the script as POSIX shell and reports syntax
// errors. name labels the source in diagnostics. Scaffolded entrypoints
// carry a #!/bin/sh shebang, so the POSIX dialect is the contract; the
// parse accepts any well-formed POSIX script regardless of what it does.
func ValidateScript(r io.Reader, name string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(r, name); err != nil {
		return &ScriptSyntaxError{Path: name, Err: err}
	}
	return nil
}

// ValidateScriptFile opens and validates the script at path.
// A missing file surfaces as EntrypointNotFoundError, the same failure
// staging reports, so callers can check one sentinel.
func ValidateScriptFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &EntrypointNotFoundError{Path: path}
		}
		return fmt.Errorf("failed to open entrypoint script: %w", err)
	}
	defer func() { _ = f.Close() }() // Read-only file; close error non-critical

	return ValidateScript(f, path)
}
