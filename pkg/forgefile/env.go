// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MaxEnvVarValueLength is the maximum allowed length for environment
// variable values baked into an image (32 KB).
const MaxEnvVarValueLength = 32768

var (
	// ErrInvalidEnvVarName is the sentinel error wrapped by InvalidEnvVarNameError.
	ErrInvalidEnvVarName = errors.New("invalid environment variable name")

	// ErrInvalidEnvVarValue is the sentinel error wrapped by InvalidEnvVarValueError.
	ErrInvalidEnvVarValue = errors.New("invalid environment variable value")

	// envVarNameRegex validates environment variable names
	envVarNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type (
	// EnvVarName represents an environment variable name.
	// A valid env var name starts with a letter or underscore, followed by
	// letters, digits, or underscores (matching POSIX conventions).
	EnvVarName string

	// InvalidEnvVarNameError is returned when an EnvVarName value is empty,
	// whitespace-only, or doesn't match the POSIX env var naming convention.
	InvalidEnvVarNameError struct {
		Value EnvVarName
	}

	// InvalidEnvVarValueError is returned when an environment variable
	// value contains characters that cannot be rendered into a build
	// instruction (control characters other than tab), or is too long.
	InvalidEnvVarValueError struct {
		Name   EnvVarName
		Reason string
	}

	// EnvVar is a single environment variable baked into the composed
	// image. Declaration order in the forgefile is preserved, so later
	// variables may reference earlier ones at container runtime.
	EnvVar struct {
		// Name is the variable name (required).
		Name EnvVarName `json:"name"`
		// Value is the variable value (may be empty).
		Value string `json:"value"`
	}
)

// Validate returns nil if the EnvVarName is a valid POSIX environment
// variable name, or a validation error if it is not.
func (n EnvVarName) Validate() error {
	s := string(n)
	if strings.TrimSpace(s) == "" || !envVarNameRegex.MatchString(s) {
		return &InvalidEnvVarNameError{Value: n}
	}
	return nil
}

// String returns the string representation of the EnvVarName.
func (n EnvVarName) String() string { return string(n) }

// Error implements the error interface.
func (e *InvalidEnvVarNameError) Error() string {
	return fmt.Sprintf("invalid environment variable name %q (must match [A-Za-z_][A-Za-z0-9_]*)", e.Value)
}

// Unwrap returns ErrInvalidEnvVarName so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvVarNameError) Unwrap() error { return ErrInvalidEnvVarName }

// Error implements the error interface.
func (e *InvalidEnvVarValueError) Error() string {
	return fmt.Sprintf("invalid value for environment variable %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidEnvVarValue so callers can use errors.Is for programmatic detection.
func (e *InvalidEnvVarValueError) Unwrap() error { return ErrInvalidEnvVarValue }

// Validate returns an error if either the name or the value of the EnvVar
// is unfit for rendering into a build instruction.
func (v EnvVar) Validate() error {
	if err := v.Name.Validate(); err != nil {
		return err
	}
	if len(v.Value) > MaxEnvVarValueLength {
		return &InvalidEnvVarValueError{
			Name:   v.Name,
			Reason: fmt.Sprintf("too long (%d chars, max %d)", len(v.Value), MaxEnvVarValueLength),
		}
	}
	for _, r := range v.Value {
		if unicode.IsControl(r) && r != '\t' {
			return &InvalidEnvVarValueError{
				Name:   v.Name,
				Reason: "contains control characters",
			}
		}
	}
	return nil
}
