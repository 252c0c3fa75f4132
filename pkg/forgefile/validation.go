// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/mlforge/mlforge/pkg/types"
)

const (
	// SeverityError indicates a validation failure that prevents composition.
	SeverityError ValidationSeverity = iota
	// SeverityWarning indicates a potential issue that doesn't prevent composition.
	SeverityWarning
)

// ErrInvalidValidatorName is returned when a ValidatorName is empty or whitespace-only.
var ErrInvalidValidatorName = errors.New("invalid validator name")

type (
	// ValidationSeverity indicates the severity level of a validation error.
	ValidationSeverity int

	// ValidatorName identifies a validation component (e.g., "structure", "files").
	// Must be non-empty and not whitespace-only.
	ValidatorName string

	// InvalidValidatorNameError is returned when a ValidatorName is empty or whitespace-only.
	InvalidValidatorNameError struct {
		Value ValidatorName
	}

	// ValidationError represents a single issue found during forgefile validation.
	ValidationError struct {
		// Validator is the name of the validator that produced this error.
		Validator ValidatorName
		// Field is the field path where the error occurred (e.g., "base.digest").
		Field string
		// Message is the human-readable error message.
		Message string
		// Severity indicates whether this is an error or warning.
		Severity ValidationSeverity
	}

	// ValidationErrors is a collection of validation errors that implements
	// the error interface. This allows returning multiple validation issues
	// from a single validation pass.
	ValidationErrors []ValidationError

	// ValidationContext provides context for validation operations.
	//
	// Validators apply defaults when values are zero-valued: nil FS
	// defaults to the directory containing the forgefile.
	ValidationContext struct {
		// FS is the filesystem rooted at the forgefile directory, used
		// for file existence checks. Defaults to os.DirFS of the
		// forgefile directory if nil.
		FS fs.FS
		// StrictMode treats warnings as errors when true.
		StrictMode bool
		// FilePath is the path to the forgefile being validated.
		FilePath types.FilesystemPath
	}

	// Validator defines the interface for forgefile validators.
	// Validators check specific aspects of a forgefile and return all
	// errors found, so callers can display them collectively instead of
	// stopping at the first.
	Validator interface {
		// Name returns a unique identifier for this validator.
		Name() ValidatorName
		// Validate checks the forgefile and returns all errors found.
		Validate(ctx *ValidationContext, f *Forgefile) []ValidationError
	}
)

// Error implements the error interface for InvalidValidatorNameError.
func (e *InvalidValidatorNameError) Error() string {
	return fmt.Sprintf("invalid validator name: %q", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidValidatorNameError) Unwrap() error {
	return ErrInvalidValidatorName
}

// IsValid returns whether the ValidatorName is non-empty and not
// whitespace-only, and a list of validation errors if it is not.
func (n ValidatorName) IsValid() (bool, []error) {
	if strings.TrimSpace(string(n)) == "" {
		return false, []error{&InvalidValidatorNameError{Value: n}}
	}
	return true, nil
}

// String returns the string representation of the ValidatorName.
func (n ValidatorName) String() string {
	return string(n)
}

// String returns a human-readable representation of the severity level.
func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// IsError returns true if this is an error-level validation issue.
func (e ValidationError) IsError() bool {
	return e.Severity == SeverityError
}

// IsWarning returns true if this is a warning-level validation issue.
func (e ValidationError) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// Error implements the error interface by summarizing all issues.
func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}

	var b strings.Builder
	b.WriteString("validation failed with ")
	errorCount := errs.ErrorCount()
	warningCount := errs.WarningCount()

	if errorCount > 0 {
		b.WriteString(strconv.Itoa(errorCount))
		if errorCount == 1 {
			b.WriteString(" error")
		} else {
			b.WriteString(" errors")
		}
	}
	if warningCount > 0 {
		if errorCount > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(strconv.Itoa(warningCount))
		if warningCount == 1 {
			b.WriteString(" warning")
		} else {
			b.WriteString(" warnings")
		}
	}
	b.WriteString(":")
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// ErrorCount returns the number of error-level issues.
func (errs ValidationErrors) ErrorCount() int {
	count := 0
	for _, e := range errs {
		if e.IsError() {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-level issues.
func (errs ValidationErrors) WarningCount() int {
	count := 0
	for _, e := range errs {
		if e.IsWarning() {
			count++
		}
	}
	return count
}

// HasErrors returns true if any error-level issue is present.
func (errs ValidationErrors) HasErrors() bool {
	return errs.ErrorCount() > 0
}

// DefaultValidators returns the validators run on every parsed forgefile,
// in execution order. Structure runs first: there is no point checking
// the filesystem for files a malformed forgefile cannot name reliably.
func DefaultValidators() []Validator {
	return []Validator{
		NewStructureValidator(),
		NewFilesValidator(),
	}
}

// Validate runs the structural validators against the forgefile and
// returns all issues found. Filesystem checks are skipped; use
// ValidateWithContext to include them.
func (f *Forgefile) Validate() ValidationErrors {
	ctx := &ValidationContext{FilePath: f.FilePath}
	v := NewStructureValidator()
	errs := ValidationErrors(v.Validate(ctx, f))
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateWithContext runs all default validators against the forgefile
// and returns every issue found. When ctx.StrictMode is set, warnings are
// escalated to errors.
func (f *Forgefile) ValidateWithContext(ctx *ValidationContext) ValidationErrors {
	if ctx == nil {
		ctx = &ValidationContext{FilePath: f.FilePath}
	}
	var all ValidationErrors
	for _, v := range DefaultValidators() {
		all = append(all, v.Validate(ctx, f)...)
	}
	if ctx.StrictMode {
		for i := range all {
			all[i].Severity = SeverityError
		}
	}
	if len(all) == 0 {
		return nil
	}
	return all
}
