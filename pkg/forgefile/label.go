// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
)

// OCI label keys mlforge writes on every composed image. Forgefiles must
// not declare these themselves; the values come from the identity
// parameters and the resolved base reference.
const (
	// LabelAuthors records the maintainer contact.
	LabelAuthors = "org.opencontainers.image.authors"
	// LabelTitle records the project name.
	LabelTitle = "org.opencontainers.image.title"
	// LabelVendor records the registry owner.
	LabelVendor = "org.opencontainers.image.vendor"
	// LabelBaseName records the base image reference the composition used.
	LabelBaseName = "org.opencontainers.image.base.name"
	// LabelBaseDigest records the pinned base digest, when one was used.
	LabelBaseDigest = "org.opencontainers.image.base.digest"
)

var (
	// ErrInvalidLabelKey is the sentinel error wrapped by InvalidLabelKeyError.
	ErrInvalidLabelKey = errors.New("invalid label key")

	// ErrReservedLabelKey is the sentinel error wrapped by ReservedLabelKeyError.
	ErrReservedLabelKey = errors.New("reserved label key")

	// ErrInvalidLabelValue is the sentinel error wrapped by InvalidLabelValueError.
	ErrInvalidLabelValue = errors.New("invalid label value")

	// labelKeyRegex validates label keys per the OCI annotation
	// conventions: lowercase alphanumeric runs joined by '.', '_', or '-'
	// (reverse-DNS namespacing fits this grammar).
	labelKeyRegex = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

	// reservedLabelKeys are the keys mlforge manages itself.
	reservedLabelKeys = map[string]bool{
		LabelAuthors:    true,
		LabelTitle:      true,
		LabelVendor:     true,
		LabelBaseName:   true,
		LabelBaseDigest: true,
	}
)

type (
	// InvalidLabelKeyError is returned when a label key is empty or not a
	// valid OCI annotation key.
	InvalidLabelKeyError struct {
		Key string
	}

	// ReservedLabelKeyError is returned when a forgefile declares a label
	// key that mlforge writes itself.
	ReservedLabelKeyError struct {
		Key string
	}

	// InvalidLabelValueError is returned when a label value contains
	// control characters and cannot be rendered into a build instruction.
	InvalidLabelValueError struct {
		Key string
	}
)

// Error implements the error interface for InvalidLabelKeyError.
func (e *InvalidLabelKeyError) Error() string {
	return fmt.Sprintf("invalid label key %q: must be lowercase alphanumeric runs joined by '.', '_', or '-'", e.Key)
}

// Unwrap returns ErrInvalidLabelKey for errors.Is() compatibility.
func (e *InvalidLabelKeyError) Unwrap() error { return ErrInvalidLabelKey }

// Error implements the error interface for ReservedLabelKeyError.
func (e *ReservedLabelKeyError) Error() string {
	return fmt.Sprintf("label key %q is reserved: its value is derived from the forgefile identity", e.Key)
}

// Unwrap returns ErrReservedLabelKey for errors.Is() compatibility.
func (e *ReservedLabelKeyError) Unwrap() error { return ErrReservedLabelKey }

// Error implements the error interface for InvalidLabelValueError.
func (e *InvalidLabelValueError) Error() string {
	return fmt.Sprintf("invalid value for label %q: must be free of control characters", e.Key)
}

// Unwrap returns ErrInvalidLabelValue for errors.Is() compatibility.
func (e *InvalidLabelValueError) Unwrap() error { return ErrInvalidLabelValue }

// IsReservedLabelKey reports whether key is one of the labels mlforge
// writes on every composed image.
func IsReservedLabelKey(key string) bool {
	return reservedLabelKeys[key]
}

// ValidateLabel checks a single user-declared label. Keys must match the
// OCI annotation grammar and must not collide with the reserved keys;
// values must be renderable into a build instruction.
func ValidateLabel(key, value string) error {
	if !labelKeyRegex.MatchString(key) {
		return &InvalidLabelKeyError{Key: key}
	}
	if IsReservedLabelKey(key) {
		return &ReservedLabelKeyError{Key: key}
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return &InvalidLabelValueError{Key: key}
		}
	}
	return nil
}
