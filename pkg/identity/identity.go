// SPDX-License-Identifier: MPL-2.0

// Package identity defines the typed identity parameters every image
// composition starts from: the registry owner, a maintainer contact, and
// the project name. All three are required and validated before any build
// instruction is rendered, because their values are interpolated into
// image references, container filesystem paths, and OCI labels.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mlforge/mlforge/pkg/platform"
)

// Validation limits for identity parameters. Registry namespaces and path
// components cap out well below these, but enforcing them here keeps
// oversized values from ever reaching a rendered instruction.
const (
	// MaxOwnerNameLength is the maximum allowed length for a registry owner name.
	MaxOwnerNameLength = 255
	// MaxProjectNameLength is the maximum allowed length for a project name.
	MaxProjectNameLength = 255
	// MaxContactAddressLength is the maximum allowed length for a contact address.
	MaxContactAddressLength = 512
)

var (
	// ErrInvalidOwnerName is the sentinel error wrapped by InvalidOwnerNameError.
	ErrInvalidOwnerName = errors.New("invalid owner name")

	// ErrInvalidContactAddress is the sentinel error wrapped by InvalidContactAddressError.
	ErrInvalidContactAddress = errors.New("invalid contact address")

	// ErrInvalidProjectName is the sentinel error wrapped by InvalidProjectNameError.
	ErrInvalidProjectName = errors.New("invalid project name")

	// ownerNameRegex validates registry owner names. Owners become the
	// namespace component of an image reference, so the charset follows
	// the OCI distribution repository grammar: lowercase alphanumeric
	// runs joined by single separators.
	ownerNameRegex = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

	// projectNameRegex validates project names. Projects become a single
	// path segment under the container workspace root, so the charset is
	// restricted to characters safe in both image labels and directory
	// names on every supported OS.
	projectNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type (
	// OwnerName represents the registry namespace the base image is
	// published under (e.g., the "acme" in ghcr.io/acme/ml-base).
	// The zero value ("") is invalid: every build needs an owner.
	OwnerName string

	// ContactAddress represents the maintainer contact recorded on
	// composed images. It is free-form (an email address, a team alias)
	// but must be non-empty and contain no control characters, since it
	// is embedded verbatim in an OCI label value.
	ContactAddress string

	// ProjectName represents the project a composed image belongs to.
	// It names the per-project directory under the container workspace
	// root, so it must be a single safe path segment.
	// The zero value ("") is invalid: every build needs a project.
	ProjectName string

	// InvalidOwnerNameError is returned when an OwnerName value is empty
	// or not a valid registry namespace component.
	InvalidOwnerNameError struct {
		Value OwnerName
	}

	// InvalidContactAddressError is returned when a ContactAddress value
	// is empty, whitespace-only, or contains control characters.
	InvalidContactAddressError struct {
		Value ContactAddress
	}

	// InvalidProjectNameError is returned when a ProjectName value is
	// empty, not a safe path segment, or collides with a Windows
	// reserved device name.
	InvalidProjectNameError struct {
		Value ProjectName
	}

	// Identity bundles the three required identity parameters. Builds
	// refuse to start until Validate reports all three as well-formed.
	Identity struct {
		Owner   OwnerName      `json:"owner"`
		Contact ContactAddress `json:"contact"`
		Project ProjectName    `json:"project"`
	}
)

// String returns the string representation of the OwnerName.
func (o OwnerName) String() string { return string(o) }

// Validate returns an error if the OwnerName is empty, too long, or not a
// valid registry namespace component.
func (o OwnerName) Validate() error {
	s := string(o)
	if s == "" || len(s) > MaxOwnerNameLength || !ownerNameRegex.MatchString(s) {
		return &InvalidOwnerNameError{Value: o}
	}
	return nil
}

// Error implements the error interface for InvalidOwnerNameError.
func (e *InvalidOwnerNameError) Error() string {
	return fmt.Sprintf("invalid owner name %q: must be lowercase alphanumeric runs joined by single '.', '_', or '-' separators", e.Value)
}

// Unwrap returns ErrInvalidOwnerName for errors.Is() compatibility.
func (e *InvalidOwnerNameError) Unwrap() error { return ErrInvalidOwnerName }

// String returns the string representation of the ContactAddress.
func (c ContactAddress) String() string { return string(c) }

// Validate returns an error if the ContactAddress is empty, too long,
// whitespace-only, or contains control characters (including newlines,
// which would corrupt the label it is written into).
func (c ContactAddress) Validate() error {
	s := string(c)
	if strings.TrimSpace(s) == "" || len(s) > MaxContactAddressLength {
		return &InvalidContactAddressError{Value: c}
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return &InvalidContactAddressError{Value: c}
		}
	}
	return nil
}

// Error implements the error interface for InvalidContactAddressError.
func (e *InvalidContactAddressError) Error() string {
	return fmt.Sprintf("invalid contact address %q: must be non-empty and free of control characters", e.Value)
}

// Unwrap returns ErrInvalidContactAddress for errors.Is() compatibility.
func (e *InvalidContactAddressError) Unwrap() error { return ErrInvalidContactAddress }

// String returns the string representation of the ProjectName.
func (p ProjectName) String() string { return string(p) }

// Validate returns an error if the ProjectName is empty, too long, not a
// safe path segment, or a Windows reserved device name. Reserved names are
// rejected everywhere, not just on Windows, so a project scaffolded on
// Linux stays checkout-safe for Windows contributors.
func (p ProjectName) Validate() error {
	s := string(p)
	if s == "" || len(s) > MaxProjectNameLength || !projectNameRegex.MatchString(s) {
		return &InvalidProjectNameError{Value: p}
	}
	if platform.IsWindowsReservedName(s) {
		return &InvalidProjectNameError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidProjectNameError.
func (e *InvalidProjectNameError) Error() string {
	return fmt.Sprintf("invalid project name %q: must start with an alphanumeric character, contain only [A-Za-z0-9._-], and not be a Windows reserved name", e.Value)
}

// Unwrap returns ErrInvalidProjectName for errors.Is() compatibility.
func (e *InvalidProjectNameError) Unwrap() error { return ErrInvalidProjectName }

// Validate checks all three identity parameters and returns the combined
// validation errors, or nil if the Identity is complete and well-formed.
// All fields are always checked so a caller can surface every problem in
// one pass instead of fixing them one at a time.
func (id Identity) Validate() error {
	return errors.Join(
		id.Owner.Validate(),
		id.Contact.Validate(),
		id.Project.Validate(),
	)
}
