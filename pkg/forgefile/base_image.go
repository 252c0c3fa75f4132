// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Default base image coordinates. The composed reference is
// <registry>/<owner>/<image>:<tag>, or <registry>/<owner>/<image>@<digest>
// when a digest is pinned.
const (
	// DefaultRegistry is the registry base images are pulled from.
	DefaultRegistry RegistryHost = "ghcr.io"
	// DefaultImage is the repository name of the shared base image.
	DefaultImage ImageName = "ml-base"
	// DefaultTag is the floating tag tracked when no digest is pinned.
	DefaultTag TagName = "latest"
)

var (
	// ErrInvalidRegistryHost is the sentinel error wrapped by InvalidRegistryHostError.
	ErrInvalidRegistryHost = errors.New("invalid registry host")

	// ErrInvalidImageName is the sentinel error wrapped by InvalidImageNameError.
	ErrInvalidImageName = errors.New("invalid image name")

	// ErrInvalidTagName is the sentinel error wrapped by InvalidTagNameError.
	ErrInvalidTagName = errors.New("invalid tag name")

	// ErrInvalidImageDigest is the sentinel error wrapped by InvalidImageDigestError.
	ErrInvalidImageDigest = errors.New("invalid image digest")

	// registryHostRegex validates registry hosts: hostname labels joined by
	// dots, with an optional port. Schemes and paths are rejected; the
	// host is spliced directly into an image reference.
	registryHostRegex = regexp.MustCompile(`^[a-z0-9]+(?:[.-][a-z0-9]+)*(?::[0-9]{1,5})?$`)

	// imageNameRegex validates repository name components per the OCI
	// distribution grammar: lowercase alphanumeric runs joined by single
	// separators.
	imageNameRegex = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

	// tagNameRegex validates image tags: up to 128 characters drawn from
	// [A-Za-z0-9._-], not starting with '.' or '-'.
	tagNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

	// imageDigestRegex validates pinned digests in canonical
	// sha256:<64 hex> form.
	imageDigestRegex = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

type (
	// RegistryHost represents a container registry hostname, optionally
	// with a port (e.g., "ghcr.io", "registry.local:5000").
	// The zero value ("") means "use the default registry".
	RegistryHost string

	// ImageName represents the repository name component of an image
	// reference (e.g., the "ml-base" in ghcr.io/acme/ml-base).
	// The zero value ("") means "use the default image name".
	ImageName string

	// TagName represents the tag component of an image reference
	// (e.g., "latest"). The zero value ("") means "use the default tag".
	TagName string

	// ImageDigest represents a pinned image digest in canonical
	// sha256:<hex> form. The zero value ("") means "not pinned": the
	// floating tag is tracked instead.
	ImageDigest string

	// InvalidRegistryHostError is returned when a RegistryHost value is
	// non-empty but not a valid hostname[:port].
	InvalidRegistryHostError struct {
		Value RegistryHost
	}

	// InvalidImageNameError is returned when an ImageName value is
	// non-empty but not a valid repository name component.
	InvalidImageNameError struct {
		Value ImageName
	}

	// InvalidTagNameError is returned when a TagName value is non-empty
	// but not a valid image tag.
	InvalidTagNameError struct {
		Value TagName
	}

	// InvalidImageDigestError is returned when an ImageDigest value is
	// non-empty but not in canonical sha256:<64 hex> form.
	InvalidImageDigestError struct {
		Value ImageDigest
	}

	// BaseImage selects the base image a composition builds on. All
	// fields are optional; zero values fall back to the package defaults.
	// When Digest is set, it takes precedence over Tag: the composed
	// reference is pinned and immune to tag drift.
	BaseImage struct {
		// Registry is the registry host (default: DefaultRegistry).
		Registry RegistryHost `json:"registry,omitempty"`
		// Image is the repository name (default: DefaultImage).
		Image ImageName `json:"image,omitempty"`
		// Tag is the floating tag to track (default: DefaultTag).
		Tag TagName `json:"tag,omitempty"`
		// Digest pins the base to an exact content digest (optional).
		Digest ImageDigest `json:"digest,omitempty"`
	}
)

// String returns the string representation of the RegistryHost.
func (r RegistryHost) String() string { return string(r) }

// Validate returns an error if the RegistryHost is non-empty but not a
// valid hostname with optional port. The zero value is valid.
func (r RegistryHost) Validate() error {
	if r == "" {
		return nil
	}
	s := string(r)
	if strings.Contains(s, "://") || !registryHostRegex.MatchString(s) {
		return &InvalidRegistryHostError{Value: r}
	}
	return nil
}

// Error implements the error interface for InvalidRegistryHostError.
func (e *InvalidRegistryHostError) Error() string {
	return fmt.Sprintf("invalid registry host %q: must be a hostname with optional port, without scheme or path", e.Value)
}

// Unwrap returns ErrInvalidRegistryHost for errors.Is() compatibility.
func (e *InvalidRegistryHostError) Unwrap() error { return ErrInvalidRegistryHost }

// String returns the string representation of the ImageName.
func (n ImageName) String() string { return string(n) }

// Validate returns an error if the ImageName is non-empty but not a valid
// repository name component. The zero value is valid.
func (n ImageName) Validate() error {
	if n == "" {
		return nil
	}
	if !imageNameRegex.MatchString(string(n)) {
		return &InvalidImageNameError{Value: n}
	}
	return nil
}

// Error implements the error interface for InvalidImageNameError.
func (e *InvalidImageNameError) Error() string {
	return fmt.Sprintf("invalid image name %q: must be lowercase alphanumeric runs joined by single '.', '_', or '-' separators", e.Value)
}

// Unwrap returns ErrInvalidImageName for errors.Is() compatibility.
func (e *InvalidImageNameError) Unwrap() error { return ErrInvalidImageName }

// String returns the string representation of the TagName.
func (t TagName) String() string { return string(t) }

// Validate returns an error if the TagName is non-empty but not a valid
// image tag. The zero value is valid.
func (t TagName) Validate() error {
	if t == "" {
		return nil
	}
	if !tagNameRegex.MatchString(string(t)) {
		return &InvalidTagNameError{Value: t}
	}
	return nil
}

// Error implements the error interface for InvalidTagNameError.
func (e *InvalidTagNameError) Error() string {
	return fmt.Sprintf("invalid tag name %q: must match [A-Za-z0-9_][A-Za-z0-9._-]{0,127}", e.Value)
}

// Unwrap returns ErrInvalidTagName for errors.Is() compatibility.
func (e *InvalidTagNameError) Unwrap() error { return ErrInvalidTagName }

// String returns the string representation of the ImageDigest.
func (d ImageDigest) String() string { return string(d) }

// Validate returns an error if the ImageDigest is non-empty but not in
// canonical sha256:<64 hex> form. The zero value is valid (not pinned).
func (d ImageDigest) Validate() error {
	if d == "" {
		return nil
	}
	if !imageDigestRegex.MatchString(string(d)) {
		return &InvalidImageDigestError{Value: d}
	}
	return nil
}

// Error implements the error interface for InvalidImageDigestError.
func (e *InvalidImageDigestError) Error() string {
	return fmt.Sprintf("invalid image digest %q: must be sha256: followed by 64 lowercase hex characters", e.Value)
}

// Unwrap returns ErrInvalidImageDigest for errors.Is() compatibility.
func (e *InvalidImageDigestError) Unwrap() error { return ErrInvalidImageDigest }

// IsPinned returns true when the base image is pinned to a digest rather
// than tracking a floating tag.
func (b *BaseImage) IsPinned() bool {
	return b != nil && b.Digest != ""
}

// IsValid returns whether every set field of the BaseImage is well-formed,
// and the list of validation errors if not. Zero-valued fields are valid
// (defaults apply).
func (b *BaseImage) IsValid() (bool, []error) {
	if b == nil {
		return true, nil
	}
	var errs []error
	if err := b.Registry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := b.Image.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := b.Tag.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := b.Digest.Validate(); err != nil {
		errs = append(errs, err)
	}
	return len(errs) == 0, errs
}
