// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/distribution/reference"

	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"
)

// WorkspaceRoot is the parent directory of every project workspace inside
// a composed image.
const WorkspaceRoot = "/workspace"

// ErrUnresolvableBase is the sentinel error wrapped by UnresolvableBaseError.
var ErrUnresolvableBase = errors.New("unresolvable base image")

// UnresolvableBaseError reports an owner and base selection that cannot be
// combined into a valid image reference. It carries the individual
// validation errors so a caller can surface every problem in one pass.
type UnresolvableBaseError struct {
	Owner identity.OwnerName
	Base  forgefile.BaseImage
	Errs  []error
}

// Error implements the error interface for UnresolvableBaseError.
func (e *UnresolvableBaseError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("cannot resolve base image for owner %q: %s", e.Owner, strings.Join(msgs, "; "))
}

// Unwrap returns ErrUnresolvableBase for errors.Is() compatibility.
func (e *UnresolvableBaseError) Unwrap() error { return ErrUnresolvableBase }

// ResolvedBase is a fully determined base image selection: every field is
// populated, so Ref is total and deterministic. Construct one with
// ResolveBase; the zero value is not a valid base.
type ResolvedBase struct {
	Registry forgefile.RegistryHost
	Owner    identity.OwnerName
	Image    forgefile.ImageName
	Tag      forgefile.TagName
	Digest   forgefile.ImageDigest
}

// ResolveBase combines the owner with the base selection, applying the
// package defaults for unset fields. Resolution is pure: the same owner
// and selection always produce the same ResolvedBase. The composed
// reference is checked against the OCI distribution grammar, since
// per-field validation cannot catch every bad combination.
func ResolveBase(owner identity.OwnerName, base forgefile.BaseImage) (ResolvedBase, error) {
	var errs []error
	if err := owner.Validate(); err != nil {
		errs = append(errs, err)
	}
	if ok, baseErrs := base.IsValid(); !ok {
		errs = append(errs, baseErrs...)
	}
	if len(errs) > 0 {
		return ResolvedBase{}, &UnresolvableBaseError{Owner: owner, Base: base, Errs: errs}
	}

	resolved := ResolvedBase{
		Registry: base.Registry,
		Owner:    owner,
		Image:    base.Image,
		Tag:      base.Tag,
		Digest:   base.Digest,
	}
	if resolved.Registry == "" {
		resolved.Registry = forgefile.DefaultRegistry
	}
	if resolved.Image == "" {
		resolved.Image = forgefile.DefaultImage
	}
	if resolved.Tag == "" {
		resolved.Tag = forgefile.DefaultTag
	}

	if _, err := reference.ParseNormalizedNamed(resolved.Ref()); err != nil {
		return ResolvedBase{}, &UnresolvableBaseError{Owner: owner, Base: base, Errs: []error{err}}
	}
	return resolved, nil
}

// Ref returns the full image reference. A pinned digest takes precedence
// over the tag: a digest reference is immune to tag drift, while the tag
// form deliberately tracks whatever the registry currently serves.
func (b ResolvedBase) Ref() string {
	repo := fmt.Sprintf("%s/%s/%s", b.Registry, b.Owner, b.Image)
	if b.Digest != "" {
		return repo + "@" + string(b.Digest)
	}
	return repo + ":" + string(b.Tag)
}

// Pinned reports whether the reference is pinned to a digest rather than
// tracking a floating tag.
func (b ResolvedBase) Pinned() bool {
	return b.Digest != ""
}

// WorkDirFor returns the workspace directory a project owns inside the
// image. Always a container path, so separators are forward slashes
// regardless of the build host.
func WorkDirFor(project identity.ProjectName) string {
	return path.Join(WorkspaceRoot, string(project))
}
