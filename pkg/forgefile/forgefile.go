// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"github.com/mlforge/mlforge/pkg/fspath"
	"github.com/mlforge/mlforge/pkg/identity"
	"github.com/mlforge/mlforge/pkg/types"
)

const (
	// DefaultName is the standard file name for a forgefile.
	DefaultName = "forgefile.cue"

	// DefaultLockName is the standard file name for the digest lock file
	// written next to the forgefile when base images are pinned.
	DefaultLockName = "forgefile.lock"

	// DefaultManifest is the dependency manifest used when the forgefile
	// does not name one.
	DefaultManifest ManifestPath = "requirements.txt"

	// DefaultEntrypoint is the entrypoint script used when the forgefile
	// does not name one.
	DefaultEntrypoint EntrypointPath = "entrypoint.sh"
)

// Forgefile is the parsed representation of a forgefile.cue.
//
// Only Owner, Contact, and Project are required; everything else falls back
// to defaults resolved through the Effective* accessors. Consumers should
// always go through those accessors rather than reading optional fields
// directly, so zero values never leak into rendered build instructions.
type Forgefile struct {
	// Owner is the registry namespace the base image is published under.
	Owner identity.OwnerName `json:"owner"`
	// Contact is the maintainer contact recorded on composed images.
	Contact identity.ContactAddress `json:"contact"`
	// Project names the per-project workspace directory inside the image.
	Project identity.ProjectName `json:"project"`

	// Base selects the base image (optional; defaults applied per field).
	Base *BaseImage `json:"base,omitempty"`

	// Manifest is the dependency manifest path, relative to the forgefile
	// directory (optional; defaults to DefaultManifest).
	Manifest ManifestPath `json:"manifest,omitempty"`

	// Entrypoint is the entrypoint script path, relative to the forgefile
	// directory (optional; defaults to DefaultEntrypoint).
	Entrypoint EntrypointPath `json:"entrypoint,omitempty"`

	// Env lists environment variables baked into the composed image, in
	// declaration order (optional).
	Env []EnvVar `json:"env,omitempty"`

	// Labels holds additional OCI labels for the composed image (optional).
	// Keys that mlforge writes itself are reserved and rejected.
	Labels map[string]string `json:"labels,omitempty"`

	// FilePath stores the path this forgefile was loaded from (not in CUE).
	FilePath types.FilesystemPath `json:"-"`
}

// Identity bundles the three identity parameters for validation and for
// consumers that only need the identity triple.
func (f *Forgefile) Identity() identity.Identity {
	return identity.Identity{
		Owner:   f.Owner,
		Contact: f.Contact,
		Project: f.Project,
	}
}

// EffectiveBase returns the base image selection with per-field defaults
// applied. Safe to call when Base is nil.
func (f *Forgefile) EffectiveBase() BaseImage {
	var b BaseImage
	if f.Base != nil {
		b = *f.Base
	}
	if b.Registry == "" {
		b.Registry = DefaultRegistry
	}
	if b.Image == "" {
		b.Image = DefaultImage
	}
	if b.Tag == "" {
		b.Tag = DefaultTag
	}
	return b
}

// EffectiveManifest returns the dependency manifest path, falling back to
// DefaultManifest when unset.
func (f *Forgefile) EffectiveManifest() ManifestPath {
	if f.Manifest == "" {
		return DefaultManifest
	}
	return f.Manifest
}

// EffectiveEntrypoint returns the entrypoint script path, falling back to
// DefaultEntrypoint when unset.
func (f *Forgefile) EffectiveEntrypoint() EntrypointPath {
	if f.Entrypoint == "" {
		return DefaultEntrypoint
	}
	return f.Entrypoint
}

// Dir returns the directory containing this forgefile. Relative manifest
// and entrypoint paths resolve against it. Returns "." when the forgefile
// was parsed from bytes without a path.
func (f *Forgefile) Dir() types.FilesystemPath {
	if f.FilePath == "" {
		return "."
	}
	return fspath.Dir(f.FilePath)
}
