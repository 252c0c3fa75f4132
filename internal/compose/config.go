// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"fmt"
	"io"
	"os"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/layer"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"
)

type (
	// Config holds everything a composition needs besides the engine.
	// Assemble one with NewConfig (or FromForgefile) and treat it as
	// immutable afterwards: options apply at construction only, and the
	// same Config always plans the same composition.
	Config struct {
		// Identity is the owner/contact/project triple the image is
		// composed for.
		Identity identity.Identity

		// ContextDir is the project directory holding the dependency
		// manifest and the entrypoint script. Default: the working
		// directory.
		ContextDir string

		// Base selects the base image. Zero-valued fields fall back to
		// the defaults (ghcr.io / ml-base / latest).
		Base forgefile.BaseImage

		// Manifest is the dependency manifest path, relative to ContextDir.
		Manifest forgefile.ManifestPath

		// Entrypoint is the bootstrap script path, relative to ContextDir.
		Entrypoint forgefile.EntrypointPath

		// Env lists variables baked into the image, in declaration order.
		Env []forgefile.EnvVar

		// Labels are extra image labels rendered alongside the identity
		// labels. Reserved org.opencontainers.image.* keys are managed by
		// the composer and rejected here.
		Labels map[string]string

		// InstallCache keeps the installer's package cache in the image
		// layer. Off by default: --no-cache-dir keeps layers lean.
		InstallCache bool

		// BuildCache lets the engine reuse cached layers. On by default;
		// disable to force a fully fresh build.
		BuildCache bool

		// Tag overrides the tag applied to the built image. The zero
		// value derives the tag from the project name.
		Tag container.ImageTag

		// TagSuffix is appended to the derived tag so parallel test runs
		// do not compete for the same image tags. Ignored when Tag is set
		// explicitly. Can be set via MLFORGE_BUILD_TAG_SUFFIX.
		TagSuffix string

		// Observer receives progression events during the pipeline run.
		Observer layer.ObserverFunc

		// Output receives engine build progress. Default: os.Stderr.
		Output io.Writer
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// NewConfig returns a Config for the identity with defaults applied,
// then the options in order.
func NewConfig(id identity.Identity, opts ...Option) *Config {
	cwd, _ := os.Getwd()

	c := &Config{
		Identity:   id,
		ContextDir: cwd,
		Manifest:   forgefile.DefaultManifest,
		Entrypoint: forgefile.DefaultEntrypoint,
		BuildCache: true,
		TagSuffix:  os.Getenv("MLFORGE_BUILD_TAG_SUFFIX"),
		Output:     os.Stderr,
	}
	c.Apply(opts...)
	return c
}

// FromForgefile returns a Config carrying everything the forgefile
// declares: identity, base selection, manifest and entrypoint paths, env
// vars, and labels. Paths resolve against the forgefile's directory.
// Options apply after the forgefile, so callers can override it.
func FromForgefile(f *forgefile.Forgefile, opts ...Option) *Config {
	fromFile := []Option{
		WithContextDir(string(f.Dir())),
		WithBase(f.EffectiveBase()),
		WithManifest(f.EffectiveManifest()),
		WithEntrypoint(f.EffectiveEntrypoint()),
		WithEnv(f.Env),
		WithLabels(f.Labels),
	}
	return NewConfig(f.Identity(), append(fromFile, opts...)...)
}

// WithContextDir returns an Option that sets the project directory.
func WithContextDir(dir string) Option {
	return func(c *Config) {
		c.ContextDir = dir
	}
}

// WithBase returns an Option that sets the base image selection.
func WithBase(base forgefile.BaseImage) Option {
	return func(c *Config) {
		c.Base = base
	}
}

// WithRegistry returns an Option that overrides the base image registry.
func WithRegistry(registry forgefile.RegistryHost) Option {
	return func(c *Config) {
		c.Base.Registry = registry
	}
}

// WithPinnedDigest returns an Option that pins the base image to a digest.
// A pinned base renders as <registry>/<owner>/<image>@<digest> and is
// immune to tag drift.
func WithPinnedDigest(digest forgefile.ImageDigest) Option {
	return func(c *Config) {
		c.Base.Digest = digest
	}
}

// WithManifest returns an Option that sets the dependency manifest path.
func WithManifest(manifest forgefile.ManifestPath) Option {
	return func(c *Config) {
		c.Manifest = manifest
	}
}

// WithEntrypoint returns an Option that sets the bootstrap script path.
func WithEntrypoint(entrypoint forgefile.EntrypointPath) Option {
	return func(c *Config) {
		c.Entrypoint = entrypoint
	}
}

// WithEnv returns an Option that sets the baked-in environment variables.
func WithEnv(vars []forgefile.EnvVar) Option {
	return func(c *Config) {
		c.Env = vars
	}
}

// WithLabels returns an Option that sets the extra image labels.
func WithLabels(labels map[string]string) Option {
	return func(c *Config) {
		c.Labels = labels
	}
}

// WithInstallCache returns an Option that toggles the installer's package
// cache inside the image layer.
func WithInstallCache(keep bool) Option {
	return func(c *Config) {
		c.InstallCache = keep
	}
}

// WithBuildCache returns an Option that toggles the engine's layer cache
// for this build.
func WithBuildCache(use bool) Option {
	return func(c *Config) {
		c.BuildCache = use
	}
}

// WithTag returns an Option that sets an explicit tag for the built image.
func WithTag(tag container.ImageTag) Option {
	return func(c *Config) {
		c.Tag = tag
	}
}

// WithTagSuffix returns an Option that sets the derived-tag suffix. This
// is primarily used for test isolation so parallel runs do not compete
// for the same image tags.
func WithTagSuffix(suffix string) Option {
	return func(c *Config) {
		c.TagSuffix = suffix
	}
}

// WithObserver returns an Option that sets the pipeline progression
// observer.
func WithObserver(observe layer.ObserverFunc) Option {
	return func(c *Config) {
		c.Observer = observe
	}
}

// WithOutput returns an Option that sets the engine build progress writer.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// EffectiveTag returns the tag the built image will carry: the explicit
// Tag when set, otherwise mlforge-<project>:latest plus the optional
// suffix.
func (c *Config) EffectiveTag() container.ImageTag {
	if c.Tag != "" {
		return c.Tag
	}
	tag := fmt.Sprintf("mlforge-%s:latest", c.Identity.Project)
	if c.TagSuffix != "" {
		tag += "-" + c.TagSuffix
	}
	return container.ImageTag(tag)
}
