// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
var ErrNoEngineAvailable = errors.New("no container engine available")

// ErrInvalidEngineType is the sentinel error wrapped by InvalidEngineTypeError.
var ErrInvalidEngineType = errors.New("invalid container engine type")

type (
	// Engine is the abstraction over container runtimes used for image builds
	// and container runs. DockerEngine and PodmanEngine shell out to their
	// CLIs; APIEngine talks to the Docker daemon directly.
	Engine interface {
		// Name returns the engine name (docker, podman, or docker-api).
		Name() string
		// Available reports whether the engine can be used on this system.
		Available() bool
		// BinaryPath returns the engine CLI binary path, or "" for engines
		// that do not shell out.
		BinaryPath() string
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds an image from a staged build context.
		Build(ctx context.Context, opts BuildOptions) error
		// Run starts a container and waits for it to exit. A non-zero exit
		// status is reported in RunResult, not as an error.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// BuildRunArgs returns the argv a CLI engine would use for Run,
		// without executing. Engines that do not shell out return nil.
		BuildRunArgs(opts RunOptions) []string
		// ImageExists reports whether an image is present in local storage.
		ImageExists(ctx context.Context, image ImageTag) (bool, error)
		// RemoveImage removes an image from local storage.
		RemoveImage(ctx context.Context, image ImageTag, force bool) error
		// InspectImage returns the engine's JSON description of an image.
		InspectImage(ctx context.Context, image ImageTag) (string, error)
	}

	// EngineType identifies a container engine implementation.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is not recognized.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// EngineNotAvailableError is returned when no usable engine can be
	// constructed for the requested type, including fallbacks.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

const (
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
	// EngineTypeAPI selects the Docker Engine API over the daemon socket.
	EngineTypeAPI EngineType = "docker-api"
)

// Validate returns an error if the EngineType is not a recognized engine.
// The zero value ("") is valid and means "auto-detect".
func (t EngineType) Validate() error {
	switch t {
	case EngineTypePodman, EngineTypeDocker, EngineTypeAPI, "":
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine type %q (valid: podman, docker, docker-api)", string(e.Value))
}

// Unwrap returns ErrInvalidEngineType so callers can use errors.Is for programmatic detection.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable so callers can use errors.Is for programmatic detection.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// NewEngine creates a container engine of the preferred type, falling back to
// the other implementations when the preferred one is unavailable. The empty
// type auto-detects.
func NewEngine(preferredType EngineType) (Engine, error) {
	if err := preferredType.Validate(); err != nil {
		return nil, err
	}

	switch preferredType {
	case EngineTypePodman:
		return firstAvailable("podman",
			"podman is not installed or not accessible, and no fallback engine is available",
			NewPodmanEngine(), NewDockerEngine(), NewAPIEngine())

	case EngineTypeDocker:
		return firstAvailable("docker",
			"docker is not installed or not accessible, and no fallback engine is available",
			NewDockerEngine(), NewPodmanEngine(), NewAPIEngine())

	case EngineTypeAPI:
		return firstAvailable("docker-api",
			"the Docker daemon socket is not reachable, and no fallback engine is available",
			NewAPIEngine(), NewDockerEngine(), NewPodmanEngine())

	default:
		return AutoDetectEngine()
	}
}

// AutoDetectEngine finds any available container engine. Podman is tried
// first because it is the common engine in rootless setups, then the Docker
// CLI, then the Docker Engine API.
func AutoDetectEngine() (Engine, error) {
	return firstAvailable("any",
		"no container engine (podman, docker, or the Docker Engine API) is available on this system",
		NewPodmanEngine(), NewDockerEngine(), NewAPIEngine())
}

// firstAvailable returns the first candidate engine that reports itself
// available, or an EngineNotAvailableError naming the requested engine.
func firstAvailable(requested, reason string, candidates ...Engine) (Engine, error) {
	for _, c := range candidates {
		if c.Available() {
			return c, nil
		}
	}
	return nil, &EngineNotAvailableError{Engine: requested, Reason: reason}
}
