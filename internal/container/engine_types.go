// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mlforge/mlforge/pkg/types"
)

var (
	// ErrInvalidContainerID is the sentinel error wrapped by InvalidContainerIDError.
	ErrInvalidContainerID = errors.New("invalid container ID")

	// ErrInvalidImageTag is the sentinel error wrapped by InvalidImageTagError.
	ErrInvalidImageTag = errors.New("invalid image tag")

	// ErrInvalidContainerName is the sentinel error wrapped by InvalidContainerNameError.
	ErrInvalidContainerName = errors.New("invalid container name")

	// ErrInvalidHostMapping is the sentinel error wrapped by InvalidHostMappingError.
	ErrInvalidHostMapping = errors.New("invalid host mapping")

	// ErrInvalidBuildOptions is the sentinel error wrapped by InvalidBuildOptionsError.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// ContainerID identifies a container instance (full or shortened).
	// A valid ID must be non-empty and not whitespace-only.
	ContainerID string

	// InvalidContainerIDError is returned when a ContainerID is empty or whitespace-only.
	InvalidContainerIDError struct {
		Value ContainerID
	}

	// ImageTag references a container image, optionally with registry and tag
	// (e.g. "ghcr.io/acme/ml-base:latest"). A valid reference must be
	// non-empty and not whitespace-only.
	ImageTag string

	// InvalidImageTagError is returned when an ImageTag is empty or whitespace-only.
	InvalidImageTagError struct {
		Value ImageTag
	}

	// ContainerName is an optional human-readable container name.
	// The zero value ("") is valid and lets the engine generate a name.
	ContainerName string

	// InvalidContainerNameError is returned when a ContainerName is whitespace-only.
	InvalidContainerNameError struct {
		Value ContainerName
	}

	// HostMapping is a host-to-address mapping passed via --add-host
	// (e.g. "host.docker.internal:host-gateway").
	HostMapping string

	// InvalidHostMappingError is returned when a HostMapping is empty or whitespace-only.
	InvalidHostMappingError struct {
		Value HostMapping
	}

	// BuildOptions configures an image build.
	BuildOptions struct {
		// ContextDir is the build context directory. Required.
		ContextDir HostFilesystemPath
		// Dockerfile is the Dockerfile path, relative to ContextDir unless
		// absolute. The zero value lets the engine use its default lookup.
		Dockerfile HostFilesystemPath
		// Tag is the tag applied to the built image. The zero value builds
		// an untagged image.
		Tag ImageTag
		// BuildArgs are --build-arg key/value pairs.
		BuildArgs map[string]string
		// NoCache disables the engine layer cache for this build.
		NoCache bool
		// Stdout and Stderr receive engine build output when non-nil.
		Stdout io.Writer
		Stderr io.Writer
	}

	// InvalidBuildOptionsError is returned when one or more BuildOptions
	// fields are invalid. It carries the individual field validation errors.
	InvalidBuildOptionsError struct {
		FieldErrors []error
	}

	// RunOptions configures a container run.
	RunOptions struct {
		// Image is the image to run. Required.
		Image ImageTag
		// Command is appended verbatim after the image reference, so it reaches
		// the image entrypoint untouched. A nil Command runs the bare entrypoint.
		Command []string
		// WorkDir overrides the image working directory. The zero value keeps
		// the image default.
		WorkDir MountTargetPath
		// Env are -e key/value pairs.
		Env map[string]string
		// Volumes are bind mounts passed via -v.
		Volumes []VolumeMount
		// Ports are port mappings passed via -p.
		Ports []PortMapping
		// ExtraHosts are mappings passed via --add-host.
		ExtraHosts []HostMapping
		// Remove passes --rm so the container is deleted on exit.
		Remove bool
		// Name is the optional container name.
		Name ContainerName
		// Interactive passes -i (keep stdin open).
		Interactive bool
		// TTY passes -t (allocate a pseudo-terminal).
		TTY bool
		// Stdin, Stdout, and Stderr are wired to the container when non-nil.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// InvalidRunOptionsError is returned when one or more RunOptions fields
	// are invalid. It carries the individual field validation errors.
	InvalidRunOptionsError struct {
		FieldErrors []error
	}

	// RunResult reports the outcome of a container run. A non-zero ExitCode
	// is the container's own exit status, not an infrastructure failure;
	// Error is set only when the run could not be executed at all.
	RunResult struct {
		ContainerID ContainerID
		ExitCode    types.ExitCode
		Error       error
	}
)

// String returns the string representation of the ContainerID.
func (c ContainerID) String() string { return string(c) }

// Validate returns an error if the ContainerID is empty or whitespace-only.
//
//goplint:nonzero
func (c ContainerID) Validate() error {
	if strings.TrimSpace(string(c)) == "" {
		return &InvalidContainerIDError{Value: c}
	}
	return nil
}

// Error implements the error interface for InvalidContainerIDError.
func (e *InvalidContainerIDError) Error() string {
	return fmt.Sprintf("invalid container ID %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidContainerID for errors.Is() compatibility.
func (e *InvalidContainerIDError) Unwrap() error { return ErrInvalidContainerID }

// String returns the string representation of the ImageTag.
func (t ImageTag) String() string { return string(t) }

// Validate returns an error if the ImageTag is empty or whitespace-only.
//
//goplint:nonzero
func (t ImageTag) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &InvalidImageTagError{Value: t}
	}
	return nil
}

// Error implements the error interface for InvalidImageTagError.
func (e *InvalidImageTagError) Error() string {
	return fmt.Sprintf("invalid image tag %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidImageTag for errors.Is() compatibility.
func (e *InvalidImageTagError) Unwrap() error { return ErrInvalidImageTag }

// String returns the string representation of the ContainerName.
func (n ContainerName) String() string { return string(n) }

// Validate returns an error if the ContainerName is whitespace-only.
// The zero value ("") is valid: the engine generates a name.
func (n ContainerName) Validate() error {
	if n != "" && strings.TrimSpace(string(n)) == "" {
		return &InvalidContainerNameError{Value: n}
	}
	return nil
}

// Error implements the error interface for InvalidContainerNameError.
func (e *InvalidContainerNameError) Error() string {
	return fmt.Sprintf("invalid container name %q: must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidContainerName for errors.Is() compatibility.
func (e *InvalidContainerNameError) Unwrap() error { return ErrInvalidContainerName }

// String returns the string representation of the HostMapping.
func (h HostMapping) String() string { return string(h) }

// Validate returns an error if the HostMapping is empty or whitespace-only.
//
//goplint:nonzero
func (h HostMapping) Validate() error {
	if strings.TrimSpace(string(h)) == "" {
		return &InvalidHostMappingError{Value: h}
	}
	return nil
}

// Error implements the error interface for InvalidHostMappingError.
func (e *InvalidHostMappingError) Error() string {
	return fmt.Sprintf("invalid host mapping %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostMapping for errors.Is() compatibility.
func (e *InvalidHostMappingError) Unwrap() error { return ErrInvalidHostMapping }

// Validate returns an error if any BuildOptions field is invalid.
// ContextDir is required; Dockerfile and Tag are optional and validated
// only when set.
func (o BuildOptions) Validate() error {
	var fieldErrs []error

	if err := o.ContextDir.Validate(); err != nil {
		fieldErrs = append(fieldErrs, err)
	}
	if o.Dockerfile != "" {
		if err := o.Dockerfile.Validate(); err != nil {
			fieldErrs = append(fieldErrs, err)
		}
	}
	if o.Tag != "" {
		if err := o.Tag.Validate(); err != nil {
			fieldErrs = append(fieldErrs, err)
		}
	}

	if len(fieldErrs) > 0 {
		return &InvalidBuildOptionsError{FieldErrors: fieldErrs}
	}
	return nil
}

// Error implements the error interface for InvalidBuildOptionsError.
func (e *InvalidBuildOptionsError) Error() string {
	return fmt.Sprintf("invalid build options: %d field error(s): %v",
		len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidBuildOptions for errors.Is() compatibility.
func (e *InvalidBuildOptionsError) Unwrap() error { return ErrInvalidBuildOptions }

// Validate returns an error if any RunOptions field is invalid.
// Image is required; WorkDir and Name are optional and validated only when
// set. Volumes, Ports, and ExtraHosts are validated per entry.
func (o RunOptions) Validate() error {
	var fieldErrs []error

	if err := o.Image.Validate(); err != nil {
		fieldErrs = append(fieldErrs, err)
	}
	if o.WorkDir != "" {
		if err := o.WorkDir.Validate(); err != nil {
			fieldErrs = append(fieldErrs, err)
		}
	}
	if err := o.Name.Validate(); err != nil {
		fieldErrs = append(fieldErrs, err)
	}
	for _, h := range o.ExtraHosts {
		if err := h.Validate(); err != nil {
			fieldErrs = append(fieldErrs, err)
		}
	}
	for _, v := range o.Volumes {
		if valid, errs := v.IsValid(); !valid {
			fieldErrs = append(fieldErrs, &InvalidVolumeMountError{Value: v, FieldErrs: errs})
		}
	}
	for _, p := range o.Ports {
		if valid, errs := p.IsValid(); !valid {
			fieldErrs = append(fieldErrs, &InvalidPortMappingError{Value: p, FieldErrs: errs})
		}
	}

	if len(fieldErrs) > 0 {
		return &InvalidRunOptionsError{FieldErrors: fieldErrs}
	}
	return nil
}

// Error implements the error interface for InvalidRunOptionsError.
func (e *InvalidRunOptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %d field error(s): %v",
		len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidRunOptions for errors.Is() compatibility.
func (e *InvalidRunOptionsError) Unwrap() error { return ErrInvalidRunOptions }
