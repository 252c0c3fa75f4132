// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"errors"
	"fmt"

	"github.com/mlforge/mlforge/internal/layer"
)

// The entrypoint contract: one bootstrap script, staged under a fixed name
// in the build context and installed at a fixed path that is on the
// container's execution search path.
const (
	// StagedEntrypointName is the script's file name inside the build
	// context, regardless of what the project calls its source file.
	StagedEntrypointName = "entrypoint.sh"

	// EntrypointTarget is the installed script path inside the image.
	EntrypointTarget = "/usr/local/bin/entrypoint.sh"

	// EntrypointFileMode is the staged script's permission bits. The image
	// layer additionally sets the execute bit with an explicit chmod so the
	// permission does not depend on build-context mode preservation.
	EntrypointFileMode = 0o755
)

var (
	// ErrEntrypointNotFound is the sentinel error wrapped by EntrypointNotFoundError.
	ErrEntrypointNotFound = errors.New("entrypoint script not found")

	// ErrEntrypointNotPlaced indicates an entrypoint step ran before the
	// script was copied into the image. Setting permissions on or
	// registering a file that does not exist is undefined.
	ErrEntrypointNotPlaced = errors.New("entrypoint script not placed")

	// ErrEntrypointNotExecutable indicates registration ran before the
	// execute bit was granted. A non-executable entry is a build-time
	// failure, never a run-time one.
	ErrEntrypointNotExecutable = errors.New("entrypoint script not executable")
)

// EntrypointNotFoundError reports a missing bootstrap script at staging
// time, before any engine call.
type EntrypointNotFoundError struct {
	// Path is the expected script location.
	Path string
}

// Error implements the error interface.
func (e *EntrypointNotFoundError) Error() string {
	return fmt.Sprintf("entrypoint script not found at %s", e.Path)
}

// Unwrap returns ErrEntrypointNotFound for errors.Is() compatibility.
func (e *EntrypointNotFoundError) Unwrap() error { return ErrEntrypointNotFound }

type (
	placementStep    struct{}
	permissionStep   struct{}
	registrationStep struct{}
)

// NewPlacementStep returns the step that copies the staged bootstrap
// script to its fixed target path inside the image.
func NewPlacementStep() layer.Step { return placementStep{} }

// NewPermissionStep returns the step that sets the execute bit on the
// placed script. It refuses to apply before placement.
func NewPermissionStep() layer.Step { return permissionStep{} }

// NewRegistrationStep returns the step that registers the script as the
// image's sole process entry, in exec form with no baked-in arguments.
// It refuses to apply while the script is missing or not yet executable.
func NewRegistrationStep() layer.Step { return registrationStep{} }

// EntrypointSteps returns the boot steps in their only valid order:
// placement, permission, registration.
func EntrypointSteps() []layer.Step {
	return []layer.Step{
		NewPlacementStep(),
		NewPermissionStep(),
		NewRegistrationStep(),
	}
}

func (placementStep) Name() layer.StepName { return "place-entrypoint" }

func (placementStep) Phase() layer.Phase { return layer.PhaseDepsInstalled }

func (placementStep) Apply(layer.Snapshot) ([]layer.Layer, error) {
	return []layer.Layer{{
		Kind:        layer.KindCopy,
		Instruction: fmt.Sprintf("COPY %s %s", StagedEntrypointName, EntrypointTarget),
		Target:      EntrypointTarget,
	}}, nil
}

func (permissionStep) Name() layer.StepName { return "grant-entrypoint-exec" }

func (permissionStep) Phase() layer.Phase { return layer.PhaseDepsInstalled }

func (permissionStep) Apply(s layer.Snapshot) ([]layer.Layer, error) {
	if !s.ContainsTarget(layer.KindCopy, EntrypointTarget) {
		return nil, fmt.Errorf("cannot grant the execute bit before placement: %w", ErrEntrypointNotPlaced)
	}
	return []layer.Layer{{
		Kind:        layer.KindRun,
		Instruction: fmt.Sprintf("RUN chmod 0755 %s", EntrypointTarget),
		Target:      EntrypointTarget,
	}}, nil
}

func (registrationStep) Name() layer.StepName { return "register-entrypoint" }

func (registrationStep) Phase() layer.Phase { return layer.PhaseEntrypointRegistered }

func (registrationStep) Apply(s layer.Snapshot) ([]layer.Layer, error) {
	if !s.ContainsTarget(layer.KindCopy, EntrypointTarget) {
		return nil, fmt.Errorf("cannot register an entrypoint that was never placed: %w", ErrEntrypointNotPlaced)
	}
	if !s.ContainsTarget(layer.KindRun, EntrypointTarget) {
		return nil, fmt.Errorf("cannot register %s as the process entry: %w", EntrypointTarget, ErrEntrypointNotExecutable)
	}
	return []layer.Layer{{
		Kind:        layer.KindEntrypoint,
		Instruction: fmt.Sprintf("ENTRYPOINT [%q]", EntrypointTarget),
		Target:      EntrypointTarget,
	}}, nil
}
