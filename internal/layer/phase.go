// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"errors"
	"fmt"
)

// ErrInvalidPhase indicates a phase value outside the known progression.
var ErrInvalidPhase = errors.New("invalid build phase")

// Phase identifies how far an image composition has progressed. A snapshot
// carries the phase completed by the most recent step; the pipeline only
// ever moves it forward.
type Phase int

const (
	// PhaseStart is the zero value: no step has run yet.
	PhaseStart Phase = iota
	// PhaseBaseResolved means the base image reference has been fixed.
	PhaseBaseResolved
	// PhaseDirEstablished means the project workspace directory exists
	// and is the working directory for every subsequent instruction.
	PhaseDirEstablished
	// PhaseDepsInstalled means the dependency manifest has been applied.
	PhaseDepsInstalled
	// PhaseEntrypointRegistered means the boot script is in place,
	// executable, and registered as the image entrypoint.
	PhaseEntrypointRegistered
	// PhaseComplete is set by the pipeline once every step has applied.
	PhaseComplete
	// PhaseFailed marks a composition aborted by a step error.
	PhaseFailed
)

// phaseNames maps each phase to its wire-stable name. Observers and error
// messages use these names, so they must not change between releases.
var phaseNames = map[Phase]string{
	PhaseStart:                "start",
	PhaseBaseResolved:         "base-resolved",
	PhaseDirEstablished:       "dir-established",
	PhaseDepsInstalled:        "deps-installed",
	PhaseEntrypointRegistered: "entrypoint-registered",
	PhaseComplete:             "complete",
	PhaseFailed:               "failed",
}

// String returns the stable name for the phase, or a numeric placeholder
// for values outside the known progression.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Validate checks that the phase is one of the known progression values.
func (p Phase) Validate() error {
	if _, ok := phaseNames[p]; !ok {
		return &InvalidPhaseError{Value: p}
	}
	return nil
}

// Terminal reports whether the phase ends a composition, successfully or not.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// InvalidPhaseError provides details about a phase validation failure.
type InvalidPhaseError struct {
	Value Phase
}

// Error implements the error interface.
func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("invalid build phase %d", int(e.Value))
}

// Unwrap returns the underlying sentinel error for errors.Is checks.
func (e *InvalidPhaseError) Unwrap() error {
	return ErrInvalidPhase
}
