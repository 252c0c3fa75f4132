// SPDX-License-Identifier: MPL-2.0

package layer

import "fmt"

// StepName identifies a pipeline step in observer callbacks and errors.
type StepName string

// String returns the string representation of the step name.
func (n StepName) String() string {
	return string(n)
}

// Step is one pure stage of an image composition. Apply inspects the
// snapshot accumulated so far and returns the layers this step contributes.
// Steps must not perform I/O or retain the snapshot: everything a step
// needs is captured at construction time, which keeps Apply deterministic
// and the pipeline replayable.
type Step interface {
	// Name identifies the step for observers and errors.
	Name() StepName
	// Phase is the progression phase the snapshot holds after this step
	// applies. Several steps may share a phase; the pipeline requires the
	// sequence of phases to be non-decreasing.
	Phase() Phase
	// Apply returns the layers to append, or an error that aborts the run.
	Apply(s Snapshot) ([]Layer, error)
}

// StepError reports a step failure, carrying the step identity and the
// phase the composition was advancing toward when it aborted.
type StepError struct {
	Step  StepName
	Phase Phase
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed while advancing to phase %q: %v", string(e.Step), e.Phase, e.Err)
}

// Unwrap returns the step's underlying error for errors.Is and errors.As.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Func adapts a function to the Step interface for steps with no state
// beyond their construction-time captures.
type Func struct {
	StepName  StepName
	StepPhase Phase
	ApplyFunc func(s Snapshot) ([]Layer, error)
}

// Name implements Step.
func (f Func) Name() StepName { return f.StepName }

// Phase implements Step.
func (f Func) Phase() Phase { return f.StepPhase }

// Apply implements Step.
func (f Func) Apply(s Snapshot) ([]Layer, error) { return f.ApplyFunc(s) }
