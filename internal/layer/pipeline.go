// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"errors"
	"fmt"
)

// ErrInvalidPipeline indicates a step sequence that cannot form a valid
// composition, detected before any step runs.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// requiredPhases lists the phases every composition must pass through, in
// order. A pipeline missing any of them is rejected at construction.
var requiredPhases = []Phase{
	PhaseBaseResolved,
	PhaseDirEstablished,
	PhaseDepsInstalled,
	PhaseEntrypointRegistered,
}

// ObserverFunc receives progression events during a pipeline run. It is
// called after each step applies with the phase the snapshot now holds,
// and with PhaseFailed when a step aborts the run.
type ObserverFunc func(step StepName, phase Phase)

// Pipeline is a validated, ordered sequence of composition steps. A
// constructed pipeline always runs its steps in declaration order through
// the full phase progression.
type Pipeline struct {
	steps []Step
}

// New validates the step sequence and returns a runnable pipeline. The
// sequence must advance phases monotonically, pass through every required
// phase, and end with the single step that registers the entrypoint, so
// no instruction can ever follow registration.
func New(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidPipeline)
	}

	prev := PhaseStart
	reached := make(map[Phase]bool, len(requiredPhases))
	for i, st := range steps {
		if st == nil {
			return nil, fmt.Errorf("%w: step %d is nil", ErrInvalidPipeline, i)
		}
		name := st.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", ErrInvalidPipeline, i)
		}
		phase := st.Phase()
		if err := phase.Validate(); err != nil {
			return nil, fmt.Errorf("%w: step %q: %w", ErrInvalidPipeline, string(name), err)
		}
		if phase < PhaseBaseResolved || phase > PhaseEntrypointRegistered {
			return nil, fmt.Errorf("%w: step %q declares phase %q, which no step may complete", ErrInvalidPipeline, string(name), phase)
		}
		if phase < prev {
			return nil, fmt.Errorf("%w: step %q regresses from phase %q to %q", ErrInvalidPipeline, string(name), prev, phase)
		}
		if prev == PhaseEntrypointRegistered {
			return nil, fmt.Errorf("%w: step %q follows entrypoint registration", ErrInvalidPipeline, string(name))
		}
		prev = phase
		reached[phase] = true
	}

	for _, phase := range requiredPhases {
		if !reached[phase] {
			return nil, fmt.Errorf("%w: no step completes phase %q", ErrInvalidPipeline, phase)
		}
	}

	return &Pipeline{steps: steps}, nil
}

// Steps returns the names of the pipeline's steps in run order.
func (p *Pipeline) Steps() []StepName {
	names := make([]StepName, len(p.steps))
	for i, st := range p.steps {
		names[i] = st.Name()
	}
	return names
}

// Run applies every step in order and returns the completed snapshot.
// observe may be nil. If any step fails, the accumulated arena is
// discarded and Run returns a failed snapshot together with a StepError,
// so a partial composition can never be rendered or built.
func (p *Pipeline) Run(observe ObserverFunc) (Snapshot, error) {
	var snap Snapshot
	for _, st := range p.steps {
		added, err := st.Apply(snap)
		if err != nil {
			if observe != nil {
				observe(st.Name(), PhaseFailed)
			}
			return snap.failed(), &StepError{Step: st.Name(), Phase: st.Phase(), Err: err}
		}
		snap = snap.with(st.Phase(), added)
		if observe != nil {
			observe(st.Name(), snap.Phase())
		}
	}
	snap.phase = PhaseComplete
	return snap, nil
}
