// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLayerKind indicates a layer kind outside the known instruction set.
var ErrInvalidLayerKind = errors.New("invalid layer kind")

type (
	// LayerKind names the image instruction a layer renders to.
	LayerKind string

	// InvalidLayerKindError provides details about a layer kind validation failure.
	InvalidLayerKindError struct {
		Value LayerKind
	}
)

const (
	// KindFrom selects the base image.
	KindFrom LayerKind = "from"
	// KindWorkdir establishes the working directory.
	KindWorkdir LayerKind = "workdir"
	// KindCopy stages a file from the build context into the image.
	KindCopy LayerKind = "copy"
	// KindRun executes a command during the build.
	KindRun LayerKind = "run"
	// KindEnv sets an environment variable in the image config.
	KindEnv LayerKind = "env"
	// KindLabel attaches metadata to the image config.
	KindLabel LayerKind = "label"
	// KindEntrypoint registers the boot command in the image config.
	KindEntrypoint LayerKind = "entrypoint"
)

// knownLayerKinds is the closed set of instructions a step may emit.
var knownLayerKinds = map[LayerKind]struct{}{
	KindFrom:       {},
	KindWorkdir:    {},
	KindCopy:       {},
	KindRun:        {},
	KindEnv:        {},
	KindLabel:      {},
	KindEntrypoint: {},
}

// Validate checks that the kind is one of the known instruction kinds.
func (k LayerKind) Validate() error {
	if _, ok := knownLayerKinds[k]; !ok {
		return &InvalidLayerKindError{Value: k}
	}
	return nil
}

// String returns the string representation of the layer kind.
func (k LayerKind) String() string {
	return string(k)
}

// Error implements the error interface.
func (e *InvalidLayerKindError) Error() string {
	return fmt.Sprintf("invalid layer kind %q", string(e.Value))
}

// Unwrap returns the underlying sentinel error for errors.Is checks.
func (e *InvalidLayerKindError) Unwrap() error {
	return ErrInvalidLayerKind
}

// Layer is one rendered instruction in the composition arena. Target holds
// the instruction's subject where one exists: the base reference for a FROM
// layer, the destination path for a COPY, the directory for a WORKDIR, the
// variable name for an ENV, the key for a LABEL, and the script path for an
// ENTRYPOINT.
type Layer struct {
	Kind        LayerKind
	Instruction string
	Target      string
	Phase       Phase
}

// Snapshot is the immutable arena of layers accumulated by a pipeline run.
// The zero value is an empty snapshot at PhaseStart. Steps receive a
// snapshot by value and never see later mutations; the pipeline builds each
// successor with with(), which copies the arena.
type Snapshot struct {
	layers []Layer
	phase  Phase
}

// with returns a new snapshot extending the arena with the given layers and
// advancing to the given phase. The receiver is left untouched.
func (s Snapshot) with(phase Phase, added []Layer) Snapshot {
	layers := make([]Layer, 0, len(s.layers)+len(added))
	layers = append(layers, s.layers...)
	for _, l := range added {
		l.Phase = phase
		layers = append(layers, l)
	}
	return Snapshot{layers: layers, phase: phase}
}

// failed returns a terminal snapshot marking the composition as aborted.
// The arena is dropped so nothing from a failed run can be rendered.
func (s Snapshot) failed() Snapshot {
	return Snapshot{phase: PhaseFailed}
}

// SnapshotOf builds a snapshot directly from the given layers. Step
// implementations and test harnesses use it to evaluate preconditions
// against arbitrary arena states; pipeline runs never need it.
func SnapshotOf(phase Phase, layers ...Layer) Snapshot {
	arena := make([]Layer, len(layers))
	copy(arena, layers)
	return Snapshot{layers: arena, phase: phase}
}

// Phase returns the phase completed by the most recent step. The zero
// value reports PhaseStart.
func (s Snapshot) Phase() Phase {
	return s.phase
}

// Len returns the number of layers in the arena.
func (s Snapshot) Len() int {
	return len(s.layers)
}

// Layers returns a copy of the arena in application order.
func (s Snapshot) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Find returns the layers of the given kind in application order.
func (s Snapshot) Find(kind LayerKind) []Layer {
	var out []Layer
	for _, l := range s.layers {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// Contains reports whether the arena holds at least one layer of the kind.
func (s Snapshot) Contains(kind LayerKind) bool {
	for _, l := range s.layers {
		if l.Kind == kind {
			return true
		}
	}
	return false
}

// ContainsTarget reports whether the arena holds a layer of the kind whose
// target matches exactly.
func (s Snapshot) ContainsTarget(kind LayerKind, target string) bool {
	for _, l := range s.layers {
		if l.Kind == kind && l.Target == target {
			return true
		}
	}
	return false
}

// BaseRef returns the base image reference fixed by the FROM layer, or the
// empty string if the base has not been resolved yet.
func (s Snapshot) BaseRef() string {
	for _, l := range s.layers {
		if l.Kind == KindFrom {
			return l.Target
		}
	}
	return ""
}

// Render produces the Dockerfile text for the arena. Only a complete
// snapshot renders; rendering an unfinished or failed composition is a
// programming error surfaced to the caller.
func (s Snapshot) Render() (string, error) {
	if s.Phase() != PhaseComplete {
		return "", fmt.Errorf("cannot render snapshot in phase %q: composition is not complete", s.Phase())
	}

	var sb strings.Builder
	sb.WriteString("# Generated by mlforge. DO NOT EDIT.\n")
	prev := PhaseStart
	for _, l := range s.layers {
		if l.Phase != prev {
			sb.WriteString("\n")
			prev = l.Phase
		}
		sb.WriteString(l.Instruction)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
