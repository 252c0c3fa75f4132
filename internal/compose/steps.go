// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/mlforge/mlforge/internal/layer"
	"github.com/mlforge/mlforge/pkg/forgefile"
	"github.com/mlforge/mlforge/pkg/identity"
)

// StagedManifestName is the dependency manifest's file name inside the
// build context, regardless of what the project calls its source file.
// The install instructions always reference this name, so the rendered
// Dockerfile does not vary with project file layout.
const StagedManifestName = "requirements.txt"

var (
	// ErrBaseNotResolved indicates a step ran before the base image
	// reference was fixed. Every other layer builds on the base, so
	// nothing may apply ahead of it.
	ErrBaseNotResolved = errors.New("base image not resolved")

	// ErrWorkdirNotEstablished indicates the manifest install ran before
	// the workspace directory existed. The install resolves relative
	// paths against the workspace, so the two steps do not commute.
	ErrWorkdirNotEstablished = errors.New("workspace directory not established")
)

type (
	baseStep    struct{ base ResolvedBase }
	labelStep   struct{ labels map[string]string }
	envStep     struct{ vars []forgefile.EnvVar }
	workdirStep struct{ project identity.ProjectName }
	installStep struct{ noCacheDir bool }
)

// NewBaseStep returns the step that fixes the base image reference.
func NewBaseStep(base ResolvedBase) layer.Step { return baseStep{base: base} }

// NewLabelStep returns the step that attaches image labels. Labels render
// in sorted key order so the Dockerfile is deterministic.
func NewLabelStep(labels map[string]string) layer.Step { return labelStep{labels: labels} }

// NewEnvStep returns the step that bakes environment variables into the
// image. Declaration order is preserved, so later variables may reference
// earlier ones at container runtime.
func NewEnvStep(vars []forgefile.EnvVar) layer.Step { return envStep{vars: vars} }

// NewWorkdirStep returns the step that establishes the project workspace
// directory and makes it the working directory for everything after it.
func NewWorkdirStep(project identity.ProjectName) layer.Step {
	return workdirStep{project: project}
}

// NewInstallStep returns the step that installs the dependency manifest.
// It refuses to apply before the workspace exists.
func NewInstallStep(noCacheDir bool) layer.Step { return installStep{noCacheDir: noCacheDir} }

// IdentityLabels expands an identity into the OCI image labels the
// composer manages: the contact becomes the authors label, the project
// the title, the owner the vendor, and the resolved base is recorded so
// a built image can always be traced back to what it was composed from.
func IdentityLabels(id identity.Identity, base ResolvedBase) map[string]string {
	labels := map[string]string{
		forgefile.LabelAuthors:  string(id.Contact),
		forgefile.LabelTitle:    string(id.Project),
		forgefile.LabelVendor:   string(id.Owner),
		forgefile.LabelBaseName: base.Ref(),
	}
	if base.Pinned() {
		labels[forgefile.LabelBaseDigest] = string(base.Digest)
	}
	return labels
}

func (s baseStep) Name() layer.StepName { return "resolve-base" }

func (s baseStep) Phase() layer.Phase { return layer.PhaseBaseResolved }

func (s baseStep) Apply(layer.Snapshot) ([]layer.Layer, error) {
	ref := s.base.Ref()
	return []layer.Layer{{
		Kind:        layer.KindFrom,
		Instruction: "FROM " + ref,
		Target:      ref,
	}}, nil
}

func (s labelStep) Name() layer.StepName { return "apply-labels" }

func (s labelStep) Phase() layer.Phase { return layer.PhaseBaseResolved }

func (s labelStep) Apply(snap layer.Snapshot) ([]layer.Layer, error) {
	if !snap.Contains(layer.KindFrom) {
		return nil, fmt.Errorf("cannot label an image before its base is fixed: %w", ErrBaseNotResolved)
	}
	layers := make([]layer.Layer, 0, len(s.labels))
	for _, k := range slices.Sorted(maps.Keys(s.labels)) {
		layers = append(layers, layer.Layer{
			Kind:        layer.KindLabel,
			Instruction: fmt.Sprintf("LABEL %s=%q", k, s.labels[k]),
			Target:      k,
		})
	}
	return layers, nil
}

func (s envStep) Name() layer.StepName { return "apply-env" }

func (s envStep) Phase() layer.Phase { return layer.PhaseBaseResolved }

func (s envStep) Apply(snap layer.Snapshot) ([]layer.Layer, error) {
	if !snap.Contains(layer.KindFrom) {
		return nil, fmt.Errorf("cannot set environment before the base is fixed: %w", ErrBaseNotResolved)
	}
	layers := make([]layer.Layer, 0, len(s.vars))
	for _, v := range s.vars {
		layers = append(layers, layer.Layer{
			Kind:        layer.KindEnv,
			Instruction: fmt.Sprintf("ENV %s=%q", v.Name, v.Value),
			Target:      string(v.Name),
		})
	}
	return layers, nil
}

func (s workdirStep) Name() layer.StepName { return "establish-workdir" }

func (s workdirStep) Phase() layer.Phase { return layer.PhaseDirEstablished }

func (s workdirStep) Apply(snap layer.Snapshot) ([]layer.Layer, error) {
	if !snap.Contains(layer.KindFrom) {
		return nil, fmt.Errorf("cannot establish a workspace before the base is fixed: %w", ErrBaseNotResolved)
	}
	dir := WorkDirFor(s.project)
	return []layer.Layer{{
		Kind:        layer.KindWorkdir,
		Instruction: "WORKDIR " + dir,
		Target:      dir,
	}}, nil
}

func (s installStep) Name() layer.StepName { return "install-manifest" }

func (s installStep) Phase() layer.Phase { return layer.PhaseDepsInstalled }

func (s installStep) Apply(snap layer.Snapshot) ([]layer.Layer, error) {
	if !snap.Contains(layer.KindWorkdir) {
		return nil, fmt.Errorf("cannot install dependencies before the workspace exists: %w", ErrWorkdirNotEstablished)
	}
	install := "RUN pip install"
	if s.noCacheDir {
		install += " --no-cache-dir"
	}
	install += " -r " + StagedManifestName
	return []layer.Layer{
		{
			Kind:        layer.KindCopy,
			Instruction: fmt.Sprintf("COPY %s ./", StagedManifestName),
			Target:      StagedManifestName,
		},
		{
			Kind:        layer.KindRun,
			Instruction: install,
			Target:      StagedManifestName,
		},
	}, nil
}
