// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"fmt"

	"github.com/mlforge/mlforge/internal/boot"
	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/layer"
	"github.com/mlforge/mlforge/pkg/forgefile"
)

// Plan is the pure outcome of identity expansion and step assembly:
// everything about a composition that can be known without touching the
// filesystem or an engine. The same config always produces the same plan,
// so planning is safe to run for inspection (mlforge plan) as well as for
// building.
type Plan struct {
	base     ResolvedBase
	workDir  string
	tag      container.ImageTag
	pipeline *layer.Pipeline
}

// NewPlan validates the identity, resolves the base reference, and
// assembles the step pipeline. A returned error means the composition
// could never succeed, regardless of filesystem or engine state.
func NewPlan(cfg *Config) (*Plan, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}

	base, err := ResolveBase(cfg.Identity.Owner, cfg.Base)
	if err != nil {
		return nil, err
	}

	tag := cfg.EffectiveTag()
	if err := tag.Validate(); err != nil {
		return nil, err
	}

	labels := IdentityLabels(cfg.Identity, base)
	for k, v := range cfg.Labels {
		if err := forgefile.ValidateLabel(k, v); err != nil {
			return nil, fmt.Errorf("invalid label: %w", err)
		}
		labels[k] = v
	}
	for _, v := range cfg.Env {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid environment variable: %w", err)
		}
	}

	steps := []layer.Step{
		NewBaseStep(base),
		NewLabelStep(labels),
	}
	if len(cfg.Env) > 0 {
		steps = append(steps, NewEnvStep(cfg.Env))
	}
	steps = append(steps,
		NewWorkdirStep(cfg.Identity.Project),
		NewInstallStep(!cfg.InstallCache),
	)
	steps = append(steps, boot.EntrypointSteps()...)

	pipeline, err := layer.New(steps...)
	if err != nil {
		return nil, err
	}

	return &Plan{
		base:     base,
		workDir:  WorkDirFor(cfg.Identity.Project),
		tag:      tag,
		pipeline: pipeline,
	}, nil
}

// Base returns the resolved base image selection.
func (p *Plan) Base() ResolvedBase { return p.base }

// BaseRef returns the full base image reference the composition starts
// from.
func (p *Plan) BaseRef() string { return p.base.Ref() }

// WorkDir returns the workspace directory established inside the image.
func (p *Plan) WorkDir() string { return p.workDir }

// Tag returns the reference the built image will be tagged with.
func (p *Plan) Tag() container.ImageTag { return p.tag }

// Steps returns the names of the composition steps in run order.
func (p *Plan) Steps() []layer.StepName { return p.pipeline.Steps() }

// Render runs the pipeline and produces the Dockerfile text. observe may
// be nil. A failed step discards the accumulated layers; nothing partial
// ever renders.
func (p *Plan) Render(observe layer.ObserverFunc) (string, error) {
	snap, err := p.pipeline.Run(observe)
	if err != nil {
		return "", err
	}
	return snap.Render()
}
