// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
	"github.com/mlforge/mlforge/pkg/identity"
)

// Composer builds project images: it expands the identity into a plan,
// stages a build context, and drives the engine. Every Build is a fresh
// composition with no retries; a failed build tags nothing and leaves no
// staged context behind.
type Composer struct {
	engine container.Engine
	config *Config
}

// Result describes a completed composition.
type Result struct {
	// Tag is the reference the built image carries.
	Tag container.ImageTag
	// BaseRef is the resolved base image reference the build started from.
	BaseRef string
	// WorkDir is the workspace directory established inside the image.
	WorkDir string
	// Dockerfile is the rendered Dockerfile text the engine consumed.
	Dockerfile string
}

// NewComposer creates a Composer for the engine and configuration.
func NewComposer(engine container.Engine, cfg *Config) *Composer {
	if cfg == nil {
		cfg = NewConfig(identity.Identity{})
	}
	return &Composer{engine: engine, config: cfg}
}

// Config returns the composer's configuration.
func (c *Composer) Config() *Config { return c.config }

// Plan expands the identity without touching the filesystem or the
// engine. It surfaces every configuration problem a build would hit.
func (c *Composer) Plan() (*Plan, error) {
	return NewPlan(c.config)
}

// Build runs the full composition: plan, render, stage, and engine build.
// The staged context is removed whether the build succeeded or not.
// Cancelling ctx aborts the engine build with no image tagged.
func (c *Composer) Build(ctx context.Context) (*Result, error) {
	plan, err := NewPlan(c.config)
	if err != nil {
		return nil, err
	}

	dockerfile, err := plan.Render(c.config.Observer)
	if err != nil {
		return nil, err
	}

	buildCtx, cleanup, err := stageBuildContext(c.config, dockerfile)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Verify the staged context before handing it to the engine.
	if _, err := os.Stat(buildCtx); os.IsNotExist(err) {
		return nil, fmt.Errorf("build context directory does not exist: %s", buildCtx)
	}
	dockerfilePath := filepath.Join(buildCtx, stagedDockerfileName)
	if _, err := os.Stat(dockerfilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("dockerfile not found in build context: %s", dockerfilePath)
	}

	slog.Debug("composing image",
		"tag", plan.Tag(),
		"base", plan.BaseRef(),
		"workdir", plan.WorkDir(),
		"context", buildCtx)

	buildOpts := container.BuildOptions{
		ContextDir: container.HostFilesystemPath(buildCtx),
		Dockerfile: stagedDockerfileName,
		Tag:        plan.Tag(),
		NoCache:    !c.config.BuildCache,
		Stdout:     c.config.Output,
		Stderr:     c.config.Output,
	}
	if err := c.engine.Build(ctx, buildOpts); err != nil {
		return nil, composeFailedError(plan.Tag(), c.engine.Name(), err)
	}

	return &Result{
		Tag:        plan.Tag(),
		BaseRef:    plan.BaseRef(),
		WorkDir:    plan.WorkDir(),
		Dockerfile: dockerfile,
	}, nil
}

// composeFailedError wraps an engine build failure with remediation hints.
func composeFailedError(tag container.ImageTag, engine string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("compose image").
		WithResource(string(tag)).
		WithSuggestion("Check that the container engine daemon is running (try: " + engine + " info)").
		WithSuggestion("Verify the base image is reachable from this machine").
		Wrap(fmt.Errorf("failed to compose image: %w", cause)).
		BuildError()
}
