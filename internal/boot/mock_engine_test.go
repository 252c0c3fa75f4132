// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"context"
	"sync"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/pkg/types"
)

// MockEngine is a recording container.Engine for dispatcher tests. Results
// are configured with the With* builders; every Run, Build, and ImageExists
// call is captured for assertions.
type MockEngine struct {
	mu sync.Mutex

	// Configuration
	name           string
	available      bool
	runResult      *container.RunResult
	runErr         error
	imageExists    bool
	imageExistsErr error
	buildErr       error
	version        string

	// Call recording
	RunCalls         []container.RunOptions
	BuildCalls       []container.BuildOptions
	ImageExistsCalls []container.ImageTag
}

// NewMockEngine creates a MockEngine with sensible defaults: available,
// every image present, and runs exiting zero.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		name:        "mock",
		available:   true,
		imageExists: true,
		runResult:   &container.RunResult{ExitCode: 0},
		version:     "1.0.0",
	}
}

// WithName sets the engine name.
func (m *MockEngine) WithName(name string) *MockEngine {
	m.name = name
	return m
}

// WithRunResult configures the result of Run() calls.
func (m *MockEngine) WithRunResult(exitCode types.ExitCode, err error) *MockEngine {
	m.runResult = &container.RunResult{ExitCode: exitCode}
	m.runErr = err
	return m
}

// WithResultError configures Run() to succeed at the engine level while the
// result carries an infrastructure error, the way CLI engines report a
// binary that could not be executed.
func (m *MockEngine) WithResultError(err error) *MockEngine {
	m.runResult = &container.RunResult{ExitCode: 1, Error: err}
	return m
}

// WithRunError configures Run() to return an error.
func (m *MockEngine) WithRunError(err error) *MockEngine {
	m.runErr = err
	return m
}

// WithImageExists configures whether images exist.
func (m *MockEngine) WithImageExists(exists bool) *MockEngine {
	m.imageExists = exists
	return m
}

// WithImageExistsError configures ImageExists() to return an error.
func (m *MockEngine) WithImageExistsError(err error) *MockEngine {
	m.imageExistsErr = err
	return m
}

// WithBuildError configures Build() to return an error.
func (m *MockEngine) WithBuildError(err error) *MockEngine {
	m.buildErr = err
	return m
}

// runCallCount returns the number of recorded Run() calls.
func (m *MockEngine) runCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// lastRunOptions returns the most recent recorded Run() options.
func (m *MockEngine) lastRunOptions() container.RunOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RunCalls[len(m.RunCalls)-1]
}

// --- container.Engine interface implementation ---

func (m *MockEngine) Name() string {
	return m.name
}

func (m *MockEngine) Available() bool {
	return m.available
}

func (m *MockEngine) BinaryPath() string {
	return "/usr/bin/" + m.name
}

func (m *MockEngine) Version(_ context.Context) (string, error) {
	return m.version, nil
}

func (m *MockEngine) Build(_ context.Context, opts container.BuildOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuildCalls = append(m.BuildCalls, opts)
	return m.buildErr
}

func (m *MockEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls = append(m.RunCalls, opts)
	if m.runErr != nil {
		return nil, m.runErr
	}
	result := *m.runResult
	return &result, nil
}

func (m *MockEngine) BuildRunArgs(opts container.RunOptions) []string {
	args := []string{"run"}
	if opts.Remove {
		args = append(args, "--rm")
	}
	args = append(args, string(opts.Image))
	args = append(args, opts.Command...)
	return args
}

func (m *MockEngine) ImageExists(_ context.Context, image container.ImageTag) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImageExistsCalls = append(m.ImageExistsCalls, image)
	if m.imageExistsErr != nil {
		return false, m.imageExistsErr
	}
	return m.imageExists, nil
}

func (m *MockEngine) RemoveImage(_ context.Context, _ container.ImageTag, _ bool) error {
	return nil
}

func (m *MockEngine) InspectImage(_ context.Context, _ container.ImageTag) (string, error) {
	return "{}", nil
}
