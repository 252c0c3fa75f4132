// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"sync"

	"github.com/mlforge/mlforge/internal/container"
)

// Compile-time interface check
var _ container.Engine = (*mockEngine)(nil)

// mockEngine is a configurable test double recording build invocations.
type mockEngine struct {
	mu        sync.Mutex
	name      string
	buildErr  error
	buildFunc func(ctx context.Context, opts container.BuildOptions) error

	BuildCalls []container.BuildOptions
}

func newMockEngine() *mockEngine {
	return &mockEngine{name: "mock"}
}

// withBuildError makes Build fail with the given error.
func (m *mockEngine) withBuildError(err error) *mockEngine {
	m.buildErr = err
	return m
}

// withBuildFunc installs a hook invoked by Build after recording the call.
// The hook sees the staged context while it still exists.
func (m *mockEngine) withBuildFunc(fn func(ctx context.Context, opts container.BuildOptions) error) *mockEngine {
	m.buildFunc = fn
	return m
}

func (m *mockEngine) buildCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.BuildCalls)
}

func (m *mockEngine) lastBuildOptions() container.BuildOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.BuildCalls) == 0 {
		return container.BuildOptions{}
	}
	return m.BuildCalls[len(m.BuildCalls)-1]
}

func (m *mockEngine) Name() string { return m.name }

func (m *mockEngine) Available() bool { return true }

func (m *mockEngine) BinaryPath() string { return "" }

func (m *mockEngine) Version(context.Context) (string, error) { return "1.0.0", nil }

func (m *mockEngine) Build(ctx context.Context, opts container.BuildOptions) error {
	m.mu.Lock()
	m.BuildCalls = append(m.BuildCalls, opts)
	fn := m.buildFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, opts)
	}
	return m.buildErr
}

func (m *mockEngine) Run(context.Context, container.RunOptions) (*container.RunResult, error) {
	return &container.RunResult{}, nil
}

func (m *mockEngine) BuildRunArgs(container.RunOptions) []string { return nil }


func (m *mockEngine) ImageExists(context.Context, container.ImageTag) (bool, error) {
	return true, nil
}

func (m *mockEngine) RemoveImage(context.Context, container.ImageTag, bool) error { return nil }

func (m *mockEngine) InspectImage(context.Context, container.ImageTag) (string, error) {
	return "{}", nil
}
