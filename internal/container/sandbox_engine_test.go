// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/mlforge/mlforge/pkg/platform"
)

// mockEngine implements the Engine interface with canned responses so the
// sandbox wrapper's delegation and arg construction can be observed without
// a real container runtime. It deliberately does not embed BaseCLIEngine,
// so it also stands in for engines that do not shell out.
type mockEngine struct {
	name       string
	available  bool
	binaryPath string
	runArgs    []string
}

func (m *mockEngine) Name() string {
	return m.name
}

func (m *mockEngine) Available() bool {
	return m.available
}

func (m *mockEngine) Version(_ context.Context) (string, error) {
	return "1.0.0", nil
}

func (m *mockEngine) BinaryPath() string {
	return m.binaryPath
}

func (m *mockEngine) BuildRunArgs(_ RunOptions) []string {
	if m.runArgs != nil {
		return m.runArgs
	}
	return []string{"run", "--rm", "debian:stable-slim", "echo", "hello"}
}

func (m *mockEngine) Build(_ context.Context, _ BuildOptions) error {
	return nil
}

func (m *mockEngine) Run(_ context.Context, _ RunOptions) (*RunResult, error) {
	return &RunResult{}, nil
}

func (m *mockEngine) ImageExists(_ context.Context, _ ImageTag) (bool, error) {
	return true, nil
}

func (m *mockEngine) RemoveImage(_ context.Context, _ ImageTag, _ bool) error {
	return nil
}

func (m *mockEngine) InspectImage(_ context.Context, _ ImageTag) (string, error) {
	return "[]", nil
}

func TestSandboxAwareEngine_NoSandbox(t *testing.T) {
	t.Parallel()

	mock := &mockEngine{
		name:       "podman",
		available:  true,
		binaryPath: "/usr/bin/podman",
		runArgs:    []string{"run", "--rm", "test-image"},
	}

	engine := newSandboxAwareEngineForTesting(mock, platform.SandboxNone)

	// BuildRunArgs should return args unchanged
	args := engine.BuildRunArgs(RunOptions{})
	expected := []string{"run", "--rm", "test-image"}

	if !reflect.DeepEqual(args, expected) {
		t.Errorf("BuildRunArgs() = %v, want %v", args, expected)
	}
}

func TestSandboxAwareEngine_Flatpak(t *testing.T) {
	t.Parallel()

	mock := &mockEngine{
		name:       "podman",
		available:  true,
		binaryPath: "/usr/bin/podman",
		runArgs:    []string{"run", "--rm", "test-image"},
	}

	engine := newSandboxAwareEngineForTesting(mock, platform.SandboxFlatpak)

	// BuildRunArgs should prepend flatpak-spawn --host
	args := engine.BuildRunArgs(RunOptions{})
	expected := []string{"flatpak-spawn", "--host", "/usr/bin/podman", "run", "--rm", "test-image"}

	if !reflect.DeepEqual(args, expected) {
		t.Errorf("BuildRunArgs() = %v, want %v", args, expected)
	}
}

func TestSandboxAwareEngine_Snap(t *testing.T) {
	t.Parallel()

	mock := &mockEngine{
		name:       "docker",
		available:  true,
		binaryPath: "/usr/bin/docker",
		runArgs:    []string{"run", "--rm", "test-image"},
	}

	engine := newSandboxAwareEngineForTesting(mock, platform.SandboxSnap)

	// BuildRunArgs should prepend snap run --shell
	args := engine.BuildRunArgs(RunOptions{})
	expected := []string{"snap", "run", "--shell", "/usr/bin/docker", "run", "--rm", "test-image"}

	if !reflect.DeepEqual(args, expected) {
		t.Errorf("BuildRunArgs() = %v, want %v", args, expected)
	}
}

func TestSandboxAwareEngine_DelegatesMethods(t *testing.T) {
	t.Parallel()

	mock := &mockEngine{
		name:       "podman",
		available:  true,
		binaryPath: "/usr/bin/podman",
	}

	// Outside a sandbox every method should pass straight through
	engine := newSandboxAwareEngineForTesting(mock, platform.SandboxNone)

	if engine.Name() != "podman" {
		t.Errorf("Name() = %q, want %q", engine.Name(), "podman")
	}
	if !engine.Available() {
		t.Error("Available() = false, want true")
	}
	if engine.BinaryPath() != "/usr/bin/podman" {
		t.Errorf("BinaryPath() = %q, want %q", engine.BinaryPath(), "/usr/bin/podman")
	}

	version, err := engine.Version(context.Background())
	if err != nil {
		t.Errorf("Version() error = %v", err)
	}
	if version != "1.0.0" {
		t.Errorf("Version() = %q, want %q", version, "1.0.0")
	}

	exists, err := engine.ImageExists(context.Background(), "debian:stable-slim")
	if err != nil {
		t.Errorf("ImageExists() error = %v", err)
	}
	if !exists {
		t.Error("ImageExists() = false, want true")
	}

	inspect, err := engine.InspectImage(context.Background(), "debian:stable-slim")
	if err != nil {
		t.Errorf("InspectImage() error = %v", err)
	}
	if inspect != "[]" {
		t.Errorf("InspectImage() = %q, want %q", inspect, "[]")
	}
}

func TestSandboxAwareEngine_BuildSpawnArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sandboxType platform.SandboxType
		binary      string
		args        []string
		expected    []string
	}{
		{
			name:        "flatpak simple",
			sandboxType: platform.SandboxFlatpak,
			binary:      "/usr/bin/podman",
			args:        []string{"run", "--rm", "alpine"},
			expected:    []string{"flatpak-spawn", "--host", "/usr/bin/podman", "run", "--rm", "alpine"},
		},
		{
			name:        "flatpak with volume",
			sandboxType: platform.SandboxFlatpak,
			binary:      "/usr/bin/podman",
			args:        []string{"run", "-v", "/tmp/test:/workspace", "debian:stable-slim"},
			expected:    []string{"flatpak-spawn", "--host", "/usr/bin/podman", "run", "-v", "/tmp/test:/workspace", "debian:stable-slim"},
		},
		{
			name:        "snap simple",
			sandboxType: platform.SandboxSnap,
			binary:      "/snap/bin/docker",
			args:        []string{"build", "-t", "myimage", "."},
			expected:    []string{"snap", "run", "--shell", "/snap/bin/docker", "build", "-t", "myimage", "."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockEngine{binaryPath: tt.binary}
			engine := newSandboxAwareEngineForTesting(mock, tt.sandboxType)

			result := engine.buildSpawnArgs(tt.binary, tt.args)

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("buildSpawnArgs() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSandboxAwareEngine_WrapArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sandboxType platform.SandboxType
		args        []string
		wantWrapped bool
	}{
		{
			name:        "no sandbox - no wrap",
			sandboxType: platform.SandboxNone,
			args:        []string{"run", "--rm", "alpine"},
			wantWrapped: false,
		},
		{
			name:        "flatpak - wrap",
			sandboxType: platform.SandboxFlatpak,
			args:        []string{"run", "--rm", "alpine"},
			wantWrapped: true,
		},
		{
			name:        "snap - wrap",
			sandboxType: platform.SandboxSnap,
			args:        []string{"run", "--rm", "alpine"},
			wantWrapped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockEngine{binaryPath: "/usr/bin/podman"}
			engine := newSandboxAwareEngineForTesting(mock, tt.sandboxType)

			result := engine.wrapArgs(tt.args)

			if tt.wantWrapped {
				// Should have spawn command prepended
				if result[0] == tt.args[0] {
					t.Errorf("wrapArgs() should wrap args, got %v", result)
				}
			} else {
				// Should be unchanged
				if !reflect.DeepEqual(result, tt.args) {
					t.Errorf("wrapArgs() = %v, want %v", result, tt.args)
				}
			}
		})
	}
}

func TestNewSandboxAwareEngine_NonCLIEngineNeverWrapped(t *testing.T) {
	t.Parallel()

	// mockEngine does not implement BaseCLIProvider, so it must come back
	// unwrapped regardless of sandbox detection: spawning on the host only
	// makes sense for engines that build an argv.
	mock := &mockEngine{
		name:       "test",
		available:  true,
		binaryPath: "/usr/bin/test",
	}

	engine := NewSandboxAwareEngine(mock)
	if engine != Engine(mock) {
		t.Error("expected non-CLI engine to be returned unwrapped")
	}
}

func TestNewSandboxAwareEngine_CLIEngine(t *testing.T) {
	t.Parallel()

	docker := &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/docker", WithName("docker")),
	}

	engine := NewSandboxAwareEngine(docker)

	if platform.IsInSandbox() {
		if _, ok := engine.(*SandboxAwareEngine); !ok {
			t.Errorf("expected SandboxAwareEngine when in sandbox, got %T", engine)
		}
	} else {
		if engine != Engine(docker) {
			t.Error("expected original engine when not in sandbox")
		}
	}
}

func TestSandboxAwareEngine_ComplexRunOptions(t *testing.T) {
	t.Parallel()

	mock := &mockEngine{
		name:       "podman",
		available:  true,
		binaryPath: "/usr/bin/podman",
		runArgs: []string{
			"run", "--rm", "-i", "-t",
			"-w", "/workspace",
			"-v", "/home/user/project:/workspace:z",
			"-e", "FOO=bar",
			"--userns=keep-id",
			"debian:stable-slim",
			"bash", "-c", "echo hello",
		},
	}

	engine := newSandboxAwareEngineForTesting(mock, platform.SandboxFlatpak)

	args := engine.BuildRunArgs(RunOptions{
		Image:   "debian:stable-slim",
		Command: []string{"bash", "-c", "echo hello"},
		WorkDir: "/workspace",
		Volumes: []VolumeMount{
			{HostPath: "/home/user/project", ContainerPath: "/workspace", SELinux: SELinuxLabelShared},
		},
		Env:         map[string]string{"FOO": "bar"},
		Remove:      true,
		Interactive: true,
		TTY:         true,
	})

	// Verify flatpak-spawn --host is prepended
	if len(args) < 3 {
		t.Fatalf("expected at least 3 args, got %d", len(args))
	}

	if args[0] != "flatpak-spawn" {
		t.Errorf("args[0] = %q, want %q", args[0], "flatpak-spawn")
	}
	if args[1] != "--host" {
		t.Errorf("args[1] = %q, want %q", args[1], "--host")
	}
	if args[2] != "/usr/bin/podman" {
		t.Errorf("args[2] = %q, want %q", args[2], "/usr/bin/podman")
	}

	// The volume mount must survive wrapping verbatim; host-side spawn is the
	// whole point of the wrapper, so the host path must reach the host binary.
	foundVolume := false
	for i, arg := range args {
		if arg == "-v" && i+1 < len(args) && args[i+1] == "/home/user/project:/workspace:z" {
			foundVolume = true
			break
		}
	}
	if !foundVolume {
		t.Error("volume mount not found in wrapped args")
	}
}

func TestSandboxAwareEngine_BaseCLI(t *testing.T) {
	t.Parallel()

	podman := &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/podman", WithName("podman")),
	}
	podmanWrapper := newSandboxAwareEngineForTesting(podman, platform.SandboxFlatpak)

	if podmanWrapper.baseCLI() == nil {
		t.Error("baseCLI() should be non-nil for PodmanEngine")
	}

	docker := &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/docker", WithName("docker")),
	}
	dockerWrapper := newSandboxAwareEngineForTesting(docker, platform.SandboxFlatpak)

	if dockerWrapper.baseCLI() == nil {
		t.Error("baseCLI() should be non-nil for DockerEngine")
	}

	mockWrapper := newSandboxAwareEngineForTesting(&mockEngine{}, platform.SandboxFlatpak)
	if mockWrapper.baseCLI() != nil {
		t.Error("baseCLI() should be nil for engines that do not shell out")
	}
}

func TestSandboxAwareEngine_ForwardsSysctlOverrideActive(t *testing.T) {
	t.Parallel()

	podman := &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/podman",
			WithName("podman"),
			WithSysctlOverrideActive(true),
		),
	}
	wrapper := newSandboxAwareEngineForTesting(podman, platform.SandboxFlatpak)

	if !wrapper.SysctlOverrideActive() {
		t.Error("SysctlOverrideActive() = false, want true (forwarded from wrapped engine)")
	}

	mockWrapper := newSandboxAwareEngineForTesting(&mockEngine{}, platform.SandboxFlatpak)
	if mockWrapper.SysctlOverrideActive() {
		t.Error("SysctlOverrideActive() = true, want false for engines without the override")
	}
}

func TestSandboxAwareEngine_ForwardsClose(t *testing.T) {
	t.Parallel()

	tmp, err := os.CreateTemp(t.TempDir(), "sysctl-override-*.toml")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	tmp.Close()

	podman := &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/podman",
			WithName("podman"),
			WithSysctlOverridePath(HostFilesystemPath(tmp.Name())),
		),
	}
	wrapper := newSandboxAwareEngineForTesting(podman, platform.SandboxFlatpak)

	if err := wrapper.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := os.Stat(tmp.Name()); !os.IsNotExist(err) {
		t.Errorf("override file still present after Close(): stat err = %v", err)
	}

	// Engines without cleanup needs close without error
	mockWrapper := newSandboxAwareEngineForTesting(&mockEngine{}, platform.SandboxFlatpak)
	if err := mockWrapper.Close(); err != nil {
		t.Errorf("Close() on plain engine = %v, want nil", err)
	}
}
