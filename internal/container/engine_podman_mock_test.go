// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"strings"
	"testing"
)

// newTestPodmanEngine creates a PodmanEngine for testing with the mock recorder.
// Note: SELinux volume labeling is disabled in tests to simplify assertions.
func newTestPodmanEngine(t *testing.T, recorder *MockCommandRecorder) *PodmanEngine {
	t.Helper()
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine("/usr/bin/podman",
			WithName("podman"),
			WithExecCommand(recorder.ContextCommandFunc(t)),
		),
	}
}

// TestPodmanEngine_Build_Arguments verifies Podman Build() constructs correct arguments.
func TestPodmanEngine_Build_Arguments(t *testing.T) {
	t.Parallel()

	t.Run("basic build", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		opts := BuildOptions{
			ContextDir: "/tmp/build",
			Tag:        "myimage:latest",
		}

		err := engine.Build(ctx, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertInvocationCount(t, 1)
		recorder.AssertCommandName(t, "/usr/bin/podman")
		recorder.AssertFirstArg(t, "build")
		recorder.AssertArgsContain(t, "-t")
		recorder.AssertArgsContain(t, "myimage:latest")
	})

	t.Run("with no-cache", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		opts := BuildOptions{
			ContextDir: "/tmp/build",
			Tag:        "test:v1",
			NoCache:    true,
		}

		err := engine.Build(ctx, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertArgsContain(t, "--no-cache")
	})
}

// TestPodmanEngine_Run_Arguments verifies Podman Run() constructs correct arguments.
func TestPodmanEngine_Run_Arguments(t *testing.T) {
	t.Parallel()

	t.Run("basic run", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		opts := RunOptions{
			Image:   "debian:stable-slim",
			Command: []string{"echo", "hello"},
		}

		_, err := engine.Run(ctx, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertInvocationCount(t, 1)
		recorder.AssertCommandName(t, "/usr/bin/podman")
		recorder.AssertFirstArg(t, "run")
		recorder.AssertArgsContain(t, "debian:stable-slim")
	})

	t.Run("with all options", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		opts := RunOptions{
			Image:       "debian:stable-slim",
			Command:     []string{"bash", "-c", "echo test"},
			WorkDir:     "/app",
			Name:        "podman-test",
			Remove:      true,
			Interactive: true,
			TTY:         true,
			Env:         map[string]string{"VAR": "value"},
			Volumes:     []VolumeMount{{HostPath: "/src", ContainerPath: "/src"}},
			Ports:       []PortMapping{{HostPort: 8080, ContainerPort: 80}},
			ExtraHosts:  []HostMapping{"host.containers.internal:host-gateway"},
		}

		_, err := engine.Run(ctx, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertArgsContain(t, "--rm")
		recorder.AssertArgsContain(t, "--name")
		recorder.AssertArgsContain(t, "podman-test")
		recorder.AssertArgsContain(t, "-w")
		recorder.AssertArgsContain(t, "/app")
		recorder.AssertArgsContain(t, "-i")
		recorder.AssertArgsContain(t, "-t")
		recorder.AssertArgsContain(t, "-e")
		recorder.AssertArgsContain(t, "-v")
		recorder.AssertArgsContain(t, "-p")
		recorder.AssertArgsContain(t, "8080:80")
		recorder.AssertArgsContain(t, "--add-host")
	})
}

// TestPodmanEngine_UsernsKeepID verifies the run args transformer injects
// --userns=keep-id for the full engine constructor.
func TestPodmanEngine_UsernsKeepID(t *testing.T) {
	t.Parallel()

	t.Run("injected before image on run", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngineWithSELinux(t, recorder, false)
		ctx := context.Background()

		_, err := engine.Run(ctx, RunOptions{
			Image:   "debian:stable-slim",
			Command: []string{"id"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		args := recorder.LastArgs()
		usernsIdx, imageIdx := -1, -1
		for i, arg := range args {
			if arg == "--userns=keep-id" {
				usernsIdx = i
			}
			if arg == "debian:stable-slim" {
				imageIdx = i
			}
		}

		if usernsIdx == -1 {
			t.Fatalf("expected --userns=keep-id in args: %v", args)
		}
		if imageIdx == -1 {
			t.Fatalf("expected image in args: %v", args)
		}
		if usernsIdx > imageIdx {
			t.Errorf("--userns=keep-id must precede the image\nargs: %v", args)
		}
	})

	t.Run("not injected on non-run commands", func(t *testing.T) {
		t.Parallel()

		transformer := makeUsernsKeepIDAdder()
		args := transformer([]string{"build", "-t", "test:v1", "."})
		for _, arg := range args {
			if arg == "--userns=keep-id" {
				t.Errorf("--userns=keep-id must not be added to build args: %v", args)
			}
		}
	})

	t.Run("value flags do not absorb the image", func(t *testing.T) {
		t.Parallel()

		// "--name run" must not make the transformer treat "run" as the image.
		transformer := makeUsernsKeepIDAdder()
		args := transformer([]string{"run", "--name", "run", "debian:stable-slim"})

		usernsIdx, imageIdx := -1, -1
		for i, arg := range args {
			if arg == "--userns=keep-id" {
				usernsIdx = i
			}
			if arg == "debian:stable-slim" {
				imageIdx = i
			}
		}
		if usernsIdx == -1 || imageIdx == -1 || usernsIdx > imageIdx {
			t.Errorf("expected --userns=keep-id before the image\nargs: %v", args)
		}
	})
}

// TestPodmanEngine_ImageExists_Arguments verifies Podman uses 'image exists' not 'image inspect'.
func TestPodmanEngine_ImageExists_Arguments(t *testing.T) {
	t.Parallel()

	t.Run("podman uses image exists command", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		exists, err := engine.ImageExists(ctx, "myimage:latest")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !exists {
			t.Error("expected image to exist (mock returns success)")
		}

		recorder.AssertInvocationCount(t, 1)
		recorder.AssertCommandName(t, "/usr/bin/podman")
		recorder.AssertFirstArg(t, "image")
		// Note: Podman uses "exists" while Docker uses "inspect"
		recorder.AssertArgsContain(t, "exists")
		recorder.AssertArgsContain(t, "myimage:latest")
	})
}

// TestPodmanEngine_ErrorPaths verifies Podman error handling.
func TestPodmanEngine_ErrorPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("build failure", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "Error: build failed", 1)
		engine := newTestPodmanEngine(t, recorder)

		opts := BuildOptions{
			ContextDir: "/tmp/build",
			Tag:        "test:v1",
		}

		err := engine.Build(ctx, opts)
		if err == nil {
			t.Fatal("expected error for failed build")
		}
		if !strings.Contains(err.Error(), "failed to build container image") {
			t.Errorf("expected 'failed to build container image' error, got: %v", err)
		}
	})

	t.Run("image not found", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "Error: No such image", 1)
		engine := newTestPodmanEngine(t, recorder)

		exists, err := engine.ImageExists(ctx, "nonexistent:latest")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists {
			t.Error("expected image to not exist")
		}
	})

	t.Run("run with exit code", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "command failed", 42)
		engine := newTestPodmanEngine(t, recorder)

		opts := RunOptions{
			Image:   "debian:stable-slim",
			Command: []string{"false"},
		}

		result, err := engine.Run(ctx, opts)
		// Run returns nil error but captures exit code in result
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ExitCode != 42 {
			t.Errorf("expected exit code 42, got %d", result.ExitCode)
		}
	})

	t.Run("remove image failure", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "Error: image is being used", 1)
		engine := newTestPodmanEngine(t, recorder)

		err := engine.RemoveImage(ctx, "image-in-use:latest", false)
		if err == nil {
			t.Fatal("expected error for failed image removal")
		}
		if !strings.Contains(err.Error(), "failed") {
			t.Errorf("error should indicate failure, got: %v", err)
		}
	})

	t.Run("version failure", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "Cannot connect to Podman socket", 1)
		engine := newTestPodmanEngine(t, recorder)

		_, err := engine.Version(ctx)
		if err == nil {
			t.Fatal("expected error when Podman not available")
		}
		if !strings.Contains(err.Error(), "failed to get podman version") {
			t.Errorf("error should indicate version failure, got: %v", err)
		}
	})
}

// TestPodmanEngine_Version_Arguments verifies Podman Version() uses different format.
func TestPodmanEngine_Version_Arguments(t *testing.T) {
	t.Parallel()

	recorder := newRecorderWithOutput("5.0.0", "", 0)
	engine := newTestPodmanEngine(t, recorder)
	ctx := context.Background()

	version, err := engine.Version(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorder.AssertInvocationCount(t, 1)
	recorder.AssertFirstArg(t, "version")
	// Podman uses {{.Version}} instead of {{.Server.Version}}
	recorder.AssertArgsContain(t, "{{.Version}}")

	if version != "5.0.0" {
		t.Errorf("expected version '5.0.0', got %q", version)
	}
}

// TestPodmanEngine_RemoveImage_Arguments verifies Podman RemoveImage() constructs correct arguments.
func TestPodmanEngine_RemoveImage_Arguments(t *testing.T) {
	t.Parallel()

	t.Run("basic remove image", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		err := engine.RemoveImage(ctx, "myimage:latest", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertInvocationCount(t, 1)
		recorder.AssertCommandName(t, "/usr/bin/podman")
		recorder.AssertFirstArg(t, "rmi")
		recorder.AssertArgsContain(t, "myimage:latest")
		recorder.AssertArgsNotContain(t, "-f")
	})

	t.Run("force remove image", func(t *testing.T) {
		t.Parallel()
		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)
		ctx := context.Background()

		err := engine.RemoveImage(ctx, "myimage:v2", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertArgsContain(t, "-f")
		recorder.AssertArgsContain(t, "myimage:v2")
	})
}

// TestPodmanEngine_InspectImage_Arguments verifies InspectImage() constructs correct arguments.
func TestPodmanEngine_InspectImage_Arguments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("basic inspect", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput(`{"Id": "sha256:abc123"}`, "", 0)
		engine := newTestPodmanEngine(t, recorder)

		output, err := engine.InspectImage(ctx, "debian:stable-slim")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertInvocationCount(t, 1)
		recorder.AssertFirstArg(t, "image")
		recorder.AssertArgsContain(t, "inspect")
		recorder.AssertArgsContain(t, "debian:stable-slim")

		if !strings.Contains(output, "sha256:abc123") {
			t.Errorf("expected output to contain image ID, got %q", output)
		}
	})

	t.Run("with registry", func(t *testing.T) {
		t.Parallel()

		recorder := NewMockCommandRecorder()
		engine := newTestPodmanEngine(t, recorder)

		_, err := engine.InspectImage(ctx, "ghcr.io/acme/ml-base:latest")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		recorder.AssertArgsContain(t, "ghcr.io/acme/ml-base:latest")
	})

	t.Run("image not found error", func(t *testing.T) {
		t.Parallel()

		recorder := newRecorderWithOutput("", "Error: No such image", 1)
		engine := newTestPodmanEngine(t, recorder)

		_, err := engine.InspectImage(ctx, "nonexistent:latest")
		if err == nil {
			t.Fatal("expected error for nonexistent image")
		}
	})
}

// =============================================================================
// SELinux Volume Labeling Tests
// =============================================================================

// newTestPodmanEngineWithSELinux creates a PodmanEngine with injectable SELinux check.
func newTestPodmanEngineWithSELinux(t *testing.T, recorder *MockCommandRecorder, selinuxEnabled bool) *PodmanEngine {
	t.Helper()
	return NewPodmanEngineWithSELinuxCheck(
		func() bool { return selinuxEnabled },
		WithExecCommand(recorder.ContextCommandFunc(t)),
	)
}

// TestPodmanEngine_SELinuxVolumeLabeling verifies SELinux label handling for volumes.
func TestPodmanEngine_SELinuxVolumeLabeling(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name           string
		selinuxEnabled bool
		volume         VolumeMount
		expectedInArgs string
	}{
		// SELinux enabled cases
		{
			name:           "SELinux enabled - adds :z to unlabeled volume",
			selinuxEnabled: true,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container"},
			expectedInArgs: "/host:/container:z",
		},
		{
			name:           "SELinux enabled - preserves existing shared label",
			selinuxEnabled: true,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container", SELinux: SELinuxLabelShared},
			expectedInArgs: "/host:/container:z",
		},
		{
			name:           "SELinux enabled - preserves existing private label",
			selinuxEnabled: true,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container", SELinux: SELinuxLabelPrivate},
			expectedInArgs: "/host:/container:Z",
		},
		{
			name:           "SELinux enabled - appends z after ro",
			selinuxEnabled: true,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container", ReadOnly: true},
			expectedInArgs: "/host:/container:ro,z",
		},
		// SELinux disabled cases
		{
			name:           "SELinux disabled - no modification",
			selinuxEnabled: false,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container"},
			expectedInArgs: "/host:/container",
		},
		{
			name:           "SELinux disabled - preserves read-only option",
			selinuxEnabled: false,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container", ReadOnly: true},
			expectedInArgs: "/host:/container:ro",
		},
		{
			name:           "SELinux disabled - preserves explicit label",
			selinuxEnabled: false,
			volume:         VolumeMount{HostPath: "/host", ContainerPath: "/container", SELinux: SELinuxLabelShared},
			expectedInArgs: "/host:/container:z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := NewMockCommandRecorder()
			engine := newTestPodmanEngineWithSELinux(t, recorder, tt.selinuxEnabled)

			opts := RunOptions{
				Image:   "debian:stable-slim",
				Volumes: []VolumeMount{tt.volume},
			}

			_, err := engine.Run(ctx, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			recorder.AssertArgsContain(t, tt.expectedInArgs)
		})
	}
}

// TestMakeSELinuxLabelAdder verifies the factory function creates correct formatters.
func TestMakeSELinuxLabelAdder(t *testing.T) {
	t.Parallel()

	t.Run("adds label when SELinux enabled", func(t *testing.T) {
		t.Parallel()

		formatter := makeSELinuxLabelAdder(func() bool { return true })
		result := formatter(VolumeMount{HostPath: "/host", ContainerPath: "/container"})
		if result != "/host:/container:z" {
			t.Errorf("formatter returned %q, want %q", result, "/host:/container:z")
		}
	})

	t.Run("preserves volume when SELinux disabled", func(t *testing.T) {
		t.Parallel()

		formatter := makeSELinuxLabelAdder(func() bool { return false })
		result := formatter(VolumeMount{HostPath: "/host", ContainerPath: "/container"})
		if result != "/host:/container" {
			t.Errorf("formatter returned %q, want %q", result, "/host:/container")
		}
	})

	t.Run("does not override explicit private label", func(t *testing.T) {
		t.Parallel()

		formatter := makeSELinuxLabelAdder(func() bool { return true })
		result := formatter(VolumeMount{HostPath: "/host", ContainerPath: "/container", SELinux: SELinuxLabelPrivate})
		if result != "/host:/container:Z" {
			t.Errorf("formatter returned %q, want %q", result, "/host:/container:Z")
		}
	})

	t.Run("combines read-only with added label", func(t *testing.T) {
		t.Parallel()

		formatter := makeSELinuxLabelAdder(func() bool { return true })
		result := formatter(VolumeMount{HostPath: "/host", ContainerPath: "/container", ReadOnly: true})
		if result != "/host:/container:ro,z" {
			t.Errorf("formatter returned %q, want %q", result, "/host:/container:ro,z")
		}
	})
}
