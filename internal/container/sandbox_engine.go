// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mlforge/mlforge/pkg/platform"
	"github.com/mlforge/mlforge/pkg/types"
)

// SandboxAwareEngine wraps a CLI container Engine to handle execution from
// within application sandboxes (Flatpak, Snap).
//
// Inside a sandbox, container engines like Docker and Podman run on the host
// system, not inside the sandbox. The sandbox has its own filesystem
// namespace, so volume mount paths like /tmp inside the sandbox do not
// correspond to /tmp on the host. This wrapper executes container commands
// via the sandbox's host spawn mechanism (flatpak-spawn --host and
// equivalents), so the whole command runs on the host where paths resolve
// correctly.
//
// Outside a sandbox, and for engines that do not shell out, the wrapper
// passes through to the underlying engine without modification.
type SandboxAwareEngine struct {
	wrapped     Engine
	sandboxType platform.SandboxType
}

// NewSandboxAwareEngine wraps an Engine with sandbox awareness. The engine
// is returned unwrapped when not running in a sandbox, and also when it is
// not CLI-based: spawning on the host only makes sense for engines that
// build an argv.
func NewSandboxAwareEngine(engine Engine) Engine {
	sandboxType := platform.DetectSandbox()
	if sandboxType == platform.SandboxNone {
		return engine
	}
	if _, ok := engine.(BaseCLIProvider); !ok {
		return engine
	}
	return &SandboxAwareEngine{
		wrapped:     engine,
		sandboxType: sandboxType,
	}
}

// newSandboxAwareEngineForTesting creates a SandboxAwareEngine with a
// specific sandbox type, bypassing detection.
func newSandboxAwareEngineForTesting(engine Engine, sandboxType platform.SandboxType) *SandboxAwareEngine {
	return &SandboxAwareEngine{
		wrapped:     engine,
		sandboxType: sandboxType,
	}
}

// Name returns the wrapped engine name.
func (e *SandboxAwareEngine) Name() string {
	return e.wrapped.Name()
}

// Available checks if the wrapped engine is available. The spawn command
// overhead does not affect availability status.
func (e *SandboxAwareEngine) Available() bool {
	return e.wrapped.Available()
}

// Version returns the wrapped engine version.
func (e *SandboxAwareEngine) Version(ctx context.Context) (string, error) {
	return e.wrapped.Version(ctx)
}

// BinaryPath returns the path to the container engine binary.
func (e *SandboxAwareEngine) BinaryPath() string {
	return e.wrapped.BinaryPath()
}

// BuildRunArgs builds the argument slice for a 'run' command, with the spawn
// command and its arguments prepended when in a sandbox.
func (e *SandboxAwareEngine) BuildRunArgs(opts RunOptions) []string {
	baseArgs := e.wrapped.BuildRunArgs(opts)
	return e.wrapArgs(baseArgs)
}

// Build builds an image from a staged build context. In sandbox mode the
// build command is executed via the host spawn mechanism.
func (e *SandboxAwareEngine) Build(ctx context.Context, opts BuildOptions) error {
	base := e.baseCLI()
	if e.sandboxType == platform.SandboxNone || base == nil {
		return e.wrapped.Build(ctx, opts)
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	buildArgs := base.BuildArgs(opts)
	fullArgs := e.buildSpawnArgs(e.wrapped.BinaryPath(), buildArgs)

	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	e.CustomizeCmd(cmd)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.wrapped.Name(), opts, err)
	}

	return nil
}

// Run runs a command in a container. In sandbox mode the run command is
// executed via the host spawn mechanism.
func (e *SandboxAwareEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if e.sandboxType == platform.SandboxNone {
		return e.wrapped.Run(ctx, opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	baseArgs := e.wrapped.BuildRunArgs(opts)
	fullArgs := e.buildSpawnArgs(e.wrapped.BinaryPath(), baseArgs)

	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	e.CustomizeCmd(cmd)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = types.ExitCode(exitErr.ExitCode())
		} else {
			result.ExitCode = 1
			result.Error = runContainerError(e.wrapped.Name(), opts, err)
		}
	}

	return result, nil
}

// ImageExists checks if an image exists in the host's local storage.
func (e *SandboxAwareEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	if e.sandboxType == platform.SandboxNone {
		return e.wrapped.ImageExists(ctx, image)
	}

	// Podman has a dedicated existence subcommand; Docker answers via inspect.
	var checkArgs []string
	if e.wrapped.Name() == string(EngineTypePodman) {
		checkArgs = []string{"image", "exists", string(image)}
	} else {
		checkArgs = []string{"image", "inspect", string(image)}
	}

	fullArgs := e.buildSpawnArgs(e.wrapped.BinaryPath(), checkArgs)
	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	e.CustomizeCmd(cmd)
	err := cmd.Run()
	return err == nil, nil
}

// RemoveImage removes an image from the host's local storage.
func (e *SandboxAwareEngine) RemoveImage(ctx context.Context, image ImageTag, force bool) error {
	base := e.baseCLI()
	if e.sandboxType == platform.SandboxNone || base == nil {
		return e.wrapped.RemoveImage(ctx, image, force)
	}

	removeArgs := base.RemoveImageArgs(image, force)
	fullArgs := e.buildSpawnArgs(e.wrapped.BinaryPath(), removeArgs)

	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	e.CustomizeCmd(cmd)
	return cmd.Run()
}

// InspectImage returns the engine's JSON description of an image.
func (e *SandboxAwareEngine) InspectImage(ctx context.Context, image ImageTag) (string, error) {
	if e.sandboxType == platform.SandboxNone {
		return e.wrapped.InspectImage(ctx, image)
	}

	fullArgs := e.buildSpawnArgs(e.wrapped.BinaryPath(), []string{"image", "inspect", string(image)})
	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	e.CustomizeCmd(cmd)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", fullArgs[0], fullArgs[1:], err)
	}
	return string(out), nil
}

// CustomizeCmd applies the wrapped engine's env overrides to a command
// created outside the wrapped engine's CreateCommand method.
func (e *SandboxAwareEngine) CustomizeCmd(cmd *exec.Cmd) {
	if c, ok := e.wrapped.(CmdCustomizer); ok {
		c.CustomizeCmd(cmd)
	}
}

// Close forwards to the wrapped engine's Close method if it implements
// EngineCloser. Returns nil otherwise.
func (e *SandboxAwareEngine) Close() error {
	if c, ok := e.wrapped.(EngineCloser); ok {
		return c.Close()
	}
	return nil
}

// SysctlOverrideActive forwards to the wrapped engine's SysctlOverrideChecker
// if it implements the interface, and reports false otherwise.
func (e *SandboxAwareEngine) SysctlOverrideActive() bool {
	if checker, ok := e.wrapped.(SysctlOverrideChecker); ok {
		return checker.SysctlOverrideActive()
	}
	return false
}

// buildSpawnArgs constructs the full argument list for spawning a command on
// the host:
//
//	Flatpak: ["flatpak-spawn", "--host", <binary>, <args...>]
//	Snap:    ["snap", "run", "--shell", <binary>, <args...>]
func (e *SandboxAwareEngine) buildSpawnArgs(binary string, args []string) []string {
	spawnCmd, spawnArgs := e.getSpawnInfo()

	result := make([]string, 0, 1+len(spawnArgs)+1+len(args))
	result = append(result, spawnCmd)
	result = append(result, spawnArgs...)
	result = append(result, binary)
	result = append(result, args...)

	return result
}

// getSpawnInfo returns the spawn command and arguments for the engine's
// stored sandbox type. Using the stored type rather than global detection
// lets tests override the sandbox type.
func (e *SandboxAwareEngine) getSpawnInfo() (cmd string, args []string) {
	return platform.SpawnCommandFor(e.sandboxType), platform.SpawnArgsFor(e.sandboxType)
}

// wrapArgs prepends the spawn command to existing args when in a sandbox.
func (e *SandboxAwareEngine) wrapArgs(args []string) []string {
	if e.sandboxType == platform.SandboxNone {
		return args
	}
	return e.buildSpawnArgs(e.wrapped.BinaryPath(), args)
}

// baseCLI extracts the CLI machinery from the wrapped engine, or nil when
// the engine does not shell out.
func (e *SandboxAwareEngine) baseCLI() *BaseCLIEngine {
	if p, ok := e.wrapped.(BaseCLIProvider); ok {
		return p.BaseCLI()
	}
	return nil
}
