// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// podmanBinaryNames lists the binaries probed for, in preference order.
// Immutable distros (Fedora Silverblue, toolbox environments) often ship
// only podman-remote, which talks to the host service over a socket.
var podmanBinaryNames = []string{"podman", "podman-remote"}

// findPodmanBinary returns the path of the first podman binary found on
// PATH, or "" when none is installed.
func findPodmanBinary() string {
	for _, name := range podmanBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// PodmanEngine implements the Engine interface using the Podman CLI.
// Podman-specific run semantics (SELinux volume labels, rootless UID
// mapping, the default_sysctls override) are injected as BaseCLIEngine
// options by the constructor; the rest is shared CLI machinery.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine. On hosts where SELinux is
// present, volume mounts without an explicit label get the shared :z label.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	return NewPodmanEngineWithSELinuxCheck(isSELinuxPresent, opts...)
}

// NewPodmanEngineWithSELinuxCheck creates a Podman engine with a custom
// SELinux detection function. Tests inject a deterministic check here.
func NewPodmanEngineWithSELinuxCheck(selinuxCheck SELinuxCheckFunc, opts ...BaseCLIEngineOption) *PodmanEngine {
	path := findPodmanBinary()

	allOpts := []BaseCLIEngineOption{
		WithName("podman"),
		WithVolumeFormatter(makeSELinuxLabelAdder(selinuxCheck)),
		WithRunArgsTransformer(makeUsernsKeepIDAdder()),
	}
	allOpts = append(allOpts, sysctlOverrideOpts(path)...)
	allOpts = append(allOpts, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(HostFilesystemPath(path), allOpts...),
	}
}

// Available checks that a podman binary exists and answers a version query.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists in local storage. Podman has a
// dedicated existence subcommand whose exit status is the answer, so a
// non-zero exit means absent rather than a failed check.
func (e *PodmanEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", string(image))
	return err == nil, nil
}

// isSELinuxPresent reports whether the SELinux filesystem is mounted.
// Volume labels are needed whenever SELinux is present, even in permissive
// or disabled-at-runtime mode, so this checks presence rather than reading
// the enforce status.
func isSELinuxPresent() bool {
	_, err := os.Stat("/sys/fs/selinux")
	return err == nil
}

// makeSELinuxLabelAdder returns a volume formatter that applies the shared
// :z label to mounts carrying no explicit SELinux label when the check
// reports SELinux present. Explicit labels (z or Z) pass through untouched.
func makeSELinuxLabelAdder(check SELinuxCheckFunc) VolumeFormatFunc {
	return func(volume VolumeMount) string {
		if check() && volume.SELinux == SELinuxLabelNone {
			volume.SELinux = SELinuxLabelShared
		}
		return FormatVolumeMount(volume)
	}
}

// makeUsernsKeepIDAdder returns a run-args transformer that inserts
// --userns=keep-id immediately before the image reference. Rootless Podman
// maps the invoking user to root inside the container by default; keep-id
// preserves the host UID so files written to bind mounts keep their owner.
func makeUsernsKeepIDAdder() RunArgsTransformer {
	// Flags that consume the following argument. Their values must not be
	// mistaken for the image reference.
	valueFlags := map[string]bool{
		"--name":     true,
		"-w":         true,
		"-e":         true,
		"-v":         true,
		"-p":         true,
		"--add-host": true,
	}

	return func(args []string) []string {
		if len(args) == 0 || args[0] != "run" {
			return args
		}
		for i := 1; i < len(args); i++ {
			arg := args[i]
			if valueFlags[arg] {
				i++
				continue
			}
			if strings.HasPrefix(arg, "-") {
				continue
			}
			// First bare argument after the flags is the image reference.
			result := make([]string, 0, len(args)+1)
			result = append(result, args[:i]...)
			result = append(result, "--userns=keep-id")
			result = append(result, args[i:]...)
			return result
		}
		return args
	}
}
