// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	cerrdefs "github.com/containerd/errdefs"
	apitypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/mlforge/mlforge/pkg/types"
)

type (
	// dockerAPIClient is the subset of the Docker client used by APIEngine.
	// *client.Client satisfies it; tests substitute a fake.
	dockerAPIClient interface {
		Ping(ctx context.Context) (apitypes.Ping, error)
		ServerVersion(ctx context.Context) (apitypes.Version, error)
		ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
		ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
		ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
		ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
		ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
		ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
		ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
		ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
		Close() error
	}

	// APIEngine implements the Engine interface against the Docker Engine API,
	// for hosts where the daemon socket is reachable but no docker/podman CLI
	// is installed (minimal CI images, dev containers with a mounted socket).
	APIEngine struct {
		client dockerAPIClient
	}
)

// NewAPIEngine creates an engine that talks to the Docker daemon directly
// over its API socket, honoring DOCKER_HOST and the other standard client
// env vars. Construction never fails; when no client can be built the
// engine simply reports itself unavailable.
func NewAPIEngine() *APIEngine {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return &APIEngine{}
	}
	return &APIEngine{client: cli}
}

// newAPIEngineWithClient wires a custom client, used by tests.
func newAPIEngineWithClient(c dockerAPIClient) *APIEngine {
	return &APIEngine{client: c}
}

// Name returns the engine name.
func (e *APIEngine) Name() string {
	return string(EngineTypeAPI)
}

// Available reports whether the daemon answers a ping.
func (e *APIEngine) Available() bool {
	if e.client == nil {
		return false
	}
	_, err := e.client.Ping(context.Background())
	return err == nil
}

// BinaryPath returns "" since this engine does not shell out.
func (e *APIEngine) BinaryPath() string {
	return ""
}

// Version returns the Docker daemon version.
func (e *APIEngine) Version(ctx context.Context) (string, error) {
	v, err := e.client.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get docker server version: %w", err)
	}
	return v.Version, nil
}

// Build tars the context directory, submits it to the daemon, and streams
// the build output. Build failures arrive on the response stream as JSON
// error messages rather than on the initial call.
func (e *APIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	buildCtx, err := archive.TarWithOptions(string(opts.ContextDir), &archive.TarOptions{})
	if err != nil {
		return buildContainerError(e.Name(), opts, fmt.Errorf("create build context: %w", err))
	}
	defer buildCtx.Close()

	// The Dockerfile option names a path inside the tar. An absolute path
	// refers to a file already staged into the context directory.
	dockerfile := string(opts.Dockerfile)
	switch {
	case dockerfile == "":
		dockerfile = "Dockerfile"
	case filepath.IsAbs(dockerfile):
		dockerfile = filepath.Base(dockerfile)
	}

	var buildArgs map[string]*string
	if len(opts.BuildArgs) > 0 {
		buildArgs = make(map[string]*string, len(opts.BuildArgs))
		for k, v := range opts.BuildArgs {
			buildArgs[k] = &v
		}
	}

	var tags []string
	if opts.Tag != "" {
		tags = []string{string(opts.Tag)}
	}

	resp, err := e.client.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       tags,
		Dockerfile: dockerfile,
		BuildArgs:  buildArgs,
		NoCache:    opts.NoCache,
		Remove:     true,
	})
	if err != nil {
		return buildContainerError(e.Name(), opts, err)
	}
	defer resp.Body.Close()

	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return buildContainerError(e.Name(), opts, err)
	}
	return nil
}

// Run creates a container, waits for it to exit, and copies its output.
// The container's exit status is reported in the result, matching the CLI
// engines; failures to create or start the container are reported through
// RunResult.Error.
func (e *APIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Interactive || opts.TTY || opts.Stdin != nil {
		return nil, fmt.Errorf("docker api engine does not support interactive sessions; use the docker or podman CLI")
	}

	config, hostConfig := e.containerConfigs(opts)

	result := &RunResult{}
	created, err := e.client.ContainerCreate(ctx, config, hostConfig, nil, nil, string(opts.Name))
	if err != nil {
		result.ExitCode = 1
		result.Error = runContainerError(e.Name(), opts, err)
		return result, nil
	}
	result.ContainerID = ContainerID(created.ID)

	if opts.Remove {
		// Removal is explicit rather than AutoRemove so the logs stay
		// readable after the wait completes.
		defer func() {
			_ = e.client.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
		}()
	}

	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		result.ExitCode = 1
		result.Error = runContainerError(e.Name(), opts, err)
		return result, nil
	}

	statusCh, errCh := e.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		result.ExitCode = 1
		result.Error = runContainerError(e.Name(), opts, err)
		return result, nil
	case status := <-statusCh:
		result.ExitCode = types.ExitCode(status.StatusCode)
		if status.Error != nil {
			result.Error = runContainerError(e.Name(), opts, fmt.Errorf("wait: %s", status.Error.Message))
		}
	}

	e.copyLogs(ctx, created.ID, opts)

	return result, nil
}

// containerConfigs translates RunOptions into the daemon's create payload.
func (e *APIEngine) containerConfigs(opts RunOptions) (*container.Config, *container.HostConfig) {
	config := &container.Config{
		Image: string(opts.Image),
		Cmd:   opts.Command,
	}
	if opts.WorkDir != "" {
		config.WorkingDir = string(opts.WorkDir)
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		config.Env = append(config.Env, k+"="+opts.Env[k])
	}

	hostConfig := &container.HostConfig{}
	for _, v := range opts.Volumes {
		hostConfig.Binds = append(hostConfig.Binds, FormatVolumeMount(v))
	}
	for _, h := range opts.ExtraHosts {
		hostConfig.ExtraHosts = append(hostConfig.ExtraHosts, string(h))
	}

	if len(opts.Ports) > 0 {
		config.ExposedPorts = make(nat.PortSet, len(opts.Ports))
		hostConfig.PortBindings = make(nat.PortMap, len(opts.Ports))
		for _, p := range opts.Ports {
			proto := p.Protocol
			if proto == "" {
				proto = PortProtocolTCP
			}
			port := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			config.ExposedPorts[port] = struct{}{}
			hostConfig.PortBindings[port] = []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: strconv.Itoa(int(p.HostPort)),
			}}
		}
	}

	return config, hostConfig
}

// copyLogs copies the exited container's output to the configured writers.
// Output delivery is best effort; the exit code has already been captured.
func (e *APIEngine) copyLogs(ctx context.Context, id string, opts RunOptions) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	rc, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return
	}
	defer rc.Close()
	_, _ = stdcopy.StdCopy(stdout, stderr, rc)
}

// BuildRunArgs returns nil; this engine does not construct a CLI argv.
func (e *APIEngine) BuildRunArgs(_ RunOptions) []string {
	return nil
}

// ImageExists reports whether an image is present in the daemon's store.
func (e *APIEngine) ImageExists(ctx context.Context, img ImageTag) (bool, error) {
	_, err := e.client.ImageInspect(ctx, string(img))
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w", img, err)
	}
	return true, nil
}

// RemoveImage removes an image from the daemon's store.
func (e *APIEngine) RemoveImage(ctx context.Context, img ImageTag, force bool) error {
	_, err := e.client.ImageRemove(ctx, string(img), image.RemoveOptions{Force: force})
	if err != nil {
		return fmt.Errorf("failed to remove image %s: %w", img, err)
	}
	return nil
}

// InspectImage returns the daemon's description of an image as JSON.
func (e *APIEngine) InspectImage(ctx context.Context, img ImageTag) (string, error) {
	resp, err := e.client.ImageInspect(ctx, string(img))
	if err != nil {
		return "", fmt.Errorf("failed to inspect image %s: %w", img, err)
	}
	data, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to render image inspect output: %w", err)
	}
	return string(data), nil
}

// Close releases the daemon connection.
func (e *APIEngine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
