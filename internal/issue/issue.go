// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ForgefileNotFoundId
	ForgefileParseErrorId
	ContainerEngineNotFoundId
	BaseImageUnavailableId
	RequirementsNotFoundId
	EntrypointNotFoundId
	EntrypointInvalidId
	BuildFailedId
	DependencyInstallFailedId
	LockDriftId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the mlforge configuration file.

## Configuration file locations:
- Linux: ~/.config/mlforge/config.cue
- macOS: ~/Library/Application Support/mlforge/config.cue
- Windows: %APPDATA%\mlforge\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ mlforge config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/mlforge/config.cue
~~~

## Example configuration:
~~~cue
container_engine: "podman"  // or "docker", "docker-api"

registry: "ghcr.io"

build: {
	install_cache: false
	build_cache:   true
	pin:           false
}
~~~`,
	}

	forgefileNotFoundIssue = &Issue{
		id: ForgefileNotFoundId,
		mdMsg: `
# No forgefile found!

We searched for a forgefile.cue but couldn't find one in the project directory.

## Things you can try:
- Scaffold a new project in the current directory:
~~~
$ mlforge init
~~~

- Or pass the identity parameters directly:
~~~
$ mlforge build --owner acme --contact ml-team@acme.io --project sentiment
~~~

## Example forgefile.cue:
~~~cue
identity: {
	owner:   "acme"
	contact: "ml-team@acme.io"
	project: "sentiment"
}
~~~`,
	}

	forgefileParseErrorIssue = &Issue{
		id: ForgefileParseErrorId,
		mdMsg: `
# Failed to parse forgefile!

Your forgefile.cue contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- Missing required identity fields (owner, contact, project)

## Things you can try:
- Check the error message above for the specific line/column
- Validate without building:
~~~
$ mlforge validate
~~~

## Example of a valid forgefile:
~~~cue
identity: {
	owner:   "acme"
	contact: "ml-team@acme.io"
	project: "sentiment"
}

options: {
	registry: "ghcr.io"
	pin:      true
}
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Building a project image requires a container engine, but none is available.

## Supported container engines:
- **Podman** (recommended for rootless containers)
- **Docker**
- **Docker Engine API** (daemon socket without a CLI)

## Things you can try:
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `
  - Windows: Download from https://podman.io

- Install Docker:
  - https://docs.docker.com/get-docker/

- Configure your preferred engine in ~/.config/mlforge/config.cue:
~~~cue
container_engine: "podman"  // or "docker", "docker-api"
~~~`,
	}

	baseImageUnavailableIssue = &Issue{
		id: BaseImageUnavailableId,
		mdMsg: `
# Base image unavailable!

The shared base image for your owner could not be resolved.

mlforge layers every project on ` + "`<registry>/<owner>/ml-base:latest`" + `,
so that reference must exist and be reachable.

## Things you can try:
- Check the composed reference without building:
~~~
$ mlforge plan
~~~

- Verify the image exists in the registry:
~~~
$ docker pull ghcr.io/<owner>/ml-base:latest
~~~

- Check registry credentials (mlforge uses your keychain via the
  standard Docker credential helpers)
- If your team publishes under a different registry, set it in the
  forgefile or config:
~~~cue
options: registry: "registry.example.com"
~~~`,
	}

	requirementsNotFoundIssue = &Issue{
		id: RequirementsNotFoundId,
		mdMsg: `
# requirements.txt not found!

Every mlforge project installs its Python dependencies from a
requirements.txt in the project context directory.

## Things you can try:
- Create one (an empty file is valid for projects without dependencies):
~~~
$ touch requirements.txt
~~~

- Or scaffold the full project layout:
~~~
$ mlforge init
~~~

- If your manifest lives elsewhere, point the build at the right context:
~~~
$ mlforge build --context path/to/project
~~~`,
	}

	entrypointNotFoundIssue = &Issue{
		id: EntrypointNotFoundId,
		mdMsg: `
# entrypoint.sh not found!

The project image boots through entrypoint.sh, installed as
/usr/local/bin/entrypoint.sh inside the image. Without it there is
nothing to register as the container entrypoint.

## Things you can try:
- Scaffold one:
~~~
$ mlforge init
~~~

## Example entrypoint.sh:
~~~sh
#!/bin/sh
set -e
exec python main.py "$@"
~~~

Run-time arguments are passed through to the script verbatim, so
` + "`mlforge run -- --epochs 10`" + ` reaches the script as ` + "`$1 $2`" + `.`,
	}

	entrypointInvalidIssue = &Issue{
		id: EntrypointInvalidId,
		mdMsg: `
# entrypoint.sh failed validation!

The entrypoint script has a shell syntax error. mlforge parses it before
baking it into the image, because a broken entrypoint makes every
container exit immediately.

## Things you can try:
- Check the error message above for the specific line/column
- Validate without building:
~~~
$ mlforge validate
~~~

- Test the script locally:
~~~
$ sh -n entrypoint.sh
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Image build failed!

The container engine reported an error while building the project image.
Nothing was tagged: a failed build leaves no partial image behind.

## Common causes:
- Base image pull failure (network, credentials)
- Dependency installation failure (see below)
- Engine storage issues

## Things you can try:
- Re-run with the full build log:
~~~
$ mlforge build --verbose
~~~

- Check the engine works at all:
~~~
$ docker run --rm hello-world
~~~

- Inspect the plan that was submitted:
~~~
$ mlforge plan
~~~`,
	}

	dependencyInstallFailedIssue = &Issue{
		id: DependencyInstallFailedId,
		mdMsg: `
# Dependency installation failed!

pip could not install the packages listed in requirements.txt. The build
was aborted and no image was tagged.

## Common causes:
- Typo in a package name or version specifier
- Package requires system libraries missing from the base image
- Network failure reaching the package index

## Things you can try:
- Test the manifest against the base image directly:
~~~
$ docker run --rm -v $PWD:/w -w /w ghcr.io/<owner>/ml-base:latest \
    pip install --no-cache-dir -r requirements.txt
~~~

- Pin versions that resolve correctly
- If your index is flaky, retry; transient network errors are the most
  common cause`,
	}

	lockDriftIssue = &Issue{
		id: LockDriftId,
		mdMsg: `
# Lock file drift detected!

forgefile.lock records a pinned digest for the base image, but the
registry's current digest for the floating tag no longer matches.

This is expected whenever the base image is republished. Pinned builds
keep using the recorded digest until you re-pin.

## Things you can try:
- Accept the new base image and update the lock:
~~~
$ mlforge pin
~~~

- Or build against the recorded digest as-is (the default for pinned
  projects):
~~~
$ mlforge build
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- Trying to write to a protected directory
- Container engine requires elevated permissions
- Staging directory is not writable

## Things you can try:
- Check file/directory permissions
- For containers, ensure you're in the docker/podman group:
~~~
$ sudo usermod -aG docker $USER
~~~

- Use rootless containers with Podman
- Run mlforge from a directory you own`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		forgefileNotFoundIssue.Id():       forgefileNotFoundIssue,
		forgefileParseErrorIssue.Id():     forgefileParseErrorIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		baseImageUnavailableIssue.Id():    baseImageUnavailableIssue,
		requirementsNotFoundIssue.Id():    requirementsNotFoundIssue,
		entrypointNotFoundIssue.Id():      entrypointNotFoundIssue,
		entrypointInvalidIssue.Id():       entrypointInvalidIssue,
		buildFailedIssue.Id():             buildFailedIssue,
		dependencyInstallFailedIssue.Id(): dependencyInstallFailedIssue,
		lockDriftIssue.Id():               lockDriftIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
