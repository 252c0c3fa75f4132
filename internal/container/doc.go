// SPDX-License-Identifier: MPL-2.0

// Package container provides a unified abstraction layer for container
// engines (Docker, Podman, and the Docker Engine API).
//
// The Engine interface defines the core operations: Build, Run,
// ImageExists, RemoveImage, and InspectImage. DockerEngine and PodmanEngine
// embed BaseCLIEngine for shared CLI argument construction and command
// execution; APIEngine talks to the Docker daemon directly and serves hosts
// with a reachable socket but no CLI.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the
// preferred engine is unavailable, or AutoDetectEngine() for preference-less
// detection (Podman is tried first, then Docker, then the daemon API).
//
// SandboxAwareEngine wraps a CLI engine so that commands issued from inside
// Flatpak or Snap sandboxes are spawned on the host, where volume mount
// paths resolve correctly.
//
// IMPORTANT: Only Linux containers are supported. Alpine-based images are
// not supported due to musl compatibility issues, and Windows container
// images are not supported. Use debian:stable-slim as the reference
// container image in tests and examples.
package container
