// SPDX-License-Identifier: MPL-2.0

// Package boot owns the container's process-entry contract.
//
// At build time it contributes the entrypoint steps of the composition
// pipeline: place the bootstrap script at a well-known path on the image's
// search path, grant it execute permission strictly after placement, and
// register it as the image entrypoint in exec form with no baked-in
// arguments. Scripts are syntax-checked before staging, so a broken
// bootstrap fails the build rather than the first container start.
//
// At run time the Dispatcher starts the composed image, passing caller
// arguments through to the bootstrap script verbatim and surfacing the
// script's exit status as the container's exit code:
//
//	dispatcher := boot.NewDispatcher(engine)
//	code, err := dispatcher.Run(ctx, image, []string{"--mode", "worker"})
//
// Transient engine failures (rootless Podman races, OCI runtime flakes)
// are retried with backoff; script failures are never retried.
package boot
