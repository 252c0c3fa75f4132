// SPDX-License-Identifier: MPL-2.0

// Package registry talks to container registries about base images.
//
// A floating base reference (ghcr.io/<owner>/ml-base:latest) deliberately
// tracks whatever the registry currently serves. Pinning trades that
// freshness for reproducibility: the Resolver asks the registry for the
// manifest digest behind the tag, and the Lock records it next to the
// forgefile so later builds can use the immutable @digest form until the
// next explicit pin.
//
// Resolution authenticates through the local credential helpers (docker
// login and friends) and retries transient registry failures; builds
// themselves never come through here.
package registry
