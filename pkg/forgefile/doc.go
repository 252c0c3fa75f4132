// SPDX-License-Identifier: MPL-2.0

// Package forgefile defines the schema and parsing for forgefile CUE files.
//
// A forgefile declares everything a project needs to compose its training
// image: the identity parameters (owner, contact, project), the base image
// selection (registry, tag, or a pinned digest), the dependency manifest,
// the entrypoint script, and optional environment variables and labels
// baked into the image.
//
// Parsing goes through the shared cueschema package: the embedded CUE
// schema catches shape errors, then Go-side validators catch everything
// CUE cannot express (path traversal, file existence, reserved labels).
package forgefile
