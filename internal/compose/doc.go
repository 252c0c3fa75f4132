// SPDX-License-Identifier: MPL-2.0

// Package compose turns an identity into a project image.
//
// The three identity parameters expand deterministically: the owner fixes
// the base image reference (ghcr.io/<owner>/ml-base:latest, or a pinned
// digest form), the project fixes the workspace directory
// (/workspace/<project>), and the contact becomes image metadata. The
// expansion is assembled as an ordered pipeline of pure steps over an
// append-only layer arena, so the non-commutative parts of image
// construction (workspace before dependency install, placement before
// execute bit before entrypoint registration) are enforced structurally
// rather than by convention.
//
//	cfg := compose.NewConfig(id, compose.WithContextDir(projectDir))
//	composer := compose.NewComposer(engine, cfg)
//	result, err := composer.Build(ctx)
//
// A failed composition commits nothing: the staged build context is
// removed, no image is tagged, and builds are never retried.
package compose
