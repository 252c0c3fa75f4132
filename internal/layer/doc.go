// SPDX-License-Identifier: MPL-2.0

// Package layer models an image composition as an ordered pipeline of pure
// steps appending to an arena of layers.
//
// Each step inspects the current Snapshot and returns the layers it
// contributes; it never performs I/O and never mutates shared state. The
// Pipeline validates phase ordering at construction time, so a
// mis-sequenced composition fails before anything is rendered, and a step
// failure discards the snapshot entirely: no partial image state survives
// a failed run.
//
// The phase progression is fixed: a snapshot advances from the initial
// phase through base resolution, workspace establishment, dependency
// installation, and entrypoint registration, and only a pipeline that
// completes every phase yields a renderable snapshot.
package layer
