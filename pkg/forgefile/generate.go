// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// GenerateCUE generates CUE text from a Forgefile struct.
// This is useful for creating forgefile.cue files programmatically,
// such as during project scaffolding.
func GenerateCUE(f *Forgefile) string {
	var sb strings.Builder

	sb.WriteString("// Forgefile - image composition parameters for this project\n")
	sb.WriteString("// See https://github.com/mlforge/mlforge for documentation\n\n")

	fmt.Fprintf(&sb, "owner:   %q\n", f.Owner)
	fmt.Fprintf(&sb, "contact: %q\n", f.Contact)
	fmt.Fprintf(&sb, "project: %q\n", f.Project)

	generateBase(&sb, f.Base)

	if f.Manifest != "" {
		fmt.Fprintf(&sb, "manifest: %q\n", f.Manifest)
	}
	if f.Entrypoint != "" {
		fmt.Fprintf(&sb, "entrypoint: %q\n", f.Entrypoint)
	}

	generateEnv(&sb, f.Env)
	generateLabels(&sb, f.Labels)

	return sb.String()
}

// generateBase generates the base: {...} block. No-op when base is nil or
// entirely zero-valued (the defaults speak for themselves).
func generateBase(sb *strings.Builder, b *BaseImage) {
	if b == nil {
		return
	}
	if b.Registry == "" && b.Image == "" && b.Tag == "" && b.Digest == "" {
		return
	}
	sb.WriteString("\nbase: {\n")
	if b.Registry != "" {
		fmt.Fprintf(sb, "\tregistry: %q\n", b.Registry)
	}
	if b.Image != "" {
		fmt.Fprintf(sb, "\timage: %q\n", b.Image)
	}
	if b.Tag != "" {
		fmt.Fprintf(sb, "\ttag: %q\n", b.Tag)
	}
	if b.Digest != "" {
		fmt.Fprintf(sb, "\tdigest: %q\n", b.Digest)
	}
	sb.WriteString("}\n")
}

// generateEnv generates the env: [...] list preserving declaration order.
func generateEnv(sb *strings.Builder, env []EnvVar) {
	if len(env) == 0 {
		return
	}
	sb.WriteString("\nenv: [\n")
	for _, ev := range env {
		fmt.Fprintf(sb, "\t{name: %q, value: %q},\n", ev.Name, ev.Value)
	}
	sb.WriteString("]\n")
}

// generateLabels generates the labels: {...} block with sorted keys so
// regenerated files diff cleanly.
func generateLabels(sb *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	sb.WriteString("\nlabels: {\n")
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		fmt.Fprintf(sb, "\t%q: %q\n", k, labels[k])
	}
	sb.WriteString("}\n")
}
