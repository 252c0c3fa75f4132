// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlforge/mlforge/pkg/types"
)

const validForgefile = `
owner: "acme"
contact: "ml-team@acme.dev"
project: "sentiment"
`

func TestParseBytes_Minimal(t *testing.T) {
	t.Parallel()

	f, err := ParseBytes([]byte(validForgefile), "forgefile.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if f.Owner != "acme" {
		t.Errorf("Owner = %q, want %q", f.Owner, "acme")
	}
	if f.Contact != "ml-team@acme.dev" {
		t.Errorf("Contact = %q, want %q", f.Contact, "ml-team@acme.dev")
	}
	if f.Project != "sentiment" {
		t.Errorf("Project = %q, want %q", f.Project, "sentiment")
	}
	if f.FilePath != "forgefile.cue" {
		t.Errorf("FilePath = %q, want %q", f.FilePath, "forgefile.cue")
	}
}

func TestParseBytes_Full(t *testing.T) {
	t.Parallel()

	content := `
owner: "acme-labs"
contact: "ML Platform Team <ml@acme.dev>"
project: "bert-finetune"

base: {
	registry: "registry.acme.dev:5000"
	image: "ml-base"
	tag: "cuda12"
}

manifest: "deps/requirements.txt"
entrypoint: "scripts/train.sh"

env: [
	{name: "PYTHONUNBUFFERED", value: "1"},
	{name: "HF_HOME", value: "/workspace/.cache/huggingface"},
]

labels: {
	"dev.acme.team": "nlp"
}
`
	f, err := ParseBytes([]byte(content), "forgefile.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if f.Base == nil {
		t.Fatal("Base is nil")
	}
	if f.Base.Registry != "registry.acme.dev:5000" {
		t.Errorf("Base.Registry = %q", f.Base.Registry)
	}
	if f.Base.Tag != "cuda12" {
		t.Errorf("Base.Tag = %q", f.Base.Tag)
	}
	if f.Manifest != "deps/requirements.txt" {
		t.Errorf("Manifest = %q", f.Manifest)
	}
	if f.Entrypoint != "scripts/train.sh" {
		t.Errorf("Entrypoint = %q", f.Entrypoint)
	}
	if len(f.Env) != 2 {
		t.Fatalf("len(Env) = %d, want 2", len(f.Env))
	}
	if f.Env[0].Name != "PYTHONUNBUFFERED" || f.Env[0].Value != "1" {
		t.Errorf("Env[0] = %+v", f.Env[0])
	}
	if f.Labels["dev.acme.team"] != "nlp" {
		t.Errorf("Labels = %v", f.Labels)
	}
}

func TestParseBytes_MissingIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"missing owner", `contact: "a@b.c"` + "\n" + `project: "p"`},
		{"missing contact", `owner: "acme"` + "\n" + `project: "p"`},
		{"missing project", `owner: "acme"` + "\n" + `contact: "a@b.c"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseBytes([]byte(tt.content), "forgefile.cue")
			if err == nil {
				t.Error("ParseBytes() should reject forgefile with missing identity parameter")
			}
		})
	}
}

func TestParseBytes_SchemaRejectsUnknownField(t *testing.T) {
	t.Parallel()

	content := validForgefile + `
flavor: "extra"
`
	_, err := ParseBytes([]byte(content), "forgefile.cue")
	if err == nil {
		t.Fatal("ParseBytes() should reject unknown fields")
	}
	if !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("error should mention the closed schema, got: %v", err)
	}
}

func TestParseBytes_SchemaRejectsBadOwner(t *testing.T) {
	t.Parallel()

	content := `
owner: "Not A Namespace"
contact: "a@b.c"
project: "p"
`
	_, err := ParseBytes([]byte(content), "forgefile.cue")
	if err == nil {
		t.Error("ParseBytes() should reject invalid owner")
	}
}

func TestParseBytes_SchemaRejectsBadDigest(t *testing.T) {
	t.Parallel()

	content := validForgefile + `
base: {
	digest: "sha256:tooshort"
}
`
	_, err := ParseBytes([]byte(content), "forgefile.cue")
	if err == nil {
		t.Error("ParseBytes() should reject malformed digest")
	}
}

func TestParseBytes_GoValidationCatchesReservedLabel(t *testing.T) {
	t.Parallel()

	// The CUE schema admits arbitrary string keys; the reserved-key check
	// is Go-side.
	content := validForgefile + `
labels: {
	"org.opencontainers.image.authors": "impostor"
}
`
	_, err := ParseBytes([]byte(content), "forgefile.cue")
	if err == nil {
		t.Fatal("ParseBytes() should reject reserved label keys")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error should be ValidationErrors, got %T: %v", err, err)
	}
	if !verrs.HasErrors() {
		t.Error("expected error-level validation issues")
	}
}

func TestParse_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)
	if err := os.WriteFile(path, []byte(validForgefile), 0o644); err != nil {
		t.Fatalf("writing forgefile: %v", err)
	}

	f, err := Parse(types.FilesystemPath(path))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Owner != "acme" {
		t.Errorf("Owner = %q", f.Owner)
	}
	if string(f.Dir()) != dir {
		t.Errorf("Dir() = %q, want %q", f.Dir(), dir)
	}
}

func TestParse_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Parse(types.FilesystemPath(filepath.Join(t.TempDir(), "missing.cue")))
	if err == nil {
		t.Error("Parse() should fail for missing file")
	}
}

func TestEffectiveDefaults(t *testing.T) {
	t.Parallel()

	f := &Forgefile{Owner: "acme", Contact: "a@b.c", Project: "p"}

	base := f.EffectiveBase()
	if base.Registry != DefaultRegistry {
		t.Errorf("EffectiveBase().Registry = %q, want %q", base.Registry, DefaultRegistry)
	}
	if base.Image != DefaultImage {
		t.Errorf("EffectiveBase().Image = %q, want %q", base.Image, DefaultImage)
	}
	if base.Tag != DefaultTag {
		t.Errorf("EffectiveBase().Tag = %q, want %q", base.Tag, DefaultTag)
	}
	if base.Digest != "" {
		t.Errorf("EffectiveBase().Digest = %q, want empty", base.Digest)
	}

	if f.EffectiveManifest() != DefaultManifest {
		t.Errorf("EffectiveManifest() = %q, want %q", f.EffectiveManifest(), DefaultManifest)
	}
	if f.EffectiveEntrypoint() != DefaultEntrypoint {
		t.Errorf("EffectiveEntrypoint() = %q, want %q", f.EffectiveEntrypoint(), DefaultEntrypoint)
	}
}

func TestEffectiveBase_PartialOverride(t *testing.T) {
	t.Parallel()

	f := &Forgefile{
		Owner: "acme", Contact: "a@b.c", Project: "p",
		Base: &BaseImage{Tag: "cuda12"},
	}

	base := f.EffectiveBase()
	if base.Registry != DefaultRegistry {
		t.Errorf("Registry = %q, want default", base.Registry)
	}
	if base.Tag != "cuda12" {
		t.Errorf("Tag = %q, want %q", base.Tag, "cuda12")
	}
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	f := &Forgefile{Owner: "acme", Contact: "a@b.c", Project: "p"}
	id := f.Identity()
	if id.Owner != "acme" || id.Contact != "a@b.c" || id.Project != "p" {
		t.Errorf("Identity() = %+v", id)
	}
	if err := id.Validate(); err != nil {
		t.Errorf("Identity().Validate() = %v", err)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	forgefilePath := filepath.Join(root, "a", DefaultName)
	if err := os.WriteFile(forgefilePath, []byte(validForgefile), 0o644); err != nil {
		t.Fatalf("writing forgefile: %v", err)
	}

	found, err := Find(types.FilesystemPath(nested))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if string(found) != forgefilePath {
		t.Errorf("Find() = %q, want %q", found, forgefilePath)
	}
}

func TestFind_NotFound(t *testing.T) {
	t.Parallel()

	_, err := Find(types.FilesystemPath(t.TempDir()))
	if err == nil {
		t.Fatal("Find() should fail when no forgefile exists")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error should wrap ErrNotFound, got: %v", err)
	}
}
