// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStageEntrypoint(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	stagingDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "my-entry.sh")
	if err := os.WriteFile(srcPath, []byte(validEntrypointScript), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	staged, err := StageEntrypoint(srcPath, stagingDir)
	if err != nil {
		t.Fatalf("StageEntrypoint() returned unexpected error: %v", err)
	}

	// The staged copy always takes the fixed name, regardless of the
	// source file's own name.
	if want := filepath.Join(stagingDir, StagedEntrypointName); staged != want {
		t.Errorf("StageEntrypoint() path = %q, want %q", staged, want)
	}

	content, err := os.ReadFile(staged)
	if err != nil {
		t.Fatalf("failed to read staged script: %v", err)
	}
	if string(content) != validEntrypointScript {
		t.Errorf("staged content differs from source:\ngot:  %q\nwant: %q", content, validEntrypointScript)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(staged)
		if err != nil {
			t.Fatalf("failed to stat staged script: %v", err)
		}
		if got := info.Mode().Perm(); got != EntrypointFileMode {
			t.Errorf("staged mode = %04o, want %04o", got, EntrypointFileMode)
		}
	}
}

func TestStageEntrypoint_MissingSource(t *testing.T) {
	t.Parallel()

	srcPath := filepath.Join(t.TempDir(), "entrypoint.sh")
	stagingDir := t.TempDir()

	_, err := StageEntrypoint(srcPath, stagingDir)
	if err == nil {
		t.Fatal("StageEntrypoint() should fail for a missing source")
	}
	if !errors.Is(err, ErrEntrypointNotFound) {
		t.Errorf("StageEntrypoint() error = %v, want ErrEntrypointNotFound", err)
	}

	var notFound *EntrypointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("StageEntrypoint() error type = %T, want *EntrypointNotFoundError", err)
	}
	if notFound.Path != srcPath {
		t.Errorf("EntrypointNotFoundError.Path = %q, want %q", notFound.Path, srcPath)
	}
}

func TestStageEntrypoint_SyntaxErrorStagesNothing(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	stagingDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "entrypoint.sh")
	if err := os.WriteFile(srcPath, []byte("#!/bin/sh\nif true; then\n"), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	_, err := StageEntrypoint(srcPath, stagingDir)
	if !errors.Is(err, ErrScriptSyntax) {
		t.Fatalf("StageEntrypoint() error = %v, want ErrScriptSyntax", err)
	}

	// Validation happens before placement, so the staging dir stays empty.
	entries, readErr := os.ReadDir(stagingDir)
	if readErr != nil {
		t.Fatalf("failed to read staging dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir holds %d entries after a rejected script, want 0", len(entries))
	}
}
