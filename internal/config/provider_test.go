// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"testing"

	"github.com/mlforge/mlforge/internal/container"
	"github.com/mlforge/mlforge/internal/issue"
)

func TestProvider_Load(t *testing.T) {
	dir := isolateConfig(t)
	writeConfigFile(t, dir, `container_engine: "podman"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ContainerEngine != container.EngineTypePodman {
		t.Errorf("container engine = %s, want podman", cfg.ContainerEngine)
	}
}

func TestProvider_Load_DirOption(t *testing.T) {
	isolateConfig(t) // global override points at an empty dir

	optDir := t.TempDir()
	writeConfigFile(t, optDir, `ui: {verbose: true}`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: optDir})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !cfg.UI.Verbose {
		t.Error("ConfigDirPath option was not honored")
	}
}

func TestProvider_Load_PropagatesErrors(t *testing.T) {
	isolateConfig(t)

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: "/missing.cue"})
	if err == nil {
		t.Fatal("Load() succeeded with a missing explicit file")
	}
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) {
		t.Errorf("error = %T, want *issue.ActionableError", err)
	}
}
