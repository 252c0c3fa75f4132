// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/mlforge/mlforge/pkg/forgefile"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme ColorScheme
		want   bool
	}{
		{ColorSchemeAuto, true},
		{ColorSchemeDark, true},
		{ColorSchemeLight, true},
		{"", false},
		{"solarized", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			valid, errs := tt.scheme.IsValid()
			if valid != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.scheme, valid, tt.want)
			}
			if !tt.want && !errors.Is(errs[0], ErrInvalidColorScheme) {
				t.Errorf("error = %v, want ErrInvalidColorScheme", errs[0])
			}
		})
	}
}

func TestUIConfig_IsValid(t *testing.T) {
	t.Parallel()

	valid, _ := (UIConfig{ColorScheme: ColorSchemeDark, Verbose: true}).IsValid()
	if !valid {
		t.Error("valid UI config rejected")
	}

	valid, errs := (UIConfig{ColorScheme: "sepia"}).IsValid()
	if valid {
		t.Fatal("invalid color scheme accepted")
	}
	if !errors.Is(errs[0], ErrInvalidUIConfig) {
		t.Errorf("error = %v, want ErrInvalidUIConfig", errs[0])
	}

	var uiErr *InvalidUIConfigError
	if !errors.As(errs[0], &uiErr) {
		t.Fatalf("error = %T, want *InvalidUIConfigError", errs[0])
	}
	if len(uiErr.FieldErrors) != 1 || !errors.Is(uiErr.FieldErrors[0], ErrInvalidColorScheme) {
		t.Errorf("collected field errors = %v, want one ErrInvalidColorScheme", uiErr.FieldErrors)
	}
}

func TestConfig_IsValid_Defaults(t *testing.T) {
	t.Parallel()

	if valid, errs := DefaultConfig().IsValid(); !valid {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestConfig_IsValid_CollectsFieldErrors(t *testing.T) {
	t.Parallel()

	cfg := Config{
		ContainerEngine: "lxc",
		Registry:        forgefile.RegistryHost("http://ghcr.io"),
		UI:              UIConfig{ColorScheme: "sepia"},
	}

	valid, errs := cfg.IsValid()
	if valid {
		t.Fatal("invalid config accepted")
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", errs[0])
	}

	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("error = %T, want *InvalidConfigError", errs[0])
	}
	if len(cfgErr.FieldErrors) != 3 {
		t.Errorf("field errors = %d, want 3 (engine, registry, color scheme)", len(cfgErr.FieldErrors))
	}
}

func TestConfig_IsValid_EmptyEngineMeansAutoDetect(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ContainerEngine = ""
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("empty engine (auto-detect) rejected: %v", errs)
	}
}
