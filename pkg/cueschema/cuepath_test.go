// SPDX-License-Identifier: MPL-2.0

package cueschema_test

import (
	"errors"
	"testing"

	"github.com/mlforge/mlforge/pkg/cueschema"
)

func TestCUEPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    cueschema.CUEPath
		wantErr bool
	}{
		{name: "valid definition path", path: "#Forgefile", wantErr: false},
		{name: "valid dotted path", path: "base.tag", wantErr: false},
		{name: "valid indexed path", path: "env[0].name", wantErr: false},
		{name: "empty string", path: "", wantErr: true},
		{name: "whitespace only", path: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CUEPath(%q).Validate() error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, cueschema.ErrInvalidCUEPath) {
				t.Errorf("CUEPath(%q).Validate() error does not wrap ErrInvalidCUEPath", tt.path)
			}
		})
	}
}

func TestCUEPath_String(t *testing.T) {
	t.Parallel()

	path := cueschema.CUEPath("env[0].name")
	if got := path.String(); got != "env[0].name" {
		t.Errorf("CUEPath.String() = %q, want %q", got, "env[0].name")
	}
}
