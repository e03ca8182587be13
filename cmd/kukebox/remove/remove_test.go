// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package remove_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kukebox/cmd/kukebox/remove"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
)

type fakeController struct {
	removeFn func(id string) ([]modelhub.ContainerRecord, error)
}

func (f *fakeController) RemoveContainer(id string) ([]modelhub.ContainerRecord, error) {
	return f.removeFn(id)
}

func (f *fakeController) Close() error { return nil }

func TestNewRemoveCmdRunE(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		removeFn   func(id string) ([]modelhub.ContainerRecord, error)
		wantErr    error
		wantOutput []string
	}{
		{
			name: "removes the workspace and its sidecar",
			args: []string{"ctr-01"},
			removeFn: func(id string) ([]modelhub.ContainerRecord, error) {
				return []modelhub.ContainerRecord{
					{ID: "ctr-02", Role: modelhub.RoleDinD, ParentID: id},
					{ID: id, Role: modelhub.RoleWorkspace},
				}, nil
			},
			wantOutput: []string{`Removed dind "ctr-02"`, `Removed workspace "ctr-01"`},
		},
		{
			name: "unknown container is removed quietly",
			args: []string{"ctr-77"},
			removeFn: func(id string) ([]modelhub.ContainerRecord, error) {
				return []modelhub.ContainerRecord{{ID: id}}, nil
			},
			wantOutput: []string{`Removed container "ctr-77"`},
		},
		{
			name: "runtime failure is reported",
			args: []string{"ctr-01", "ctr-03"},
			removeFn: func(id string) ([]modelhub.ContainerRecord, error) {
				if id == "ctr-01" {
					return nil, errdefs.ErrRemoveFailed
				}
				return []modelhub.ContainerRecord{{ID: id, Role: modelhub.RoleWorkspace}}, nil
			},
			wantErr:    errdefs.ErrRemoveFailed,
			wantOutput: []string{`Removed workspace "ctr-03"`},
		},
		{
			name: "requires an id",
			args: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeController{removeFn: tt.removeFn}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			ctx := context.WithValue(context.Background(), types.CtxLogger, logger)
			ctx = context.WithValue(ctx, remove.MockControllerKey{}, fake)

			out := &bytes.Buffer{}
			cmd := remove.NewRemoveCmd()
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			switch {
			case len(tt.args) == 0:
				if err == nil {
					t.Fatal("expected an argument error")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}

			for _, want := range tt.wantOutput {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q\nGot:\n%s", want, out.String())
				}
			}
		})
	}
}
