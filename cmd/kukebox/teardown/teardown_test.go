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

package teardown_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kukebox/cmd/kukebox/teardown"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/viper"
)

const sandboxTemplate = `kind: Template
metadata:
  name: python
spec:
  image: docker.io/library/python:3.12
`

type fakeController struct {
	teardownFn func(cfg modelhub.ProviderConfig, taskID string) error
}

func (f *fakeController) Teardown(cfg modelhub.ProviderConfig, taskID string) error {
	return f.teardownFn(cfg, taskID)
}

func (f *fakeController) Close() error { return nil }

func TestNewTeardownCmdRunE(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		teardownErr error
		wantErr     error
		wantCalled  bool
		wantOutput  string
	}{
		{
			name:       "tears down the task",
			args:       []string{"task-1", "-t", "-"},
			wantCalled: true,
			wantOutput: `Tore down task "task-1" (template "python")`,
		},
		{
			name:    "template is required",
			args:    []string{"task-1"},
			wantErr: errdefs.ErrConfig,
		},
		{
			name:    "task id is required",
			args:    []string{" ", "-t", "-"},
			wantErr: errdefs.ErrTaskIDRequired,
		},
		{
			name:        "controller failure",
			args:        []string{"task-1", "-t", "-"},
			teardownErr: errdefs.ErrRemoveFailed,
			wantErr:     errdefs.ErrRemoveFailed,
			wantCalled:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)

			var called bool
			fake := &fakeController{
				teardownFn: func(cfg modelhub.ProviderConfig, taskID string) error {
					called = true
					if cfg.Name != "python" || taskID != "task-1" {
						t.Errorf("Teardown(%q, %q)", cfg.Name, taskID)
					}
					return tt.teardownErr
				},
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			ctx := context.WithValue(context.Background(), types.CtxLogger, logger)
			ctx = context.WithValue(ctx, teardown.MockControllerKey{}, fake)

			out := &bytes.Buffer{}
			cmd := teardown.NewTeardownCmd()
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetIn(strings.NewReader(sandboxTemplate))
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if called != tt.wantCalled {
				t.Fatalf("Teardown called=%v want=%v", called, tt.wantCalled)
			}
			if tt.wantOutput != "" && !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOutput)
			}
		})
	}
}
