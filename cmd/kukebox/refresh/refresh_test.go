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

package refresh_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eminwux/kukebox/cmd/kukebox/refresh"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/controller"
)

type fakeController struct {
	result controller.RefreshResult
}

func (f *fakeController) Refresh() (controller.RefreshResult, error) { return f.result, nil }

func (f *fakeController) Close() error { return nil }

func TestNewRefreshCmdRunE(t *testing.T) {
	tests := []struct {
		name       string
		result     controller.RefreshResult
		wantErr    string
		wantOutput []string
	}{
		{
			name: "prints the summary",
			result: controller.RefreshResult{
				Checked:   []string{"ctr-01", "ctr-02", "ctr-03"},
				Updated:   []string{"ctr-01"},
				Forgotten: []string{"ctr-03"},
			},
			wantOutput: []string{"Checked 3 container(s)", "updated: ctr-01", "forgotten: ctr-03"},
		},
		{
			name: "lookup errors fail the command",
			result: controller.RefreshResult{
				Checked: []string{"ctr-01"},
				Errors:  []string{"ctr-01: container lookup failed"},
			},
			wantErr:    "container lookup failed",
			wantOutput: []string{"Checked 1 container(s)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			ctx := context.WithValue(context.Background(), types.CtxLogger, logger)
			ctx = context.WithValue(ctx, refresh.MockControllerKey{}, &fakeController{result: tt.result})

			out := &bytes.Buffer{}
			cmd := refresh.NewRefreshCmd()
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetContext(ctx)
			cmd.SetArgs([]string{})

			err := cmd.Execute()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
			} else if err != nil {
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
