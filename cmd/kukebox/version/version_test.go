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

package version_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/version"
)

type fakeVersionProvider struct {
	version string
}

func (f *fakeVersionProvider) Version() string { return f.version }

func TestVersionCmdRun(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		provider   version.VersionProvider
		wantOutput string
		wantPrefix string
	}{
		{
			name:       "prints version from config",
			args:       []string{},
			wantPrefix: config.Version,
		},
		{
			name:       "ignores arguments",
			args:       []string{"arg1"},
			wantPrefix: config.Version,
		},
		{
			name:       "prints mock version",
			args:       []string{},
			provider:   &fakeVersionProvider{version: "v1.2.3"},
			wantOutput: "v1.2.3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.provider != nil {
				ctx = context.WithValue(ctx, version.MockVersionProviderKey{}, tt.provider)
			}

			out := &bytes.Buffer{}
			cmd := version.NewVersionCmd()
			cmd.SetOut(out)
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if tt.wantPrefix != "" {
				if !strings.HasPrefix(out.String(), tt.wantPrefix) || !strings.HasSuffix(out.String(), "\n") {
					t.Errorf("output = %q, want prefix %q", out.String(), tt.wantPrefix)
				}
				return
			}
			if out.String() != tt.wantOutput {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOutput)
			}
		})
	}
}
