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

package kukebox_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/spf13/viper"
)

type fakeConfigLoader struct {
	loadConfigFn func() error
}

func (f *fakeConfigLoader) LoadConfig() error {
	if f.loadConfigFn == nil {
		return nil
	}
	return f.loadConfigFn()
}

func TestNewKukeboxCmd(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd, err := kukebox.NewKukeboxCmd()
	if err != nil {
		t.Fatalf("NewKukeboxCmd() error = %v, want nil", err)
	}
	if cmd.Use != "kukebox" {
		t.Errorf("Use mismatch: got %q, want %q", cmd.Use, "kukebox")
	}

	expected := []string{
		"provide", "teardown", "exec", "stop", "remove", "get",
		"sweep", "refresh", "serve", "autocomplete", "version",
	}
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("subcommand %q not found", name)
		}
	}

	for _, flag := range []string{
		"run-path", "config", "runtime", "docker-host", "containerd-socket", "namespace",
		"snapshotter", "event-db", "event-retention", "stop-timeout", "sweep-concurrency",
		"verbose", "log-level",
	} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag %q not defined", flag)
		}
	}
}

func TestPersistentPreRunE(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		loaderErr  error
		wantErr    error
		wantLogger bool
	}{
		{
			name: "quiet run keeps the noop logger",
			args: []string{"version"},
		},
		{
			name:       "verbose installs a logger",
			args:       []string{"-v", "--log-level", "debug", "version"},
			wantLogger: true,
		},
		{
			name:      "config errors are wrapped",
			args:      []string{"version"},
			loaderErr: errors.New("bad yaml"),
			wantErr:   errdefs.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)

			noop := logging.NewNoopLogger()
			ctx := context.WithValue(context.Background(), types.CtxLogger, noop)
			ctx = context.WithValue(ctx, kukebox.MockConfigLoaderKey{}, &fakeConfigLoader{
				loadConfigFn: func() error { return tt.loaderErr },
			})

			cmd, err := kukebox.NewKukeboxCmd()
			if err != nil {
				t.Fatalf("NewKukeboxCmd: %v", err)
			}
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetContext(ctx)
			cmd.SetArgs(tt.args)

			executed, err := cmd.ExecuteC()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			logger, _ := executed.Context().Value(types.CtxLogger).(*slog.Logger)
			if tt.wantLogger == (logger == noop) {
				t.Errorf("logger replaced = %v, want %v", logger != noop, tt.wantLogger)
			}
			if tt.wantLogger {
				if _, ok := executed.Context().Value(types.CtxLevelVar).(*slog.LevelVar); !ok {
					t.Error("level var missing from context")
				}
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		runPath      string
		wantRunPath  string
		wantLogLevel string
		wantRuntime  string
		wantErr      bool
	}{
		{
			name:         "missing file falls back to defaults",
			wantRunPath:  config.DefaultRunPath(),
			wantLogLevel: "info",
		},
		{
			name:         "run path flag wins",
			runPath:      "/custom/run/path",
			wantRunPath:  "/custom/run/path",
			wantLogLevel: "info",
		},
		{
			name: "values from the config file",
			content: `kukebox/runPath: /srv/kukebox
kukebox/logLevel: debug
kukebox/runtime: containerd
`,
			wantRunPath:  "/srv/kukebox",
			wantLogLevel: "debug",
			wantRuntime:  "containerd",
		},
		{
			name:    "malformed file",
			content: "kukebox: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			configFile := filepath.Join(t.TempDir(), "config.yaml")
			if tt.content != "" {
				if err := os.WriteFile(configFile, []byte(tt.content), 0o600); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}
			t.Setenv(config.KUKEBOX_ROOT_CONFIG_FILE.Key, "")
			viper.Set(config.KUKEBOX_ROOT_CONFIG_FILE.ViperKey, configFile)
			if tt.runPath != "" {
				viper.Set(config.KUKEBOX_ROOT_RUN_PATH.ViperKey, tt.runPath)
			}

			err := kukebox.LoadConfig()
			if tt.wantErr {
				if !errors.Is(err, errdefs.ErrConfig) {
					t.Fatalf("err = %v, want %v", err, errdefs.ErrConfig)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}

			if got := viper.GetString(config.KUKEBOX_ROOT_RUN_PATH.ViperKey); got != tt.wantRunPath {
				t.Errorf("run path = %q, want %q", got, tt.wantRunPath)
			}
			if got := viper.GetString(config.KUKEBOX_ROOT_LOG_LEVEL.ViperKey); got != tt.wantLogLevel {
				t.Errorf("log level = %q, want %q", got, tt.wantLogLevel)
			}
			if got := viper.GetString(config.KUKEBOX_ROOT_RUNTIME.ViperKey); got != tt.wantRuntime {
				t.Errorf("runtime = %q, want %q", got, tt.wantRuntime)
			}
			if got := os.Getenv(config.KUKEBOX_ROOT_CONFIG_FILE.Key); got != configFile {
				t.Errorf("%s = %q, want %q", config.KUKEBOX_ROOT_CONFIG_FILE.Key, got, configFile)
			}
		})
	}
}

func TestOptionsFromConfigRegistries(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `kukebox:
  containerd:
    registries:
      - serverAddress: registry.example.com
        username: bot
        password: s3cret
`
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.KUKEBOX_ROOT_CONFIG_FILE.Key, "")
	viper.Set(config.KUKEBOX_ROOT_CONFIG_FILE.ViperKey, configFile)

	if err := kukebox.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	opts, err := shared.OptionsFromConfig()
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if len(opts.RegistryCredentials) != 1 {
		t.Fatalf("credentials = %+v", opts.RegistryCredentials)
	}
	cred := opts.RegistryCredentials[0]
	if cred.ServerAddress != "registry.example.com" || cred.Username != "bot" || cred.Password != "s3cret" {
		t.Errorf("credential = %+v", cred)
	}
}
