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

package config

import (
	"os"

	"github.com/spf13/viper"
)

type Var struct {
	Key        string // e.g. "KUKEBOX_RUN_PATH"
	ViperKey   string // optional, e.g. "kukebox/runPath"
	CobraKey   string // optional, e.g. "run-path"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

func (v *Var) EnvKey() string               { return v.Key }
func (v *Var) EnvVar() string               { return v.Key }
func (v *Var) DefaultValue() (string, bool) { return v.Default, v.HasDefault }

// ValueOrDefault defines precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v *Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		return viper.GetString(v.ViperKey)
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// BindEnv is safe if ViperKey is empty: does nothing.
func (v *Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v *Var) Set(value string) error {
	return os.Setenv(v.Key, value)
}

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// ---- Declare statically (Viper key optional per var) ----.
var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_VERBOSE = DefineKV("KUKEBOX_VERBOSE", "kukebox/verbose")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_RUN_PATH = DefineKV("KUKEBOX_RUN_PATH", "kukebox/runPath")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_CONFIG_FILE = DefineKV("KUKEBOX_CONFIG_FILE", "kukebox/configFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_LOG_LEVEL = DefineKV("KUKEBOX_LOG_LEVEL", "kukebox/logLevel", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_RUNTIME = DefineKV("KUKEBOX_RUNTIME", "kukebox/runtime", "docker")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_DOCKER_HOST = DefineKV("KUKEBOX_DOCKER_HOST", "kukebox/docker.host")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_CONTAINERD_SOCKET = DefineKV("KUKEBOX_CONTAINERD_SOCKET", "kukebox/containerd.socket")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_CONTAINERD_NAMESPACE = DefineKV("KUKEBOX_CONTAINERD_NAMESPACE", "kukebox/containerd.namespace")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_CONTAINERD_SNAPSHOTTER = DefineKV("KUKEBOX_CONTAINERD_SNAPSHOTTER", "kukebox/containerd.snapshotter")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_EVENT_DB = DefineKV("KUKEBOX_EVENT_DB", "kukebox/events.db")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_EVENT_RETENTION = DefineKV("KUKEBOX_EVENT_RETENTION", "kukebox/events.retention")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_STOP_TIMEOUT = DefineKV("KUKEBOX_STOP_TIMEOUT", "kukebox/stopTimeout")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_ROOT_SWEEP_CONCURRENCY = DefineKV("KUKEBOX_SWEEP_CONCURRENCY", "kukebox/sweep.concurrency")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_PROVIDE_TEMPLATE_FILE = DefineKV("KUKEBOX_PROVIDE_TEMPLATE_FILE", "kukebox/provide/file")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_PROVIDE_TEMPLATE_NAME = DefineKV("KUKEBOX_PROVIDE_TEMPLATE_NAME", "kukebox/provide/template")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_PROVIDE_OUTPUT = DefineKV("KUKEBOX_PROVIDE_OUTPUT", "kukebox/provide/output")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_TEARDOWN_TEMPLATE_FILE = DefineKV("KUKEBOX_TEARDOWN_TEMPLATE_FILE", "kukebox/teardown/file")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_TEARDOWN_TEMPLATE_NAME = DefineKV("KUKEBOX_TEARDOWN_TEMPLATE_NAME", "kukebox/teardown/template")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_EXEC_WORKDIR = DefineKV("KUKEBOX_EXEC_WORKDIR", "kukebox/exec/workdir")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_GET_CONTAINERS_OUTPUT = DefineKV("KUKEBOX_GET_CONTAINERS_OUTPUT", "kukebox/get/containers/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_GET_EVENTS_OUTPUT = DefineKV("KUKEBOX_GET_EVENTS_OUTPUT", "kukebox/get/events/output")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_GET_EVENTS_AFTER = DefineKV("KUKEBOX_GET_EVENTS_AFTER", "kukebox/get/events/after")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_GET_EVENTS_LIMIT = DefineKV("KUKEBOX_GET_EVENTS_LIMIT", "kukebox/get/events/limit")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_SERVE_ADDR = DefineKV("KUKEBOX_SERVE_ADDR", "kukebox/serve/addr", ":9464")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_SERVE_SWEEP_SCHEDULE = DefineKV("KUKEBOX_SERVE_SWEEP_SCHEDULE", "kukebox/serve/sweepSchedule", "@every 1m")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	KUKEBOX_SERVE_REFRESH_SCHEDULE = DefineKV("KUKEBOX_SERVE_REFRESH_SCHEDULE", "kukebox/serve/refreshSchedule", "@every 30s")
)

// RegistryCredentialsKey holds the containerd registry credentials list in the config file:
//
//	kukebox:
//	  containerd:
//	    registries:
//	      - serverAddress: registry.example.com
//	        username: bot
//	        password: secret
const RegistryCredentialsKey = "kukebox.containerd.registries"
