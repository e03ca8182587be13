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
	"path/filepath"
)

// Version is overridden at build time with -ldflags "-X .../cmd/config.Version=...".
//
//nolint:gochecknoglobals // set by the linker
var Version = "dev"

const (
	defaultConfigFile = "/etc/kukebox/config.yaml"
	defaultRunPath    = "/var/lib/kukebox"
)

// DefaultConfigFile returns the system config file, or the per-user one when not running
// as root.
func DefaultConfigFile() string {
	if os.Geteuid() == 0 {
		return defaultConfigFile
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kukebox", "config.yaml")
	}
	return defaultConfigFile
}

// DefaultRunPath returns where container records and the event database live.
func DefaultRunPath() string {
	if os.Geteuid() == 0 {
		return defaultRunPath
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "kukebox")
	}
	return defaultRunPath
}
