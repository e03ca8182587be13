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

package modelhub

import "time"

const DefaultDinDImage = "docker.io/library/docker:dind"

// DefaultOrphanGrace bounds how long a container rejected for reuse stays around when the
// template has no TTL.
const DefaultOrphanGrace = 10 * time.Minute

// ProviderConfig is the static, per-template configuration of a provider.
type ProviderConfig struct {
	Name       string
	Image      string
	Cmd        []string
	WorkingDir string
	Env        []EnvVar
	Mounts     []Mount
	// Platform is optional; empty means unconstrained.
	Platform   string
	EnableDinD bool
	DinDImage  string
	// TTLSeconds is optional; nil means no automatic expiry.
	TTLSeconds         *int64
	OrphanGraceSeconds *int64
}

// TTL returns the configured lifetime and whether one is set.
func (c ProviderConfig) TTL() (time.Duration, bool) {
	if c.TTLSeconds == nil {
		return 0, false
	}
	return time.Duration(*c.TTLSeconds) * time.Second, true
}

func (c ProviderConfig) OrphanGrace() time.Duration {
	if c.OrphanGraceSeconds == nil {
		return DefaultOrphanGrace
	}
	return time.Duration(*c.OrphanGraceSeconds) * time.Second
}

func (c ProviderConfig) SidecarImage() string {
	if c.DinDImage == "" {
		return DefaultDinDImage
	}
	return c.DinDImage
}
