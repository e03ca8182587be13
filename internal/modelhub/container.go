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

import (
	"maps"
	"slices"
	"time"
)

const (
	// LabelIdentity carries the stable identity key of the task that owns a container.
	LabelIdentity = "kukebox.io/identity"
	// LabelRole carries the container role (workspace or dind).
	LabelRole = "kukebox.io/role"
	// LabelTemplate carries the template name the container was provisioned from.
	LabelTemplate = "kukebox.io/template"
	// LabelParent links a sidecar to its workspace container.
	LabelParent = "kukebox.io/parent"
	// LabelPlatform records the platform a container was explicitly started for.
	LabelPlatform = "kukebox.io/platform"
)

type Role string

const (
	RoleWorkspace Role = "workspace"
	RoleDinD      Role = "dind"
)

type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

type Mount struct {
	Source      string
	Destination string
}

type EnvVar struct {
	Name  string
	Value string
}

// ContainerRecord is the engine's view of one sandbox container.
type ContainerRecord struct {
	ID          string
	Identity    string
	Labels      map[string]string
	Role        Role
	Image       string
	Runtime     string
	Platform    string
	Status      Status
	StartedAt   time.Time
	LastUsedAt  time.Time
	KillAfterAt *time.Time
	ParentID    string
	Sidecars    []string
	Mounts      []Mount
	// Orphaned records are no longer attached to their identity and only wait for the sweep.
	Orphaned bool
}

// Clone returns a deep copy so callers never share maps or slices with the registry.
func (r ContainerRecord) Clone() ContainerRecord {
	out := r
	if r.Labels != nil {
		out.Labels = maps.Clone(r.Labels)
	}
	out.Sidecars = slices.Clone(r.Sidecars)
	out.Mounts = slices.Clone(r.Mounts)
	if r.KillAfterAt != nil {
		t := *r.KillAfterAt
		out.KillAfterAt = &t
	}
	return out
}

// Expired reports whether the record has a kill-after instant at or before now.
func (r ContainerRecord) Expired(now time.Time) bool {
	return r.KillAfterAt != nil && !now.Before(*r.KillAfterAt)
}

// ExecResult is the outcome of one command executed inside a container.
// A non-zero ExitCode is a normal result, not an error.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Raw is set when the runtime output was not multiplexed and all of it landed on Stdout.
	Raw bool
}
