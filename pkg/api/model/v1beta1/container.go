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

package v1beta1

import "time"

type ContainerDoc struct {
	APIVersion Version           `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind              `json:"kind"       yaml:"kind"`
	Metadata   ContainerMetadata `json:"metadata"   yaml:"metadata"`
	Spec       ContainerSpec     `json:"spec"       yaml:"spec"`
	Status     ContainerStatus   `json:"status"     yaml:"status"`
}

type ContainerMetadata struct {
	Name   string            `json:"name"   yaml:"name"`
	Labels map[string]string `json:"labels" yaml:"labels"`
}

type ContainerSpec struct {
	ContainerID string  `json:"containerId"        yaml:"containerId"`
	Identity    string  `json:"identity"           yaml:"identity"`
	Role        string  `json:"role"               yaml:"role"`
	Image       string  `json:"image"              yaml:"image"`
	Runtime     string  `json:"runtime"            yaml:"runtime"`
	Platform    string  `json:"platform,omitempty" yaml:"platform,omitempty"`
	ParentID    string  `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Mounts      []Mount `json:"mounts,omitempty"   yaml:"mounts,omitempty"`
}

type ContainerStatus struct {
	State       ContainerState `json:"state"                 yaml:"state"`
	StartedAt   time.Time      `json:"startedAt"             yaml:"startedAt"`
	LastUsedAt  time.Time      `json:"lastUsedAt"            yaml:"lastUsedAt"`
	KillAfterAt *time.Time     `json:"killAfterAt,omitempty" yaml:"killAfterAt,omitempty"`
	Sidecars    []string       `json:"sidecars,omitempty"    yaml:"sidecars,omitempty"`
	Orphaned    bool           `json:"orphaned,omitempty"    yaml:"orphaned,omitempty"`
}

type ContainerState string

const (
	ContainerStateStarting ContainerState = StateStartingStr
	ContainerStateRunning  ContainerState = StateRunningStr
	ContainerStateStopping ContainerState = StateStoppingStr
	ContainerStateStopped  ContainerState = StateStoppedStr
	ContainerStateFailed   ContainerState = StateFailedStr
	ContainerStateUnknown  ContainerState = StateUnknownStr
)

func (c ContainerState) String() string {
	if c == "" {
		return StateUnknownStr
	}
	return string(c)
}
