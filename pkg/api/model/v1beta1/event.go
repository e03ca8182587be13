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

type EventListDoc struct {
	APIVersion Version    `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind       `json:"kind"       yaml:"kind"`
	Items      []EventDoc `json:"items"      yaml:"items"`
	// Next is the cursor to pass as "after" for the following page.
	Next uint64 `json:"next" yaml:"next"`
}

type EventDoc struct {
	Seq         uint64    `json:"seq"                   yaml:"seq"`
	Time        time.Time `json:"time"                  yaml:"time"`
	Type        string    `json:"type"                  yaml:"type"`
	ContainerID string    `json:"containerId"           yaml:"containerId"`
	Identity    string    `json:"identity,omitempty"    yaml:"identity,omitempty"`
	Role        string    `json:"role,omitempty"        yaml:"role,omitempty"`
	Message     string    `json:"message,omitempty"     yaml:"message,omitempty"`
}
