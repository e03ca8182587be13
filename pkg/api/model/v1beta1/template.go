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

// TemplateDoc describes how sandbox containers for a class of tasks are provisioned.
type TemplateDoc struct {
	APIVersion Version          `json:"apiVersion" yaml:"apiVersion"`
	Kind       Kind             `json:"kind"       yaml:"kind"`
	Metadata   TemplateMetadata `json:"metadata"   yaml:"metadata"`
	Spec       TemplateSpec     `json:"spec"       yaml:"spec"`
}

type TemplateMetadata struct {
	Name   string            `json:"name"             yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

type TemplateSpec struct {
	Image      string   `json:"image"                yaml:"image"`
	Cmd        []string `json:"cmd,omitempty"        yaml:"cmd,omitempty"`
	WorkingDir string   `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Env        []EnvVar `json:"env,omitempty"        yaml:"env,omitempty"`
	Mounts     []Mount  `json:"mounts,omitempty"     yaml:"mounts,omitempty"`
	// Platform is an os/arch[/variant] specifier. Empty means unconstrained.
	Platform   string `json:"platform,omitempty"   yaml:"platform,omitempty"`
	EnableDinD bool   `json:"enableDinD,omitempty" yaml:"enableDinD,omitempty"`
	DinDImage  string `json:"dindImage,omitempty"  yaml:"dindImage,omitempty"`
	// TTLSeconds bounds the lifetime of a container after its last provisioning.
	TTLSeconds         *int64 `json:"ttlSeconds,omitempty"         yaml:"ttlSeconds,omitempty"`
	OrphanGraceSeconds *int64 `json:"orphanGraceSeconds,omitempty" yaml:"orphanGraceSeconds,omitempty"`
}

type EnvVar struct {
	Name  string `json:"name"  yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type Mount struct {
	Source      string `json:"source"      yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}
