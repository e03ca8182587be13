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

package ctr

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	runtimespec "github.com/opencontainers/runtime-spec/specs-go"
)

// NamespacePaths describes the namespace file paths a container should join.
type NamespacePaths struct {
	Net string
	IPC string
	UTS string
	PID string
}

// TaskNamespacePaths returns the namespace paths of a running task's init process.
func TaskNamespacePaths(pid uint32) NamespacePaths {
	return NamespacePaths{
		Net: fmt.Sprintf("/proc/%d/ns/net", pid),
	}
}

// buildSpecOpts turns a start spec into OCI spec options. image may be nil in tests; the
// image config is then not applied.
func buildSpecOpts(image oci.Image, spec facade.StartSpec, ns NamespacePaths) []oci.SpecOpts {
	var opts []oci.SpecOpts
	if image != nil {
		opts = append(opts, oci.WithImageConfig(image))
	}
	if len(spec.Cmd) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Cmd...))
	}
	if spec.WorkingDir != "" {
		opts = append(opts, oci.WithProcessCwd(spec.WorkingDir))
	}
	if len(spec.Env) > 0 {
		opts = append(opts, oci.WithEnv(facade.EnvList(spec.Env)))
	}
	if len(spec.Mounts) > 0 {
		opts = append(opts, oci.WithMounts(bindMounts(spec.Mounts)))
	}
	if spec.Privileged {
		opts = append(opts, oci.WithPrivileged, oci.WithAllDevicesAllowed, oci.WithHostDevices)
	}
	opts = append(opts, namespaceSpecOpts(ns)...)
	return opts
}

func bindMounts(mounts []modelhub.Mount) []runtimespec.Mount {
	out := make([]runtimespec.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, runtimespec.Mount{
			Type:        "bind",
			Source:      m.Source,
			Destination: m.Destination,
			Options:     []string{"rbind", "rw"},
		})
	}
	return out
}

// mountsFromSpec returns the bind mounts of an OCI spec as record mounts.
func mountsFromSpec(spec *oci.Spec) []modelhub.Mount {
	if spec == nil {
		return nil
	}
	var out []modelhub.Mount
	for _, m := range spec.Mounts {
		if m.Type != "bind" {
			continue
		}
		out = append(out, modelhub.Mount{Source: m.Source, Destination: m.Destination})
	}
	return out
}

func namespaceSpecOpts(ns NamespacePaths) []oci.SpecOpts {
	var opts []oci.SpecOpts
	if ns.Net != "" {
		opts = append(opts, withNamespacePathOpt(runtimespec.NetworkNamespace, ns.Net))
	}
	if ns.IPC != "" {
		opts = append(opts, withNamespacePathOpt(runtimespec.IPCNamespace, ns.IPC))
	}
	if ns.UTS != "" {
		opts = append(opts, withNamespacePathOpt(runtimespec.UTSNamespace, ns.UTS))
	}
	if ns.PID != "" {
		opts = append(opts, withNamespacePathOpt(runtimespec.PIDNamespace, ns.PID))
	}
	return opts
}

func withNamespacePathOpt(nsType runtimespec.LinuxNamespaceType, path string) oci.SpecOpts {
	return func(_ context.Context, _ oci.Client, _ *containers.Container, s *runtimespec.Spec) error {
		if s.Linux == nil {
			s.Linux = &runtimespec.Linux{}
		}

		for i := range s.Linux.Namespaces {
			if s.Linux.Namespaces[i].Type == nsType {
				s.Linux.Namespaces[i].Path = path
				return nil
			}
		}

		s.Linux.Namespaces = append(s.Linux.Namespaces, runtimespec.LinuxNamespace{
			Type: nsType,
			Path: path,
		})
		return nil
	}
}

// labelFilter builds one containerd filter that requires every label with its exact value.
// Separate filter arguments are OR'ed by containerd, so the conditions are joined with commas.
func labelFilter(labels map[string]string) string {
	keys := slices.Sorted(maps.Keys(labels))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("labels.%q==%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

func statusFromTask(status containerd.ProcessStatus) modelhub.Status {
	switch status {
	case containerd.Running, containerd.Paused, containerd.Pausing:
		return modelhub.StatusRunning
	case containerd.Created:
		return modelhub.StatusStarting
	case containerd.Stopped:
		return modelhub.StatusStopped
	default:
		return modelhub.StatusFailed
	}
}
