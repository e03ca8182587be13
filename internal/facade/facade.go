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

// Package facade defines the contract the provider uses to talk to a container runtime.
// Backends live in internal/dockerd and internal/ctr.
package facade

import (
	"context"
	"io"

	"github.com/eminwux/kukebox/internal/modelhub"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Runtime is the minimal container runtime surface needed to provision, reuse and run
// commands in sandbox containers.
type Runtime interface {
	// Name identifies the backend, e.g. "docker" or "containerd".
	Name() string
	// Start creates and starts a container. Failures wrap errdefs.ErrStartFailed.
	Start(ctx context.Context, spec StartSpec) (modelhub.ContainerRecord, error)
	// FindContainerByLabels returns the best container carrying every given label with the
	// exact value, or nil when none does.
	FindContainerByLabels(ctx context.Context, labels map[string]string) (*modelhub.ContainerRecord, error)
	// Status reports the live state of id. A container that no longer exists yields
	// errdefs.ErrContainerNotFound.
	Status(ctx context.Context, id string) (modelhub.Status, error)
	// GetContainerPlatform returns the os/arch[/variant] of the container's image.
	GetContainerPlatform(ctx context.Context, id string) (string, error)
	// Exec runs argv inside a running container. A non-zero exit is a result, not an error.
	Exec(ctx context.Context, id string, req ExecRequest) (modelhub.ExecResult, error)
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Close() error
}

// StartSpec is what a backend needs to create one container.
type StartSpec struct {
	Name       string
	Image      string
	Cmd        []string
	WorkingDir string
	Env        []modelhub.EnvVar
	Mounts     []modelhub.Mount
	Labels     map[string]string
	// Platform is nil unless a platform was configured. Backends must omit the
	// platform entirely in that case.
	Platform   *ocispec.Platform
	Privileged bool
	// NetworkParent is the id of a container whose network namespace is joined.
	NetworkParent string
}

// ExecRequest describes one command execution.
type ExecRequest struct {
	Argv       []string
	WorkingDir string
	Env        []modelhub.EnvVar
	// Stdout and Stderr receive decoded text as it arrives. Both are optional.
	Stdout io.Writer
	Stderr io.Writer
}
