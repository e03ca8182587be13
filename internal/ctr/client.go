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

// Package ctr implements the runtime facade on top of containerd. Exec output arrives on
// separate stdout and stderr FIFOs and is collected as text without any framing.
package ctr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/namespaces"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/logging"
)

const (
	Name = "containerd"

	DefaultNamespace = "kukebox"

	defaultStopTimeout = 10 * time.Second
)

type Runtime struct {
	logger      *slog.Logger
	socket      string
	namespace   string
	snapshotter string
	creds       []RegistryCredentials
	stopTimeout time.Duration
	now         func() time.Time
	cClient     *containerd.Client
	containers  handleCache[containerd.Container]
	tasks       handleCache[containerd.Task]
}

var _ facade.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

func WithNamespace(namespace string) Option {
	return func(r *Runtime) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

func WithSnapshotter(snapshotter string) Option {
	return func(r *Runtime) {
		r.snapshotter = snapshotter
	}
}

func WithRegistryCredentials(creds []RegistryCredentials) Option {
	return func(r *Runtime) {
		r.creds = creds
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

func newRuntime(logger *slog.Logger, socket string, opts ...Option) *Runtime {
	r := &Runtime{
		logger:      logging.OrNoop(logger),
		socket:      socket,
		namespace:   DefaultNamespace,
		stopTimeout: defaultStopTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New connects to the containerd socket.
func New(ctx context.Context, logger *slog.Logger, socket string, opts ...Option) (*Runtime, error) {
	r := newRuntime(logger, socket, opts...)
	cClient, err := containerd.New(socket, containerd.WithDefaultNamespace(r.namespace))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to connect to containerd", "socket", socket, "err", formatError(err))
		return nil, fmt.Errorf("%w: containerd %s: %w", errdefs.ErrConnectRuntime, socket, err)
	}
	r.cClient = cClient
	r.logger.InfoContext(ctx, "connected to containerd", "socket", socket, "namespace", r.namespace)
	return r, nil
}

func (r *Runtime) Name() string {
	return Name
}

func (r *Runtime) Namespace() string {
	return r.namespace
}

func (r *Runtime) Close() error {
	if r.cClient == nil {
		return nil
	}
	err := r.cClient.Close()
	r.cClient = nil
	if err != nil {
		r.logger.Error("failed to close containerd client", "err", formatError(err))
		return err
	}
	return nil
}

// namespaceCtx returns a context with the namespace set.
func (r *Runtime) namespaceCtx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

func (r *Runtime) connected() error {
	if r.cClient == nil {
		return ErrNotConnected
	}
	return nil
}
