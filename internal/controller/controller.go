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

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/eminwux/kukebox/internal/ctr"
	"github.com/eminwux/kukebox/internal/dockerd"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/metadata"
	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/provider"
	"github.com/eminwux/kukebox/internal/registry"
	"github.com/eminwux/kukebox/internal/storage/sqlite"
	"github.com/eminwux/kukebox/internal/sweeper"
)

// DefaultEventDB is the event database file name under the run path.
const DefaultEventDB = "events.db"

type Options struct {
	RunPath             string
	Runtime             string
	DockerHost          string
	ContainerdSocket    string
	Namespace           string
	Snapshotter         string
	RegistryCredentials []ctr.RegistryCredentials
	// EventDB overrides the event database path.
	EventDB string
	// EventRetention prunes older events on every sweep. Zero keeps everything.
	EventRetention   time.Duration
	StopTimeout      time.Duration
	SweepConcurrency int
}

// Exec wires the runtime backend, the registry with its stores, and the sweeper behind the
// operations the CLI exposes.
type Exec struct {
	ctx       context.Context
	logger    *slog.Logger
	opts      Options
	runtime   facade.Runtime
	registry  *registry.Registry
	reclaimer *provider.Reclaimer
	sweeper   *sweeper.Sweeper
	metrics   *metrics.Metrics
	events    *sqlite.EventStore
	now       func() time.Time
}

type Option func(*Exec)

// WithRuntime uses rt instead of connecting to the backend named in Options.
func WithRuntime(rt facade.Runtime) Option {
	return func(b *Exec) {
		b.runtime = rt
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Exec) {
		if now != nil {
			b.now = now
		}
	}
}

func NewControllerExec(ctx context.Context, logger *slog.Logger, opts Options, options ...Option) (*Exec, error) {
	if opts.RunPath == "" {
		return nil, fmt.Errorf("%w: run path is required", errdefs.ErrConfig)
	}
	b := &Exec{
		ctx:     ctx,
		logger:  logging.OrNoop(logger),
		opts:    opts,
		metrics: metrics.New(),
		now:     time.Now,
	}
	for _, o := range options {
		o(b)
	}

	if b.runtime == nil {
		rt, err := newRuntime(ctx, b.logger, opts)
		if err != nil {
			return nil, err
		}
		b.runtime = rt
	}

	dbPath := opts.EventDB
	if dbPath == "" {
		dbPath = filepath.Join(opts.RunPath, DefaultEventDB)
	}
	events, err := sqlite.Open(dbPath, b.logger)
	if err != nil {
		_ = b.runtime.Close()
		return nil, err
	}
	b.events = events

	b.registry = registry.New(b.logger,
		registry.WithPersister(metadata.NewRecordStore(b.logger, opts.RunPath)),
		registry.WithSharedLocks(opts.RunPath),
		registry.WithEventSink(events),
		registry.WithClock(b.now),
	)
	if err = b.registry.Restore(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}

	b.reclaimer = provider.NewReclaimer(b.logger, b.runtime, b.registry)
	b.sweeper = sweeper.New(b.logger, b.registry, b.reclaimer,
		sweeper.WithMetrics(b.metrics),
		sweeper.WithClock(b.now),
		sweeper.WithConcurrency(opts.SweepConcurrency),
	)
	b.metrics.SetContainers(b.registry.List())

	b.logger.DebugContext(ctx, "controller ready",
		"runtime", b.runtime.Name(), "runPath", opts.RunPath, "events", dbPath)
	return b, nil
}

func newRuntime(ctx context.Context, logger *slog.Logger, opts Options) (facade.Runtime, error) {
	switch opts.Runtime {
	case "", dockerd.Name:
		return dockerd.New(logger, opts.DockerHost, dockerd.WithStopTimeout(opts.StopTimeout))
	case ctr.Name:
		return ctr.New(ctx, logger, opts.ContainerdSocket,
			ctr.WithNamespace(opts.Namespace),
			ctr.WithSnapshotter(opts.Snapshotter),
			ctr.WithRegistryCredentials(opts.RegistryCredentials),
			ctr.WithStopTimeout(opts.StopTimeout),
		)
	default:
		return nil, fmt.Errorf("%w: %q", errdefs.ErrUnknownRuntime, opts.Runtime)
	}
}

// Runtime returns the name of the backend in use.
func (b *Exec) Runtime() string {
	return b.runtime.Name()
}

func (b *Exec) Metrics() *metrics.Metrics {
	return b.metrics
}

// Close releases the runtime connection and the event database.
func (b *Exec) Close() error {
	var errs []error
	if b.runtime != nil {
		errs = append(errs, b.runtime.Close())
	}
	if b.events != nil {
		errs = append(errs, b.events.Close())
	}
	return errors.Join(errs...)
}
