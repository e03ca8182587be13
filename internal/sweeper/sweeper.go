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

// Package sweeper reclaims containers whose kill-after instant has passed. A sweep is an
// explicit call; Start only schedules calls with a cron expression and never runs on its own.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

// Reclaimer tears down one container together with its sidecars.
type Reclaimer interface {
	Reclaim(ctx context.Context, id string) ([]modelhub.ContainerRecord, error)
}

type Sweeper struct {
	logger      *slog.Logger
	registry    *registry.Registry
	reclaimer   Reclaimer
	metrics     *metrics.Metrics
	now         func() time.Time
	concurrency int
	parser      cron.Parser
}

type Option func(*Sweeper)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(logger *slog.Logger, reg *registry.Registry, rc Reclaimer, opts ...Option) *Sweeper {
	s := &Sweeper{
		logger:      logging.OrNoop(logger),
		registry:    reg,
		reclaimer:   rc,
		now:         time.Now,
		concurrency: DefaultConcurrency,
		parser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report summarizes one sweep.
type Report struct {
	Reclaimed []string
	// Skipped ids were expired when the sweep began but no longer were under the lock.
	Skipped []string
	Failed  map[string]error
}

// Sweep reloads the persisted records and reclaims every expired top-level one. Each reclaim
// holds the identity lock and re-checks the reloaded deadline first. Failures are logged and left for the next sweep; the only
// error returned is the context's.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	if err := s.registry.Restore(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to reload container records", "err", err)
	}
	candidates := s.registry.Expired(s.now())
	report := Report{Failed: map[string]error{}}
	if len(candidates) == 0 {
		s.metrics.ObserveSweep(0, 0)
		return report, ctx.Err()
	}
	s.logger.DebugContext(ctx, "sweeping expired containers", "count", len(candidates))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rec := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reclaimed, err := s.sweepOne(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed[rec.ID] = err
			case reclaimed:
				report.Reclaimed = append(report.Reclaimed, rec.ID)
			default:
				report.Skipped = append(report.Skipped, rec.ID)
			}
			return nil
		})
	}
	err := g.Wait()

	sort.Strings(report.Reclaimed)
	sort.Strings(report.Skipped)
	s.metrics.ObserveSweep(len(report.Reclaimed), len(report.Failed))
	s.metrics.SetContainers(s.registry.List())
	if len(report.Failed) > 0 {
		s.logger.WarnContext(ctx, "sweep left containers for retry", "failed", len(report.Failed))
	}
	return report, err
}

func (s *Sweeper) sweepOne(ctx context.Context, rec modelhub.ContainerRecord) (bool, error) {
	key := rec.Identity
	if key == "" {
		key = rec.ID
	}
	unlock, err := s.registry.Lock(ctx, key)
	if err != nil {
		return false, err
	}
	defer unlock()
	if rec.Identity != "" {
		if err = s.registry.Sync(ctx, rec.Identity); err != nil {
			return false, err
		}
	}

	cur, ok := s.registry.Get(rec.ID)
	if !ok || !cur.Expired(s.now()) {
		s.logger.DebugContext(ctx, "container no longer expired", "id", rec.ID)
		return false, nil
	}

	s.registry.Emit(ctx, modelhub.EventExpire, cur, "")
	if _, err = s.reclaimer.Reclaim(ctx, cur.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to reclaim expired container", "id", cur.ID, "err", err)
		return false, err
	}
	s.logger.InfoContext(ctx, "expired container reclaimed", "id", cur.ID, "identity", cur.Identity)
	return true, nil
}

// Start schedules Sweep on spec, a cron expression or descriptor such as "@every 30s".
// Overlapping runs are skipped. The returned stop waits for a running sweep to finish.
func (s *Sweeper) Start(ctx context.Context, spec string) (func(), error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		if _, sweepErr := s.Sweep(ctx); sweepErr != nil {
			s.logger.DebugContext(ctx, "sweep interrupted", "err", sweepErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.InfoContext(ctx, "sweep scheduled", "schedule", spec)

	return func() {
		<-c.Stop().Done()
	}, nil
}
