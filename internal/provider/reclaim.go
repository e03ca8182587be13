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

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
)

// Reclaimer stops and removes registered containers. It needs no template, so the sweeper
// and the CLI can use it for any record.
type Reclaimer struct {
	logger   *slog.Logger
	runtime  facade.Runtime
	registry *registry.Registry
}

func NewReclaimer(logger *slog.Logger, rt facade.Runtime, reg *registry.Registry) *Reclaimer {
	return &Reclaimer{
		logger:   logging.OrNoop(logger),
		runtime:  rt,
		registry: reg,
	}
}

// Stop stops id and its sidecars without removing them.
func (r *Reclaimer) Stop(ctx context.Context, id string) error {
	if id == "" {
		return errdefs.ErrContainerIDRequired
	}
	rec, known := r.registry.Get(id)
	if !known {
		rec = modelhub.ContainerRecord{ID: id}
	}

	var errs []error
	for _, sid := range rec.Sidecars {
		if err := r.stopOne(ctx, sid, known); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.stopOne(ctx, id, known); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Reclaimer) stopOne(ctx context.Context, id string, known bool) error {
	if known {
		_ = r.registry.SetStatus(ctx, id, modelhub.StatusStopping)
	}
	if err := r.runtime.Stop(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "failed to stop container", "id", id, "err", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrStopFailed, id, err)
	}
	if known {
		_ = r.registry.SetStatus(ctx, id, modelhub.StatusStopped)
	}
	rec, ok := r.registry.Get(id)
	if !ok {
		rec = modelhub.ContainerRecord{ID: id}
	}
	r.registry.Emit(ctx, modelhub.EventStop, rec, "")
	return nil
}

// Reclaim stops and removes id, sidecars first, then forgets it. When any runtime call
// fails the record is kept so a later sweep can retry.
func (r *Reclaimer) Reclaim(ctx context.Context, id string) ([]modelhub.ContainerRecord, error) {
	if id == "" {
		return nil, errdefs.ErrContainerIDRequired
	}
	rec, known := r.registry.Get(id)
	if !known {
		rec = modelhub.ContainerRecord{ID: id}
	}

	var errs []error
	for _, sid := range rec.Sidecars {
		if err := r.removeOne(ctx, sid); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.removeOne(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	removed := r.registry.Delete(ctx, id)
	if len(removed) == 0 {
		removed = []modelhub.ContainerRecord{rec}
	}
	for _, gone := range removed {
		r.registry.Emit(ctx, modelhub.EventRemove, gone, "")
	}
	r.logger.DebugContext(ctx, "container reclaimed", "id", id, "removed", len(removed))
	return removed, nil
}

func (r *Reclaimer) removeOne(ctx context.Context, id string) error {
	if err := r.runtime.Stop(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "failed to stop container", "id", id, "err", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrStopFailed, id, err)
	}
	if err := r.runtime.Remove(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "failed to remove container", "id", id, "err", err)
		return fmt.Errorf("%w: %s: %w", errdefs.ErrRemoveFailed, id, err)
	}
	return nil
}
