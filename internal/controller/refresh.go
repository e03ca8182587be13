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
	"errors"
	"fmt"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
)

// RefreshResult summarizes one health pass over the registered containers.
type RefreshResult struct {
	Checked []string
	// Updated ids changed status since the previous pass.
	Updated []string
	// Forgotten ids were dropped because the record or its parent no longer exists in the runtime.
	Forgotten []string
	Errors    []string
}

// Refresh reloads the persisted records and compares every one with the runtime, records status changes as
// health events, and forgets containers that disappeared.
func (b *Exec) Refresh() (RefreshResult, error) {
	result := RefreshResult{
		Checked:   []string{},
		Updated:   []string{},
		Forgotten: []string{},
		Errors:    []string{},
	}

	if err := b.registry.Restore(b.ctx); err != nil {
		return result, err
	}
	for _, rec := range b.registry.List() {
		if err := b.ctx.Err(); err != nil {
			return result, err
		}
		if rec.ParentID != "" {
			// checked with the parent
			continue
		}
		b.refreshTree(rec, &result)
	}
	b.metrics.SetContainers(b.registry.List())
	return result, nil
}

func (b *Exec) refreshTree(rec modelhub.ContainerRecord, result *RefreshResult) {
	unlock, err := b.lockFor(rec.ID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to lock container '%s': %v", rec.ID, err))
		return
	}
	defer unlock()

	// another process may have changed or removed it since the list was taken
	rec, ok := b.registry.Get(rec.ID)
	if !ok {
		return
	}
	for _, sid := range rec.Sidecars {
		if sc, ok := b.registry.Get(sid); ok {
			b.refreshOne(sc, result)
		}
	}
	b.refreshOne(rec, result)
}

func (b *Exec) refreshOne(rec modelhub.ContainerRecord, result *RefreshResult) {
	result.Checked = append(result.Checked, rec.ID)

	status, err := b.runtime.Status(b.ctx, rec.ID)
	switch {
	case errors.Is(err, errdefs.ErrContainerNotFound):
		b.registry.Emit(b.ctx, modelhub.EventHealth, rec, "container no longer exists")
		// sidecars that still run are removed along with the missing record
		removed, reclaimErr := b.reclaimer.Reclaim(b.ctx, rec.ID)
		if reclaimErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to forget container '%s': %v", rec.ID, reclaimErr))
			return
		}
		for _, gone := range removed {
			result.Forgotten = append(result.Forgotten, gone.ID)
		}
		b.logger.InfoContext(b.ctx, "forgot missing container", "id", rec.ID, "identity", rec.Identity)
		return
	case err != nil:
		b.logger.WarnContext(b.ctx, "failed to check container", "id", rec.ID, "err", err)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to check container '%s': %v", rec.ID, err))
		return
	case status == rec.Status:
		return
	}

	if err = b.registry.SetStatus(b.ctx, rec.ID, status); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to update container '%s': %v", rec.ID, err))
		return
	}
	previous := rec.Status
	rec.Status = status
	b.registry.Emit(b.ctx, modelhub.EventHealth, rec, fmt.Sprintf("%s -> %s", previous, status))
	result.Updated = append(result.Updated, rec.ID)
}
