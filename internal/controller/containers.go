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
	"fmt"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
)

// StopContainer stops id and its sidecars. The records stay registered.
func (b *Exec) StopContainer(id string) error {
	unlock, err := b.lockFor(id)
	if err != nil {
		return err
	}
	defer unlock()
	return b.reclaimer.Stop(b.ctx, id)
}

// RemoveContainer stops and removes id and its sidecars, returning the records dropped.
func (b *Exec) RemoveContainer(id string) ([]modelhub.ContainerRecord, error) {
	unlock, err := b.lockFor(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	removed, err := b.reclaimer.Reclaim(b.ctx, id)
	if err != nil {
		return nil, err
	}
	b.metrics.SetContainers(b.registry.List())
	return removed, nil
}

func (b *Exec) GetContainer(id string) (modelhub.ContainerRecord, error) {
	if id == "" {
		return modelhub.ContainerRecord{}, errdefs.ErrContainerIDRequired
	}
	rec, ok := b.registry.Get(id)
	if !ok {
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: %s", errdefs.ErrContainerNotFound, id)
	}
	return rec, nil
}

// ListContainers returns every registered record, oldest first.
func (b *Exec) ListContainers() []modelhub.ContainerRecord {
	return b.registry.List()
}

// ListEvents returns the page of events after the given sequence number.
func (b *Exec) ListEvents(after uint64, limit int) (modelhub.EventPage, error) {
	return b.registry.Events(b.ctx, after, limit)
}

// lockFor takes the identity lock of a registered record so manual operations do not race
// provisioning, then reloads that identity's records. Unknown ids lock on the id itself.
func (b *Exec) lockFor(id string) (func(), error) {
	key, identity := id, ""
	if rec, ok := b.registry.Get(id); ok {
		if rec.ParentID != "" {
			if parent, found := b.registry.Get(rec.ParentID); found {
				rec = parent
			}
		}
		if rec.Identity != "" {
			key, identity = rec.Identity, rec.Identity
		}
	}
	unlock, err := b.registry.Lock(b.ctx, key)
	if err != nil {
		return nil, err
	}
	if identity != "" {
		if err = b.registry.Sync(b.ctx, identity); err != nil {
			unlock()
			return nil, err
		}
	}
	return unlock, nil
}
