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

// Package registry tracks the containers the engine provisioned. It is the per-identity
// serialization point: Provide, Teardown and the sweeper hold Lock(identity) while they
// decide and act. With shared locks enabled the lock also holds across processes using the
// same run path, and Sync reloads what other processes persisted meanwhile.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/moby/locker"
)

// Persister stores record snapshots so a later process can restore them.
type Persister interface {
	Save(ctx context.Context, rec modelhub.ContainerRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]modelhub.ContainerRecord, error)
}

// EventSink appends to and pages through the event feed. Append assigns Seq.
type EventSink interface {
	Append(ctx context.Context, ev modelhub.Event) (modelhub.Event, error)
	Events(ctx context.Context, after uint64, limit int) (modelhub.EventPage, error)
}

type Registry struct {
	logger    *slog.Logger
	persister Persister
	events    EventSink
	now       func() time.Time
	locks     *locker.Locker
	files     *fileLock

	mu         sync.RWMutex
	records    map[string]modelhub.ContainerRecord
	workspaces map[string]string
}

type Option func(*Registry)

func WithPersister(p Persister) Option {
	return func(r *Registry) {
		r.persister = p
	}
}

// WithSharedLocks backs Lock with lock files under runPath, shared by every process that
// uses the same run path.
func WithSharedLocks(runPath string) Option {
	return func(r *Registry) {
		if runPath != "" {
			r.files = &fileLock{dir: filepath.Join(runPath, locksDir)}
		}
	}
}

func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.events = sink
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:     logging.OrNoop(logger),
		now:        time.Now,
		locks:      locker.New(),
		records:    make(map[string]modelhub.ContainerRecord),
		workspaces: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.events == nil {
		r.events = NewMemoryEvents(DefaultEventCapacity)
	}
	return r
}

// Lock serializes work on one identity and returns the matching unlock. It blocks until the
// lock is free or ctx is done.
func (r *Registry) Lock(ctx context.Context, identity string) (func(), error) {
	r.locks.Lock(identity)
	if r.files == nil {
		return func() {
			_ = r.locks.Unlock(identity)
		}, nil
	}
	f, err := r.files.acquire(ctx, identity)
	if err != nil {
		_ = r.locks.Unlock(identity)
		return nil, fmt.Errorf("%w: %w", errdefs.ErrLockFailed, err)
	}
	return func() {
		r.files.release(f)
		_ = r.locks.Unlock(identity)
	}, nil
}

// Restore loads persisted records. A persisted record replaces the known one with the same
// id; records only known in memory are kept until Sync drops them.
func (r *Registry) Restore(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	recs, err := r.persister.List(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		r.load(rec)
	}
	r.logger.DebugContext(ctx, "restored container records", "count", len(recs))
	return nil
}

// Sync replaces every known record of identity with its persisted state and forgets the ones
// no longer persisted. Callers hold Lock(identity).
func (r *Registry) Sync(ctx context.Context, identity string) error {
	if r.persister == nil {
		return nil
	}
	recs, err := r.persister.List(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.Identity == identity {
			delete(r.records, id)
		}
	}
	delete(r.workspaces, identity)
	for _, rec := range recs {
		if rec.Identity == identity {
			r.load(rec)
		}
	}
	return nil
}

// load stores a persisted record. Callers hold mu.
func (r *Registry) load(rec modelhub.ContainerRecord) {
	if prev, ok := r.records[rec.ID]; ok && r.workspaces[prev.Identity] == rec.ID {
		delete(r.workspaces, prev.Identity)
	}
	r.records[rec.ID] = rec
	if rec.Role == modelhub.RoleWorkspace && !rec.Orphaned && rec.Identity != "" {
		r.workspaces[rec.Identity] = rec.ID
	}
}

// Put stores rec. A workspace record becomes the attached workspace of its identity; a
// previously attached one is orphaned and, unless it already has a deadline, due at once.
// A record with a ParentID is linked to its parent.
func (r *Registry) Put(ctx context.Context, rec modelhub.ContainerRecord) error {
	if rec.ID == "" {
		return errdefs.ErrContainerIDRequired
	}
	rec = rec.Clone()

	r.mu.Lock()
	var changed []modelhub.ContainerRecord
	if rec.Role == modelhub.RoleWorkspace && !rec.Orphaned && rec.Identity != "" {
		if prev, ok := r.workspaces[rec.Identity]; ok && prev != rec.ID {
			if old, found := r.records[prev]; found {
				old.Orphaned = true
				if old.KillAfterAt == nil {
					due := r.now()
					old.KillAfterAt = &due
				}
				r.records[prev] = old
				changed = append(changed, old)
			}
		}
		r.workspaces[rec.Identity] = rec.ID
	}
	if rec.ParentID != "" {
		if parent, ok := r.records[rec.ParentID]; ok && !slices.Contains(parent.Sidecars, rec.ID) {
			parent.Sidecars = append(parent.Sidecars, rec.ID)
			r.records[parent.ID] = parent
			changed = append(changed, parent)
		}
	}
	r.records[rec.ID] = rec
	changed = append(changed, rec)
	r.mu.Unlock()

	return r.persist(ctx, changed...)
}

func (r *Registry) Get(id string) (modelhub.ContainerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return modelhub.ContainerRecord{}, false
	}
	return rec.Clone(), true
}

// Workspace returns the workspace attached to identity.
func (r *Registry) Workspace(identity string) (modelhub.ContainerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.workspaces[identity]
	if !ok {
		return modelhub.ContainerRecord{}, false
	}
	rec, ok := r.records[id]
	if !ok {
		return modelhub.ContainerRecord{}, false
	}
	return rec.Clone(), true
}

// Touch records a use of id at the given instant.
func (r *Registry) Touch(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(rec *modelhub.ContainerRecord) {
		if at.After(rec.LastUsedAt) {
			rec.LastUsedAt = at
		}
	})
}

// SetKillAfter sets the kill-after instant of id and its sidecars. nil clears it.
func (r *Registry) SetKillAfter(ctx context.Context, id string, killAfter *time.Time) error {
	return r.updateTree(ctx, id, func(rec *modelhub.ContainerRecord) {
		rec.KillAfterAt = copyTime(killAfter)
	})
}

func (r *Registry) SetStatus(ctx context.Context, id string, status modelhub.Status) error {
	return r.update(ctx, id, func(rec *modelhub.ContainerRecord) {
		rec.Status = status
	})
}

// Orphan detaches the workspace id from its identity. It stays registered with the given
// kill-after instant, inherited by its sidecars, until the sweep reclaims it.
func (r *Registry) Orphan(ctx context.Context, id string, killAfter time.Time) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok && r.workspaces[rec.Identity] == id {
		delete(r.workspaces, rec.Identity)
	}
	r.mu.Unlock()
	if !ok {
		return errdefs.ErrContainerNotFound
	}

	return r.updateTree(ctx, id, func(rec *modelhub.ContainerRecord) {
		rec.Orphaned = true
		rec.KillAfterAt = copyTime(&killAfter)
	})
}

// Delete removes id together with its sidecars and returns what was removed, sidecars first.
func (r *Registry) Delete(ctx context.Context, id string) []modelhub.ContainerRecord {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	var removed []modelhub.ContainerRecord
	for _, sid := range rec.Sidecars {
		if side, found := r.records[sid]; found {
			delete(r.records, sid)
			removed = append(removed, side)
		}
	}
	delete(r.records, id)
	removed = append(removed, rec)
	if r.workspaces[rec.Identity] == id {
		delete(r.workspaces, rec.Identity)
	}
	if rec.ParentID != "" {
		if parent, found := r.records[rec.ParentID]; found {
			parent.Sidecars = slices.DeleteFunc(parent.Sidecars, func(s string) bool { return s == id })
			r.records[parent.ID] = parent
		}
	}
	r.mu.Unlock()

	if r.persister != nil {
		for _, gone := range removed {
			if err := r.persister.Delete(ctx, gone.ID); err != nil {
				r.logger.WarnContext(ctx, "failed to delete container record", "id", gone.ID, "err", err)
			}
		}
	}
	return removed
}

// List returns all records ordered by start time, then id.
func (r *Registry) List() []modelhub.ContainerRecord {
	r.mu.RLock()
	out := make([]modelhub.ContainerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Expired returns the top-level records whose kill-after instant is at or before now.
// Sidecars are reclaimed through their parent.
func (r *Registry) Expired(now time.Time) []modelhub.ContainerRecord {
	var out []modelhub.ContainerRecord
	for _, rec := range r.List() {
		if rec.ParentID == "" && rec.Expired(now) {
			out = append(out, rec)
		}
	}
	return out
}

// Emit appends an event describing rec to the feed. Feed failures are logged, never returned.
func (r *Registry) Emit(ctx context.Context, typ modelhub.EventType, rec modelhub.ContainerRecord, msg string) {
	ev := modelhub.Event{
		Time:        r.now(),
		Type:        typ,
		ContainerID: rec.ID,
		Identity:    rec.Identity,
		Role:        rec.Role,
		Message:     msg,
	}
	if _, err := r.events.Append(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "failed to append event", "type", typ, "id", rec.ID, "err", err)
	}
}

// Events returns the page of events with Seq greater than after.
func (r *Registry) Events(ctx context.Context, after uint64, limit int) (modelhub.EventPage, error) {
	return r.events.Events(ctx, after, limit)
}

func (r *Registry) update(ctx context.Context, id string, fn func(*modelhub.ContainerRecord)) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return errdefs.ErrContainerNotFound
	}
	fn(&rec)
	r.records[id] = rec
	r.mu.Unlock()
	return r.persist(ctx, rec)
}

func (r *Registry) updateTree(ctx context.Context, id string, fn func(*modelhub.ContainerRecord)) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return errdefs.ErrContainerNotFound
	}
	fn(&rec)
	r.records[id] = rec
	changed := []modelhub.ContainerRecord{rec}
	for _, sid := range rec.Sidecars {
		side, found := r.records[sid]
		if !found {
			continue
		}
		fn(&side)
		r.records[sid] = side
		changed = append(changed, side)
	}
	r.mu.Unlock()
	return r.persist(ctx, changed...)
}

func (r *Registry) persist(ctx context.Context, recs ...modelhub.ContainerRecord) error {
	if r.persister == nil {
		return nil
	}
	for _, rec := range recs {
		if err := r.persister.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
