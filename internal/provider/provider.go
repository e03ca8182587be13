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

// Package provider decides, per task, whether an existing sandbox container can be reused
// or a fresh one must be started. It is the only writer of workspace records.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// DockerHostEnv points the workspace at the DinD sidecar.
	DockerHostEnv   = "DOCKER_HOST"
	dindDockerHost  = "tcp://127.0.0.1:2375"
	dindTLSCertsEnv = "DOCKER_TLS_CERTDIR"
)

type Provider struct {
	logger    *slog.Logger
	cfg       modelhub.ProviderConfig
	platform  *ocispec.Platform
	runtime   facade.Runtime
	registry  *registry.Registry
	reclaimer *Reclaimer
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Provider)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New validates cfg and returns a provider for it.
func New(
	logger *slog.Logger,
	cfg modelhub.ProviderConfig,
	rt facade.Runtime,
	reg *registry.Registry,
	opts ...Option,
) (*Provider, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	platform, err := facade.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}
	logger = logging.OrNoop(logger)

	p := &Provider{
		logger:    logger.With("template", cfg.Name),
		cfg:       cfg,
		platform:  platform,
		runtime:   rt,
		registry:  reg,
		reclaimer: NewReclaimer(logger, rt, reg),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Config() modelhub.ProviderConfig {
	return p.cfg
}

// Identity returns the identity key of taskID under this provider's template.
func (p *Provider) Identity(taskID string) string {
	return IdentityKey(p.cfg.Name, taskID)
}

// Labels returns the label set that identifies the workspace of taskID.
func (p *Provider) Labels(taskID string) map[string]string {
	return WorkspaceLabels(p.Identity(taskID))
}

// Provide returns a running workspace container for taskID, reusing a compatible one when
// it exists. Calls for the same task are serialized; different tasks run in parallel.
func (p *Provider) Provide(ctx context.Context, taskID string) (modelhub.ContainerRecord, error) {
	if taskID == "" {
		return modelhub.ContainerRecord{}, errdefs.ErrTaskIDRequired
	}
	begin := p.now()
	identity := p.Identity(taskID)

	rec, outcome, err := p.lockedProvide(ctx, identity)
	p.metrics.ObserveProvide(p.cfg.Name, outcome, p.now().Sub(begin))
	if err != nil {
		p.logger.ErrorContext(ctx, "provide failed", "task", taskID, "identity", identity, "err", err)
		return modelhub.ContainerRecord{}, err
	}
	p.logger.DebugContext(ctx, "container provided", "task", taskID, "id", rec.ID, "outcome", outcome)
	return rec, nil
}

// lockedProvide decides under the identity lock, on records reloaded after taking it.
func (p *Provider) lockedProvide(ctx context.Context, identity string) (modelhub.ContainerRecord, string, error) {
	unlock, err := p.registry.Lock(ctx, identity)
	if err != nil {
		return modelhub.ContainerRecord{}, metrics.OutcomeFailed, err
	}
	defer unlock()
	if err = p.registry.Sync(ctx, identity); err != nil {
		return modelhub.ContainerRecord{}, metrics.OutcomeFailed, err
	}
	return p.provide(ctx, identity)
}

func (p *Provider) provide(ctx context.Context, identity string) (modelhub.ContainerRecord, string, error) {
	labels := WorkspaceLabels(identity)

	if existing := p.lookup(ctx, labels); existing != nil {
		if p.reusable(ctx, *existing) {
			rec, err := p.reuse(ctx, *existing)
			if err != nil {
				return modelhub.ContainerRecord{}, metrics.OutcomeFailed, err
			}
			return rec, metrics.OutcomeReused, nil
		}
	}

	rec, err := p.startWorkspace(ctx, identity)
	if err != nil {
		return modelhub.ContainerRecord{}, metrics.OutcomeFailed, err
	}
	return rec, metrics.OutcomeStarted, nil
}

// lookup finds the workspace for labels. Lookup errors count as no match. A container this
// registry already orphaned is never handed out again.
func (p *Provider) lookup(ctx context.Context, labels map[string]string) *modelhub.ContainerRecord {
	found, err := p.runtime.FindContainerByLabels(ctx, labels)
	if err != nil {
		if !errors.Is(err, errdefs.ErrLookupFailed) {
			err = fmt.Errorf("%w: %w", errdefs.ErrLookupFailed, err)
		}
		p.logger.WarnContext(ctx, "container lookup failed, starting fresh", "err", err)
		return nil
	}
	if found == nil {
		return nil
	}
	if known, ok := p.registry.Get(found.ID); ok && known.Orphaned {
		p.logger.DebugContext(ctx, "ignoring orphaned container", "id", found.ID)
		return nil
	}
	return found
}

// reusable decides whether found may serve the task. Rejected containers are orphaned.
func (p *Provider) reusable(ctx context.Context, found modelhub.ContainerRecord) bool {
	if found.Status != modelhub.StatusRunning {
		p.logger.DebugContext(ctx, "existing container is not running", "id", found.ID, "status", found.Status)
		p.orphan(ctx, found, p.now(), fmt.Sprintf("container is %s", found.Status))
		return false
	}
	if p.platform == nil {
		return true
	}

	live, err := p.runtime.GetContainerPlatform(ctx, found.ID)
	if err != nil {
		if !errors.Is(err, errdefs.ErrPlatformUnknown) {
			err = fmt.Errorf("%w: %w", errdefs.ErrPlatformUnknown, err)
		}
		p.logger.WarnContext(ctx, "cannot verify container platform, starting fresh", "id", found.ID, "err", err)
		p.orphan(ctx, found, p.orphanDeadline(), "platform unknown")
		return false
	}
	if !facade.PlatformsEqual(p.cfg.Platform, live) {
		p.logger.InfoContext(ctx, "container platform mismatch, starting fresh",
			"id", found.ID, "want", p.cfg.Platform, "have", live)
		p.orphan(ctx, found, p.orphanDeadline(),
			fmt.Sprintf("platform %s does not match %s", live, p.cfg.Platform))
		return false
	}
	return true
}

func (p *Provider) reuse(ctx context.Context, found modelhub.ContainerRecord) (modelhub.ContainerRecord, error) {
	if err := p.adopt(ctx, found); err != nil {
		return modelhub.ContainerRecord{}, err
	}
	now := p.now()
	if err := p.registry.Touch(ctx, found.ID, now); err != nil {
		return modelhub.ContainerRecord{}, err
	}
	if err := p.ensureSidecar(ctx, found.ID, false); err != nil {
		return modelhub.ContainerRecord{}, err
	}
	if err := p.applyTTL(ctx, found.ID, now); err != nil {
		return modelhub.ContainerRecord{}, err
	}

	rec, _ := p.registry.Get(found.ID)
	p.registry.Emit(ctx, modelhub.EventReuse, rec, "")
	return rec, nil
}

// adopt registers a container found in the runtime, refreshing what the runtime knows
// better than a restored record.
func (p *Provider) adopt(ctx context.Context, found modelhub.ContainerRecord) error {
	rec := found
	if known, ok := p.registry.Get(found.ID); ok {
		rec = known
		rec.Status = found.Status
		if len(found.Labels) > 0 {
			rec.Labels = found.Labels
		}
	}
	if rec.Runtime == "" {
		rec.Runtime = p.runtime.Name()
	}
	if rec.Identity == "" {
		rec.Identity = rec.Labels[modelhub.LabelIdentity]
	}
	if rec.Role == "" {
		rec.Role = modelhub.RoleWorkspace
	}
	if err := p.registry.Put(ctx, rec); err != nil {
		return err
	}
	if p.cfg.EnableDinD {
		p.adoptSidecar(ctx, rec)
	}
	return nil
}

func (p *Provider) adoptSidecar(ctx context.Context, ws modelhub.ContainerRecord) {
	side, err := p.runtime.FindContainerByLabels(ctx, SidecarLabels(ws.Identity, ws.ID))
	if err != nil || side == nil {
		return
	}
	if _, ok := p.registry.Get(side.ID); ok {
		return
	}
	rec := *side
	rec.Runtime = p.runtime.Name()
	rec.Identity = ws.Identity
	rec.Role = modelhub.RoleDinD
	rec.ParentID = ws.ID
	if err = p.registry.Put(ctx, rec); err != nil {
		p.logger.WarnContext(ctx, "failed to register sidecar", "id", rec.ID, "err", err)
	}
}

// orphan detaches found from its identity; the sweep reclaims it at killAfter.
func (p *Provider) orphan(ctx context.Context, found modelhub.ContainerRecord, killAfter time.Time, reason string) {
	if err := p.adopt(ctx, found); err != nil {
		p.logger.WarnContext(ctx, "failed to register orphan", "id", found.ID, "err", err)
		return
	}
	if err := p.registry.Orphan(ctx, found.ID, killAfter); err != nil {
		p.logger.WarnContext(ctx, "failed to orphan container", "id", found.ID, "err", err)
		return
	}
	p.metrics.IncOrphaned()
	rec, _ := p.registry.Get(found.ID)
	p.registry.Emit(ctx, modelhub.EventOrphan, rec, reason)
}

func (p *Provider) orphanDeadline() time.Time {
	if ttl, ok := p.cfg.TTL(); ok {
		return p.now().Add(ttl)
	}
	return p.now().Add(p.cfg.OrphanGrace())
}

func (p *Provider) startWorkspace(ctx context.Context, identity string) (modelhub.ContainerRecord, error) {
	spec := p.workspaceSpec(identity)
	rec, err := p.runtime.Start(ctx, spec)
	if err != nil {
		if !errors.Is(err, errdefs.ErrStartFailed) {
			err = fmt.Errorf("%w: %w", errdefs.ErrStartFailed, err)
		}
		return modelhub.ContainerRecord{}, err
	}

	now := p.now()
	rec = p.fillRecord(rec, spec, modelhub.RoleWorkspace, now)
	rec.Identity = identity
	if err = p.registry.Put(ctx, rec); err != nil {
		p.discard(ctx, rec.ID)
		return modelhub.ContainerRecord{}, err
	}

	if err = p.ensureSidecar(ctx, rec.ID, true); err != nil {
		return modelhub.ContainerRecord{}, err
	}
	if err = p.applyTTL(ctx, rec.ID, now); err != nil {
		return modelhub.ContainerRecord{}, err
	}

	rec, _ = p.registry.Get(rec.ID)
	p.registry.Emit(ctx, modelhub.EventStart, rec, "")
	return rec, nil
}

func (p *Provider) workspaceSpec(identity string) facade.StartSpec {
	labels := WorkspaceLabels(identity)
	labels[modelhub.LabelTemplate] = p.cfg.Name

	env := append([]modelhub.EnvVar(nil), p.cfg.Env...)
	if p.cfg.EnableDinD && !hasEnv(env, DockerHostEnv) {
		env = append(env, modelhub.EnvVar{Name: DockerHostEnv, Value: dindDockerHost})
	}

	spec := facade.StartSpec{
		Image:      p.cfg.Image,
		Cmd:        append([]string(nil), p.cfg.Cmd...),
		WorkingDir: p.cfg.WorkingDir,
		Env:        env,
		Mounts:     append([]modelhub.Mount(nil), p.cfg.Mounts...),
		Labels:     labels,
	}
	if p.platform != nil {
		platform := *p.platform
		spec.Platform = &platform
	}
	return spec
}

// ensureSidecar makes sure a DinD sidecar runs next to workspace id. A sidecar failure on a
// fresh workspace removes that workspace again.
func (p *Provider) ensureSidecar(ctx context.Context, id string, fresh bool) error {
	if !p.cfg.EnableDinD {
		return nil
	}
	ws, ok := p.registry.Get(id)
	if !ok {
		return errdefs.ErrContainerNotFound
	}
	for _, sid := range ws.Sidecars {
		if side, found := p.registry.Get(sid); found && side.Status == modelhub.StatusRunning {
			return nil
		}
	}

	spec := facade.StartSpec{
		Image:         p.cfg.SidecarImage(),
		Env:           []modelhub.EnvVar{{Name: dindTLSCertsEnv, Value: ""}},
		Labels:        SidecarLabels(ws.Identity, ws.ID),
		Privileged:    true,
		NetworkParent: ws.ID,
	}
	spec.Labels[modelhub.LabelTemplate] = p.cfg.Name

	side, err := p.runtime.Start(ctx, spec)
	if err != nil {
		if !errors.Is(err, errdefs.ErrStartFailed) {
			err = fmt.Errorf("%w: %w", errdefs.ErrStartFailed, err)
		}
		err = fmt.Errorf("dind sidecar: %w", err)
		if fresh {
			p.logger.WarnContext(ctx, "sidecar start failed, removing workspace", "id", ws.ID, "err", err)
			p.discard(ctx, ws.ID)
		}
		return err
	}

	side = p.fillRecord(side, spec, modelhub.RoleDinD, p.now())
	side.Identity = ws.Identity
	side.ParentID = ws.ID
	if err = p.registry.Put(ctx, side); err != nil {
		return err
	}
	p.registry.Emit(ctx, modelhub.EventStart, side, "")
	return nil
}

func (p *Provider) applyTTL(ctx context.Context, id string, now time.Time) error {
	ttl, ok := p.cfg.TTL()
	if !ok {
		return p.registry.SetKillAfter(ctx, id, nil)
	}
	killAfter := now.Add(ttl)
	return p.registry.SetKillAfter(ctx, id, &killAfter)
}

func (p *Provider) fillRecord(
	rec modelhub.ContainerRecord,
	spec facade.StartSpec,
	role modelhub.Role,
	now time.Time,
) modelhub.ContainerRecord {
	if rec.Labels == nil {
		rec.Labels = spec.Labels
	}
	rec.Role = role
	if rec.Image == "" {
		rec.Image = spec.Image
	}
	if rec.Runtime == "" {
		rec.Runtime = p.runtime.Name()
	}
	if spec.Platform != nil {
		rec.Platform = facade.FormatPlatform(spec.Platform)
	}
	if rec.Status == "" {
		rec.Status = modelhub.StatusRunning
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.LastUsedAt = now
	if rec.Mounts == nil {
		rec.Mounts = spec.Mounts
	}
	return rec
}

// discard removes a container this call just started, best effort.
func (p *Provider) discard(ctx context.Context, id string) {
	if _, err := p.reclaimer.Reclaim(ctx, id); err != nil {
		p.logger.WarnContext(ctx, "failed to remove container", "id", id, "err", err)
	}
}

// Exec runs argv in container id and records the use on success.
func (p *Provider) Exec(ctx context.Context, id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	return Exec(ctx, p.logger, p.runtime, p.registry, p.metrics, p.now, id, req)
}

// Teardown stops and removes the workspace of taskID and its sidecars.
func (p *Provider) Teardown(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errdefs.ErrTaskIDRequired
	}
	identity := p.Identity(taskID)
	unlock, err := p.registry.Lock(ctx, identity)
	if err != nil {
		return err
	}
	defer unlock()
	if err = p.registry.Sync(ctx, identity); err != nil {
		return err
	}

	id := ""
	if ws, ok := p.registry.Workspace(identity); ok {
		id = ws.ID
	} else if found := p.lookup(ctx, WorkspaceLabels(identity)); found != nil {
		if err = p.adopt(ctx, *found); err != nil {
			return err
		}
		id = found.ID
	}
	if id == "" {
		p.logger.DebugContext(ctx, "nothing to tear down", "task", taskID)
		return nil
	}
	_, err = p.reclaimer.Reclaim(ctx, id)
	return err
}

func hasEnv(env []modelhub.EnvVar, name string) bool {
	for _, e := range env {
		if e.Name == name {
			return true
		}
	}
	return false
}
