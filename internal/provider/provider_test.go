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

package provider_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/provider"
	"github.com/eminwux/kukebox/internal/registry"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var t0 = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func clock() time.Time { return t0 }

// fakeRuntime keeps containers in memory. The Fn fields override the default behavior.
type fakeRuntime struct {
	mu         sync.Mutex
	seq        int
	containers map[string]modelhub.ContainerRecord
	platforms  map[string]string
	starts     []facade.StartSpec
	stopped    []string
	removed    []string

	StartFn    func(facade.StartSpec) (modelhub.ContainerRecord, error)
	FindFn     func(map[string]string) (*modelhub.ContainerRecord, error)
	PlatformFn func(string) (string, error)
	ExecFn     func(string, facade.ExecRequest) (modelhub.ExecResult, error)
	RemoveFn   func(string) error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers: map[string]modelhub.ContainerRecord{},
		platforms:  map[string]string{},
	}
}

func (f *fakeRuntime) Name() string { return "fake" }

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) seed(rec modelhub.ContainerRecord, platform string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[rec.ID] = rec
	if platform != "" {
		f.platforms[rec.ID] = platform
	}
}

func (f *fakeRuntime) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func (f *fakeRuntime) Start(_ context.Context, spec facade.StartSpec) (modelhub.ContainerRecord, error) {
	f.mu.Lock()
	f.starts = append(f.starts, spec)
	f.mu.Unlock()

	if f.StartFn != nil {
		return f.StartFn(spec)
	}
	// Give concurrent callers a chance to race.
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec := modelhub.ContainerRecord{
		ID:        fmt.Sprintf("ctr-%02d", f.seq),
		Labels:    maps.Clone(spec.Labels),
		Image:     spec.Image,
		Status:    modelhub.StatusRunning,
		StartedAt: t0.Add(time.Duration(f.seq) * time.Second),
	}
	rec.Identity = rec.Labels[modelhub.LabelIdentity]
	rec.Role = modelhub.Role(rec.Labels[modelhub.LabelRole])
	f.containers[rec.ID] = rec
	if spec.Platform != nil {
		f.platforms[rec.ID] = facade.FormatPlatform(spec.Platform)
	}
	return rec, nil
}

func (f *fakeRuntime) FindContainerByLabels(
	_ context.Context,
	labels map[string]string,
) (*modelhub.ContainerRecord, error) {
	if f.FindFn != nil {
		return f.FindFn(labels)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []modelhub.ContainerRecord
	for _, rec := range f.containers {
		if facade.MatchLabels(rec.Labels, labels) {
			matches = append(matches, rec)
		}
	}
	return facade.PickBest(matches), nil
}

func (f *fakeRuntime) Status(_ context.Context, id string) (modelhub.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.containers[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", errdefs.ErrContainerNotFound, id)
	}
	return rec.Status, nil
}

func (f *fakeRuntime) GetContainerPlatform(_ context.Context, id string) (string, error) {
	if f.PlatformFn != nil {
		return f.PlatformFn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.platforms[id]
	if !ok {
		return "", fmt.Errorf("%w: no platform for %s", errdefs.ErrPlatformUnknown, id)
	}
	return p, nil
}

func (f *fakeRuntime) Exec(_ context.Context, id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	if f.ExecFn != nil {
		return f.ExecFn(id, req)
	}
	return modelhub.ExecResult{}, nil
}

func (f *fakeRuntime) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	if rec, ok := f.containers[id]; ok {
		rec.Status = modelhub.StatusStopped
		f.containers[id] = rec
	}
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, id string) error {
	if f.RemoveFn != nil {
		if err := f.RemoveFn(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	delete(f.containers, id)
	return nil
}

func baseConfig() modelhub.ProviderConfig {
	return modelhub.ProviderConfig{
		Name:       "python",
		Image:      "docker.io/library/python:3.12",
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: "/workspace",
		Env:        []modelhub.EnvVar{{Name: "LANG", Value: "C.UTF-8"}},
	}
}

func newProvider(
	t *testing.T,
	cfg modelhub.ProviderConfig,
	rt *fakeRuntime,
	opts ...provider.Option,
) (*provider.Provider, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil, registry.WithClock(clock))
	opts = append([]provider.Option{provider.WithClock(clock)}, opts...)
	p, err := provider.New(nil, cfg, rt, reg, opts...)
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	return p, reg
}

func seedWorkspace(p *provider.Provider, rt *fakeRuntime, taskID, id, platform string) {
	labels := p.Labels(taskID)
	labels[modelhub.LabelTemplate] = p.Config().Name
	rt.seed(modelhub.ContainerRecord{
		ID:        id,
		Labels:    labels,
		Identity:  labels[modelhub.LabelIdentity],
		Role:      modelhub.RoleWorkspace,
		Status:    modelhub.StatusRunning,
		StartedAt: t0.Add(-time.Hour),
	}, platform)
}

func TestProvideReusesRunningContainer(t *testing.T) {
	rt := newFakeRuntime()
	p, reg := newProvider(t, baseConfig(), rt)
	seedWorkspace(p, rt, "task-1", "existing", "linux/amd64")

	rec, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if rec.ID != "existing" {
		t.Fatalf("got %q, want existing", rec.ID)
	}
	if n := rt.startCount(); n != 0 {
		t.Fatalf("Start called %d times on reuse", n)
	}
	if !rec.LastUsedAt.Equal(t0) {
		t.Fatalf("LastUsedAt = %v, want %v", rec.LastUsedAt, t0)
	}
	if ws, ok := reg.Workspace(p.Identity("task-1")); !ok || ws.ID != "existing" {
		t.Fatalf("registry workspace = %+v, %v", ws, ok)
	}
}

func TestProvidePlatformPassThrough(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		wantOS   string
		wantArch string
	}{
		{name: "unset platform is omitted"},
		{name: "configured platform is passed", platform: "linux/amd64", wantOS: "linux", wantArch: "amd64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newFakeRuntime()
			cfg := baseConfig()
			cfg.Platform = tt.platform
			p, _ := newProvider(t, cfg, rt)

			rec, err := p.Provide(context.Background(), "task-1")
			if err != nil {
				t.Fatalf("Provide: %v", err)
			}
			if len(rt.starts) != 1 {
				t.Fatalf("Start called %d times, want 1", len(rt.starts))
			}
			got := rt.starts[0].Platform
			if tt.platform == "" {
				if got != nil {
					t.Fatalf("Platform = %+v, want nil", got)
				}
				if rec.Platform != "" {
					t.Fatalf("record platform = %q, want empty", rec.Platform)
				}
				return
			}
			if got == nil || got.OS != tt.wantOS || got.Architecture != tt.wantArch {
				t.Fatalf("Platform = %+v", got)
			}
			if rec.Platform != tt.platform {
				t.Fatalf("record platform = %q", rec.Platform)
			}
		})
	}
}

func TestProvideStartSpec(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.Mounts = []modelhub.Mount{{Source: "/srv/data", Destination: "/data"}}
	p, _ := newProvider(t, cfg, rt)

	if _, err := p.Provide(context.Background(), "task-1"); err != nil {
		t.Fatalf("Provide: %v", err)
	}
	spec := rt.starts[0]
	if spec.Image != cfg.Image || spec.WorkingDir != cfg.WorkingDir || len(spec.Cmd) != 2 {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.Labels[modelhub.LabelIdentity] != p.Identity("task-1") ||
		spec.Labels[modelhub.LabelRole] != string(modelhub.RoleWorkspace) ||
		spec.Labels[modelhub.LabelTemplate] != "python" {
		t.Fatalf("labels = %v", spec.Labels)
	}
	if len(spec.Mounts) != 1 || spec.Mounts[0].Destination != "/data" {
		t.Fatalf("mounts = %v", spec.Mounts)
	}
	if spec.Privileged || spec.NetworkParent != "" {
		t.Fatalf("workspace must not be privileged or share a network: %+v", spec)
	}
}

func TestProvidePlatformGating(t *testing.T) {
	tests := []struct {
		name      string
		want      string
		live      string
		wantReuse bool
	}{
		{name: "mismatch starts fresh", want: "linux/arm64", live: "linux/amd64"},
		{name: "exact match reuses", want: "linux/amd64", live: "linux/amd64", wantReuse: true},
		{name: "normalized match reuses", want: "linux/arm64/v8", live: "linux/arm64", wantReuse: true},
		{name: "architecture alias reuses", want: "linux/amd64", live: "linux/x86_64", wantReuse: true},
		{name: "variant mismatch starts fresh", want: "linux/arm/v7", live: "linux/arm/v6"},
		{name: "arm64 v9 is not the default variant", want: "linux/arm64", live: "linux/arm64/v9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newFakeRuntime()
			cfg := baseConfig()
			cfg.Platform = tt.want
			p, reg := newProvider(t, cfg, rt)
			seedWorkspace(p, rt, "task-1", "old", tt.live)

			rec, err := p.Provide(context.Background(), "task-1")
			if err != nil {
				t.Fatalf("Provide: %v", err)
			}
			if tt.wantReuse {
				if rec.ID != "old" || rt.startCount() != 0 {
					t.Fatalf("expected reuse, got %q after %d starts", rec.ID, rt.startCount())
				}
				return
			}
			if rec.ID == "old" || rt.startCount() != 1 {
				t.Fatalf("expected fresh start, got %q after %d starts", rec.ID, rt.startCount())
			}
			old, ok := reg.Get("old")
			if !ok || !old.Orphaned {
				t.Fatalf("old container should be orphaned, got %+v", old)
			}
			wantKill := t0.Add(modelhub.DefaultOrphanGrace)
			if old.KillAfterAt == nil || !old.KillAfterAt.Equal(wantKill) {
				t.Fatalf("orphan KillAfterAt = %v, want %v", old.KillAfterAt, wantKill)
			}
			if len(rt.stopped) != 0 {
				t.Fatalf("orphan must not be stopped, stopped %v", rt.stopped)
			}
		})
	}
}

func TestProvideOrphanUsesTTL(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.Platform = "linux/arm64"
	ttl := int64(120)
	cfg.TTLSeconds = &ttl
	p, reg := newProvider(t, cfg, rt)
	seedWorkspace(p, rt, "task-1", "old", "linux/amd64")

	if _, err := p.Provide(context.Background(), "task-1"); err != nil {
		t.Fatalf("Provide: %v", err)
	}
	old, _ := reg.Get("old")
	if old.KillAfterAt == nil || !old.KillAfterAt.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("orphan KillAfterAt = %v", old.KillAfterAt)
	}
}

func TestProvideOrphanNotReusedLater(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.Platform = "linux/arm64"
	p, _ := newProvider(t, cfg, rt)
	seedWorkspace(p, rt, "task-1", "old", "linux/amd64")

	first, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	second, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if second.ID != first.ID || rt.startCount() != 1 {
		t.Fatalf("second provide = %q after %d starts, want %q reused", second.ID, rt.startCount(), first.ID)
	}
}

func TestProvidePlatformUnknownStartsFresh(t *testing.T) {
	rt := newFakeRuntime()
	rt.PlatformFn = func(string) (string, error) { return "", errors.New("inspect: connection reset") }
	cfg := baseConfig()
	cfg.Platform = "linux/amd64"
	p, _ := newProvider(t, cfg, rt)
	seedWorkspace(p, rt, "task-1", "old", "")

	rec, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if rec.ID == "old" || rt.startCount() != 1 {
		t.Fatalf("expected fresh start, got %q", rec.ID)
	}
}

func TestProvideLookupFailureStartsFresh(t *testing.T) {
	rt := newFakeRuntime()
	rt.FindFn = func(map[string]string) (*modelhub.ContainerRecord, error) {
		return nil, errors.New("daemon unavailable")
	}
	p, reg := newProvider(t, baseConfig(), rt)

	rec, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if rt.startCount() != 1 {
		t.Fatalf("Start called %d times, want 1", rt.startCount())
	}
	if _, ok := reg.Get(rec.ID); !ok {
		t.Fatal("started container not registered")
	}
}

func TestProvideStoppedContainerStartsFresh(t *testing.T) {
	rt := newFakeRuntime()
	p, reg := newProvider(t, baseConfig(), rt)
	seedWorkspace(p, rt, "task-1", "old", "")
	_ = rt.Stop(context.Background(), "old")
	rt.stopped = nil

	rec, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if rec.ID == "old" {
		t.Fatal("stopped container must not be reused")
	}
	old, _ := reg.Get("old")
	if !old.Orphaned || !old.Expired(t0) {
		t.Fatalf("stopped container should be due for the sweep, got %+v", old)
	}
}

func TestProvideStartFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.StartFn = func(facade.StartSpec) (modelhub.ContainerRecord, error) {
		return modelhub.ContainerRecord{}, errors.New("pull access denied")
	}
	m := metrics.New()
	p, reg := newProvider(t, baseConfig(), rt, provider.WithMetrics(m))

	_, err := p.Provide(context.Background(), "task-1")
	if !errors.Is(err, errdefs.ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if n := len(reg.List()); n != 0 {
		t.Fatalf("registry has %d records after failed start", n)
	}
	if got := testutil.ToFloat64(m.ProvideTotal.WithLabelValues("python", metrics.OutcomeFailed)); got != 1 {
		t.Fatalf("failed provide counter = %v, want 1", got)
	}
}

func TestProvideConcurrentSameTask(t *testing.T) {
	rt := newFakeRuntime()
	m := metrics.New()
	p, _ := newProvider(t, baseConfig(), rt, provider.WithMetrics(m))

	const n = 16
	var (
		wg   sync.WaitGroup
		ids  = make([]string, n)
		errs = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := p.Provide(context.Background(), "task-1")
			ids[i], errs[i] = rec.ID, err
		}()
	}
	wg.Wait()

	if got := rt.startCount(); got != 1 {
		t.Fatalf("Start called %d times, want 1", got)
	}
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("call %d returned %q, want %q", i, ids[i], ids[0])
		}
	}
	if got := testutil.ToFloat64(m.ProvideTotal.WithLabelValues("python", metrics.OutcomeReused)); got != n-1 {
		t.Fatalf("reused counter = %v, want %d", got, n-1)
	}
}

func TestProvideDistinctTasks(t *testing.T) {
	rt := newFakeRuntime()
	p, _ := newProvider(t, baseConfig(), rt)

	a, err := p.Provide(context.Background(), "task-a")
	if err != nil {
		t.Fatalf("Provide a: %v", err)
	}
	b, err := p.Provide(context.Background(), "task-b")
	if err != nil {
		t.Fatalf("Provide b: %v", err)
	}
	if a.ID == b.ID || rt.startCount() != 2 {
		t.Fatalf("distinct tasks must get distinct containers: %q %q", a.ID, b.ID)
	}
}

func TestProvideDinDSidecar(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.EnableDinD = true
	ttl := int64(300)
	cfg.TTLSeconds = &ttl
	p, reg := newProvider(t, cfg, rt)

	ws, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if len(rt.starts) != 2 {
		t.Fatalf("Start called %d times, want 2", len(rt.starts))
	}

	wsSpec, sideSpec := rt.starts[0], rt.starts[1]
	var dockerHost string
	for _, e := range wsSpec.Env {
		if e.Name == provider.DockerHostEnv {
			dockerHost = e.Value
		}
	}
	if dockerHost == "" {
		t.Fatalf("workspace env lacks %s: %v", provider.DockerHostEnv, wsSpec.Env)
	}
	if sideSpec.Image != modelhub.DefaultDinDImage || !sideSpec.Privileged || sideSpec.NetworkParent != ws.ID {
		t.Fatalf("sidecar spec = %+v", sideSpec)
	}
	if sideSpec.Labels[modelhub.LabelRole] != string(modelhub.RoleDinD) ||
		sideSpec.Labels[modelhub.LabelParent] != ws.ID {
		t.Fatalf("sidecar labels = %v", sideSpec.Labels)
	}

	if len(ws.Sidecars) != 1 {
		t.Fatalf("workspace sidecars = %v", ws.Sidecars)
	}
	side, ok := reg.Get(ws.Sidecars[0])
	if !ok || side.ParentID != ws.ID || side.Role != modelhub.RoleDinD {
		t.Fatalf("sidecar record = %+v", side)
	}
	wantKill := t0.Add(5 * time.Minute)
	if ws.KillAfterAt == nil || !ws.KillAfterAt.Equal(wantKill) {
		t.Fatalf("workspace KillAfterAt = %v", ws.KillAfterAt)
	}
	if side.KillAfterAt == nil || !side.KillAfterAt.Equal(wantKill) {
		t.Fatalf("sidecar KillAfterAt = %v", side.KillAfterAt)
	}

	// Reuse keeps the running sidecar.
	again, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("second Provide: %v", err)
	}
	if again.ID != ws.ID || len(rt.starts) != 2 {
		t.Fatalf("reuse restarted containers: %q, %d starts", again.ID, len(rt.starts))
	}
}

func TestProvideDinDKeepsConfiguredDockerHost(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.EnableDinD = true
	cfg.Env = append(cfg.Env, modelhub.EnvVar{Name: provider.DockerHostEnv, Value: "unix:///custom.sock"})
	p, _ := newProvider(t, cfg, rt)

	if _, err := p.Provide(context.Background(), "task-1"); err != nil {
		t.Fatalf("Provide: %v", err)
	}
	var count int
	for _, e := range rt.starts[0].Env {
		if e.Name == provider.DockerHostEnv {
			count++
			if e.Value != "unix:///custom.sock" {
				t.Fatalf("DOCKER_HOST overridden: %q", e.Value)
			}
		}
	}
	if count != 1 {
		t.Fatalf("DOCKER_HOST appears %d times", count)
	}
}

func TestProvideDinDFailureRemovesWorkspace(t *testing.T) {
	rt := newFakeRuntime()
	rt.StartFn = func(spec facade.StartSpec) (modelhub.ContainerRecord, error) {
		if spec.Privileged {
			return modelhub.ContainerRecord{}, fmt.Errorf("%w: privileged mode denied", errdefs.ErrStartFailed)
		}
		rec := modelhub.ContainerRecord{
			ID:     "ws",
			Labels: maps.Clone(spec.Labels),
			Status: modelhub.StatusRunning,
		}
		rt.seed(rec, "")
		return rec, nil
	}
	cfg := baseConfig()
	cfg.EnableDinD = true
	p, reg := newProvider(t, cfg, rt)

	_, err := p.Provide(context.Background(), "task-1")
	if !errors.Is(err, errdefs.ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if len(rt.removed) != 1 || rt.removed[0] != "ws" {
		t.Fatalf("removed = %v, want [ws]", rt.removed)
	}
	if n := len(reg.List()); n != 0 {
		t.Fatalf("registry has %d records", n)
	}
}

func TestProvideTTLRecomputedOnReuse(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	ttl := int64(60)
	cfg.TTLSeconds = &ttl

	now := t0
	reg := registry.New(nil)
	p, err := provider.New(nil, cfg, rt, reg, provider.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}

	first, _ := p.Provide(context.Background(), "task-1")
	if !first.KillAfterAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("first KillAfterAt = %v", first.KillAfterAt)
	}
	now = t0.Add(30 * time.Second)
	second, _ := p.Provide(context.Background(), "task-1")
	if !second.KillAfterAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("second KillAfterAt = %v", second.KillAfterAt)
	}
}

func TestProvideNoTTL(t *testing.T) {
	rt := newFakeRuntime()
	p, _ := newProvider(t, baseConfig(), rt)
	rec, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if rec.KillAfterAt != nil {
		t.Fatalf("KillAfterAt = %v, want nil", rec.KillAfterAt)
	}
}

func TestProvideRequiresTaskID(t *testing.T) {
	p, _ := newProvider(t, baseConfig(), newFakeRuntime())
	if _, err := p.Provide(context.Background(), ""); !errors.Is(err, errdefs.ErrTaskIDRequired) {
		t.Fatalf("expected ErrTaskIDRequired, got %v", err)
	}
}

func TestTeardown(t *testing.T) {
	rt := newFakeRuntime()
	cfg := baseConfig()
	cfg.EnableDinD = true
	p, reg := newProvider(t, cfg, rt)

	ws, err := p.Provide(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	sideID := ws.Sidecars[0]

	if err = p.Teardown(context.Background(), "task-1"); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(rt.removed) != 2 || rt.removed[0] != sideID || rt.removed[1] != ws.ID {
		t.Fatalf("removed = %v, want sidecar then workspace", rt.removed)
	}
	if n := len(reg.List()); n != 0 {
		t.Fatalf("registry has %d records", n)
	}
	// Nothing left: idempotent.
	if err = p.Teardown(context.Background(), "task-1"); err != nil {
		t.Fatalf("second Teardown: %v", err)
	}
}

func TestTeardownFindsUnregisteredContainer(t *testing.T) {
	rt := newFakeRuntime()
	p, _ := newProvider(t, baseConfig(), rt)
	seedWorkspace(p, rt, "task-1", "left-behind", "")

	if err := p.Teardown(context.Background(), "task-1"); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(rt.removed) != 1 || rt.removed[0] != "left-behind" {
		t.Fatalf("removed = %v", rt.removed)
	}
}

func TestExec(t *testing.T) {
	rt := newFakeRuntime()
	m := metrics.New()
	now := t0
	reg := registry.New(nil)
	p, err := provider.New(nil, baseConfig(), rt, reg,
		provider.WithClock(func() time.Time { return now }), provider.WithMetrics(m))
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	ws, _ := p.Provide(context.Background(), "task-1")

	rt.ExecFn = func(id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
		if req.Stdout != nil {
			_, _ = io.WriteString(req.Stdout, "hi\n")
		}
		return modelhub.ExecResult{ExitCode: 2, Stdout: "hi\n"}, nil
	}
	now = t0.Add(time.Minute)
	res, err := p.Exec(context.Background(), ws.ID, facade.ExecRequest{Argv: []string{"false"}})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 2 || res.Stdout != "hi\n" {
		t.Fatalf("result = %+v", res)
	}
	rec, _ := reg.Get(ws.ID)
	if !rec.LastUsedAt.Equal(now) {
		t.Fatalf("LastUsedAt = %v, want %v", rec.LastUsedAt, now)
	}
	if got := testutil.ToFloat64(m.ExecTotal.WithLabelValues("fake", metrics.ExecNonZero)); got != 1 {
		t.Fatalf("nonzero exec counter = %v", got)
	}

	rt.ExecFn = func(string, facade.ExecRequest) (modelhub.ExecResult, error) {
		return modelhub.ExecResult{}, fmt.Errorf("%w: container gone", errdefs.ErrExecFailed)
	}
	now = t0.Add(time.Hour)
	if _, err = p.Exec(context.Background(), ws.ID, facade.ExecRequest{Argv: []string{"true"}}); !errors.Is(err, errdefs.ErrExecFailed) {
		t.Fatalf("expected ErrExecFailed, got %v", err)
	}
	rec, _ = reg.Get(ws.ID)
	if rec.LastUsedAt.Equal(now) {
		t.Fatal("failed exec must not update LastUsedAt")
	}

	if _, err = p.Exec(context.Background(), ws.ID, facade.ExecRequest{}); !errors.Is(err, errdefs.ErrEmptyArgv) {
		t.Fatalf("expected ErrEmptyArgv, got %v", err)
	}
}
