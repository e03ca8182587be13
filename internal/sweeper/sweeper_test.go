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

package sweeper_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
	"github.com/eminwux/kukebox/internal/sweeper"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var t0 = time.Date(2026, 7, 8, 9, 10, 11, 0, time.UTC)

type fakeReclaimer struct {
	reg       *registry.Registry
	mu        sync.Mutex
	calls     []string
	ReclaimFn func(id string) error
}

func (f *fakeReclaimer) Reclaim(ctx context.Context, id string) ([]modelhub.ContainerRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.ReclaimFn != nil {
		if err := f.ReclaimFn(id); err != nil {
			return nil, err
		}
	}
	return f.reg.Delete(ctx, id), nil
}

func put(t *testing.T, reg *registry.Registry, id, identity string, killAfter *time.Time) {
	t.Helper()
	rec := modelhub.ContainerRecord{
		ID:          id,
		Identity:    identity,
		Role:        modelhub.RoleWorkspace,
		Status:      modelhub.StatusRunning,
		KillAfterAt: killAfter,
	}
	if err := reg.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestSweepReclaimsExpired(t *testing.T) {
	reg := registry.New(nil, registry.WithClock(func() time.Time { return t0 }))
	put(t, reg, "expired", "idA", at(-time.Minute))
	put(t, reg, "due-now", "idB", at(0))
	put(t, reg, "fresh", "idC", at(time.Hour))
	put(t, reg, "forever", "idD", nil)
	_ = reg.Put(context.Background(), modelhub.ContainerRecord{
		ID: "side", Identity: "idA", Role: modelhub.RoleDinD, ParentID: "expired", KillAfterAt: at(-time.Minute),
	})

	rc := &fakeReclaimer{reg: reg}
	m := metrics.New()
	sw := sweeper.New(nil, reg, rc, sweeper.WithClock(func() time.Time { return t0 }), sweeper.WithMetrics(m))

	report, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Reclaimed) != 2 || report.Reclaimed[0] != "due-now" || report.Reclaimed[1] != "expired" {
		t.Fatalf("reclaimed = %v", report.Reclaimed)
	}
	if len(rc.calls) != 2 {
		t.Fatalf("reclaimer called for %v; sidecars go with their parent", rc.calls)
	}
	if _, ok := reg.Get("side"); ok {
		t.Fatal("sidecar not removed with its parent")
	}
	if len(reg.List()) != 2 {
		t.Fatalf("remaining records = %d, want 2", len(reg.List()))
	}
	if got := testutil.ToFloat64(m.SweepReclaims.WithLabelValues("ok")); got != 2 {
		t.Fatalf("reclaims counter = %v, want 2", got)
	}

	page, _ := reg.Events(context.Background(), 0, 10)
	var expires int
	for _, ev := range page.Events {
		if ev.Type == modelhub.EventExpire {
			expires++
		}
	}
	if expires != 2 {
		t.Fatalf("expire events = %d, want 2", expires)
	}
}

func TestSweepFailureIsRetried(t *testing.T) {
	reg := registry.New(nil)
	put(t, reg, "stuck", "idA", at(-time.Second))

	var fail atomic.Bool
	fail.Store(true)
	rc := &fakeReclaimer{reg: reg, ReclaimFn: func(string) error {
		if fail.Load() {
			return errors.New("runtime unreachable")
		}
		return nil
	}}
	sw := sweeper.New(nil, reg, rc, sweeper.WithClock(func() time.Time { return t0 }))

	report, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned %v; failures must only be reported", err)
	}
	if _, ok := report.Failed["stuck"]; !ok || len(report.Reclaimed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if _, ok := reg.Get("stuck"); !ok {
		t.Fatal("failed record must stay registered for the next sweep")
	}

	fail.Store(false)
	report, _ = sw.Sweep(context.Background())
	if len(report.Reclaimed) != 1 {
		t.Fatalf("retry report = %+v", report)
	}
}

func TestSweepRechecksUnderLock(t *testing.T) {
	reg := registry.New(nil)
	put(t, reg, "c1", "idA", at(-time.Second))
	rc := &fakeReclaimer{reg: reg}
	sw := sweeper.New(nil, reg, rc, sweeper.WithClock(func() time.Time { return t0 }))

	// Hold the identity lock, as an in-flight provide would, and extend the deadline.
	unlock, err := reg.Lock(context.Background(), "idA")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	done := make(chan sweeper.Report)
	go func() {
		report, _ := sw.Sweep(context.Background())
		done <- report
	}()

	time.Sleep(20 * time.Millisecond)
	if err = reg.SetKillAfter(context.Background(), "c1", at(time.Hour)); err != nil {
		t.Fatalf("SetKillAfter: %v", err)
	}
	unlock()

	report := <-done
	if len(report.Reclaimed) != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(rc.calls) != 0 {
		t.Fatalf("reclaimer called for %v", rc.calls)
	}
}

func TestSweepNothingToDo(t *testing.T) {
	reg := registry.New(nil)
	sw := sweeper.New(nil, reg, &fakeReclaimer{reg: reg})
	report, err := sw.Sweep(context.Background())
	if err != nil || len(report.Reclaimed) != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v, err = %v", report, err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	reg := registry.New(nil)
	sw := sweeper.New(nil, reg, &fakeReclaimer{reg: reg})
	if _, err := sw.Start(context.Background(), "every now and then"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartRunsScheduledSweeps(t *testing.T) {
	reg := registry.New(nil)
	put(t, reg, "c1", "idA", at(-time.Second))
	rc := &fakeReclaimer{reg: reg}
	sw := sweeper.New(nil, reg, rc, sweeper.WithClock(func() time.Time { return t0 }))

	stop, err := sw.Start(context.Background(), "@every 1s")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stop()

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := reg.Get("c1"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("scheduled sweep did not reclaim the expired container")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
