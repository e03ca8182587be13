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

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
	"github.com/eminwux/kukebox/internal/storage/sqlite"
)

var _ registry.EventSink = (*sqlite.EventStore)(nil)

func openStore(t *testing.T) *sqlite.EventStore {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "state", "events.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlite.Open("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	var last uint64
	for i, typ := range []modelhub.EventType{modelhub.EventStart, modelhub.EventReuse, modelhub.EventStop} {
		ev, err := store.Append(ctx, modelhub.Event{
			Time:        base.Add(time.Duration(i) * time.Second),
			Type:        typ,
			ContainerID: "c1",
			Identity:    "idA",
			Role:        modelhub.RoleWorkspace,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if ev.Seq <= last {
			t.Fatalf("seq %d not increasing after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestEventsPagination(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	for i := range 5 {
		_, err := store.Append(ctx, modelhub.Event{
			Time:        base.Add(time.Duration(i) * time.Minute),
			Type:        modelhub.EventStart,
			ContainerID: "c",
			Message:     "m",
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var (
		cursor uint64
		seen   int
	)
	for {
		page, err := store.Events(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(page.Events) == 0 {
			if page.Next != cursor {
				t.Fatalf("empty page moved cursor from %d to %d", cursor, page.Next)
			}
			break
		}
		for _, ev := range page.Events {
			if ev.Seq <= cursor {
				t.Fatalf("event seq %d at or before cursor %d", ev.Seq, cursor)
			}
			if ev.Message != "m" || ev.Type != modelhub.EventStart {
				t.Fatalf("unexpected event %+v", ev)
			}
		}
		seen += len(page.Events)
		cursor = page.Next
	}
	if seen != 5 {
		t.Fatalf("paged through %d events, want 5", seen)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	for i := range 4 {
		_, _ = store.Append(ctx, modelhub.Event{Time: base.Add(time.Duration(i) * time.Hour), Type: modelhub.EventStop})
	}
	n, err := store.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	page, _ := store.Events(ctx, 0, 10)
	if len(page.Events) != 2 {
		t.Fatalf("remaining %d events, want 2", len(page.Events))
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")

	first, err := sqlite.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, _ = first.Append(ctx, modelhub.Event{Time: time.Now(), Type: modelhub.EventExpire, ContainerID: "c9"})
	_ = first.Close()

	second, err := sqlite.Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	page, err := second.Events(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].ContainerID != "c9" {
		t.Fatalf("page = %+v", page)
	}
}
