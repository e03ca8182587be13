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

package registry

import (
	"context"
	"sync"

	"github.com/eminwux/kukebox/internal/modelhub"
)

const (
	DefaultEventCapacity = 1024
	DefaultPageSize      = 100
)

// MemoryEvents is a bounded in-memory event feed. The oldest events are dropped once the
// capacity is reached; sequence numbers keep increasing.
type MemoryEvents struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	buf      []modelhub.Event
}

func NewMemoryEvents(capacity int) *MemoryEvents {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &MemoryEvents{capacity: capacity}
}

func (m *MemoryEvents) Append(_ context.Context, ev modelhub.Event) (modelhub.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ev.Seq = m.seq
	if len(m.buf) == m.capacity {
		copy(m.buf, m.buf[1:])
		m.buf = m.buf[:len(m.buf)-1]
	}
	m.buf = append(m.buf, ev)
	return ev, nil
}

func (m *MemoryEvents) Events(_ context.Context, after uint64, limit int) (modelhub.EventPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	page := modelhub.EventPage{Next: after}
	for _, ev := range m.buf {
		if ev.Seq <= after {
			continue
		}
		if len(page.Events) == limit {
			break
		}
		page.Events = append(page.Events, ev)
		page.Next = ev.Seq
	}
	return page, nil
}
