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

package ctr

import (
	"context"
	"fmt"
	"sync"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/errdefs"
)

// handleCache keeps containerd handles by container id. A handle outlives its object when
// another client removes it, so lookups that hit not-found evict the id.
type handleCache[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

func (c *handleCache[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[id]
	return v, ok
}

func (c *handleCache[T]) put(id string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]T)
	}
	c.m[id] = v
}

func (c *handleCache[T]) evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
}

func (c *handleCache[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (r *Runtime) loadContainer(ctx context.Context, id string) (containerd.Container, error) {
	if container, ok := r.containers.get(id); ok {
		return container, nil
	}
	if err := r.connected(); err != nil {
		return nil, err
	}
	container, err := r.cClient.LoadContainer(r.namespaceCtx(ctx), id)
	if err != nil {
		// only not-found is mapped; connection errors pass through
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", ErrContainerNotFound, err)
		}
		return nil, err
	}
	r.containers.put(id, container)
	return container, nil
}

func (r *Runtime) loadTask(ctx context.Context, id string) (containerd.Task, error) {
	if task, ok := r.tasks.get(id); ok {
		return task, nil
	}
	container, err := r.loadContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	task, err := container.Task(r.namespaceCtx(ctx), nil)
	if err != nil {
		r.evictIfGone(id, err)
		return nil, fmt.Errorf("%w: %w", ErrTaskNotFound, err)
	}
	r.tasks.put(id, task)
	return task, nil
}

// forget drops every cached handle of id.
func (r *Runtime) forget(id string) {
	r.tasks.evict(id)
	r.containers.evict(id)
}

// evictIfGone forgets id when err reports that the object behind a handle no longer exists.
func (r *Runtime) evictIfGone(id string, err error) {
	if err != nil && errdefs.IsNotFound(err) {
		r.forget(id)
	}
}
