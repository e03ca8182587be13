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
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/provider"
)

func (b *Exec) provider(cfg modelhub.ProviderConfig) (*provider.Provider, error) {
	return provider.New(b.logger, cfg, b.runtime, b.registry,
		provider.WithMetrics(b.metrics),
		provider.WithClock(b.now),
	)
}

// Provide returns a running workspace container for taskID built from cfg, reusing one
// when possible.
func (b *Exec) Provide(cfg modelhub.ProviderConfig, taskID string) (modelhub.ContainerRecord, error) {
	p, err := b.provider(cfg)
	if err != nil {
		return modelhub.ContainerRecord{}, err
	}
	rec, err := p.Provide(b.ctx, taskID)
	if err != nil {
		return modelhub.ContainerRecord{}, err
	}
	b.metrics.SetContainers(b.registry.List())
	return rec, nil
}

// Teardown stops and removes the workspace of taskID with its sidecars.
func (b *Exec) Teardown(cfg modelhub.ProviderConfig, taskID string) error {
	p, err := b.provider(cfg)
	if err != nil {
		return err
	}
	if err = p.Teardown(b.ctx, taskID); err != nil {
		return err
	}
	b.metrics.SetContainers(b.registry.List())
	return nil
}

// ExecCommand runs req.Argv inside container id.
func (b *Exec) ExecCommand(id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	return provider.Exec(b.ctx, b.logger, b.runtime, b.registry, b.metrics, b.now, id, req)
}
