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

package provider

import (
	"fmt"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/opencontainers/go-digest"
)

// ValidateConfig rejects provider configurations that can never start a container.
func ValidateConfig(cfg modelhub.ProviderConfig) error {
	if cfg.Name == "" {
		return errdefs.ErrTemplateRequired
	}
	if cfg.Image == "" {
		return errdefs.ErrImageRequired
	}
	seen := make(map[string]struct{}, len(cfg.Env))
	for _, e := range cfg.Env {
		if e.Name == "" {
			return errdefs.ErrEmptyEnvName
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("%w: %s", errdefs.ErrDuplicateEnv, e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	if cfg.TTLSeconds != nil && *cfg.TTLSeconds <= 0 {
		return fmt.Errorf("%w: got %d", errdefs.ErrInvalidTTL, *cfg.TTLSeconds)
	}
	if cfg.OrphanGraceSeconds != nil && *cfg.OrphanGraceSeconds < 0 {
		return fmt.Errorf("%w: orphanGraceSeconds must not be negative, got %d",
			errdefs.ErrConfig, *cfg.OrphanGraceSeconds)
	}
	if _, err := facade.ParsePlatform(cfg.Platform); err != nil {
		return err
	}
	return nil
}

// IdentityKey derives the stable identity of a task for a template. The same template and
// task id always map to the same key.
func IdentityKey(template, taskID string) string {
	return digest.FromString(template + "\x00" + taskID).Encoded()
}

// WorkspaceLabels is the exact label set that identifies the workspace of identity.
func WorkspaceLabels(identity string) map[string]string {
	return map[string]string{
		modelhub.LabelIdentity: identity,
		modelhub.LabelRole:     string(modelhub.RoleWorkspace),
	}
}

// SidecarLabels is the exact label set that identifies the DinD sidecar of a workspace.
func SidecarLabels(identity, parentID string) map[string]string {
	return map[string]string{
		modelhub.LabelIdentity: identity,
		modelhub.LabelRole:     string(modelhub.RoleDinD),
		modelhub.LabelParent:   parentID,
	}
}
