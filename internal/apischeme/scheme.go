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

package apischeme

import (
	"fmt"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
	ext "github.com/eminwux/kukebox/pkg/api/model/v1beta1"
)

// Supported versions.
const (
	VersionV1Beta1 = ext.APIVersionV1Beta1
)

// ConvertTemplateDocToInternal converts an external TemplateDoc to a provider configuration.
func ConvertTemplateDocToInternal(in ext.TemplateDoc) (modelhub.ProviderConfig, error) {
	if in.Kind != "" && in.Kind != ext.KindTemplate {
		return modelhub.ProviderConfig{}, fmt.Errorf("%w: %q, want %q", errdefs.ErrUnknownKind, in.Kind, ext.KindTemplate)
	}
	switch in.APIVersion {
	case VersionV1Beta1, "": // default/empty treated as v1beta1
		cfg := modelhub.ProviderConfig{
			Name:               in.Metadata.Name,
			Image:              in.Spec.Image,
			Cmd:                in.Spec.Cmd,
			WorkingDir:         in.Spec.WorkingDir,
			Platform:           in.Spec.Platform,
			EnableDinD:         in.Spec.EnableDinD,
			DinDImage:          in.Spec.DinDImage,
			TTLSeconds:         in.Spec.TTLSeconds,
			OrphanGraceSeconds: in.Spec.OrphanGraceSeconds,
		}
		for _, e := range in.Spec.Env {
			cfg.Env = append(cfg.Env, modelhub.EnvVar{Name: e.Name, Value: e.Value})
		}
		cfg.Mounts = mountsToInternal(in.Spec.Mounts)
		return cfg, nil
	default:
		return modelhub.ProviderConfig{}, fmt.Errorf("%w for Template: %s", errdefs.ErrUnsupportedAPIVersion, in.APIVersion)
	}
}

// NormalizeTemplate takes an external TemplateDoc and returns the internal configuration and
// chosen apiVersion.
func NormalizeTemplate(req ext.TemplateDoc) (modelhub.ProviderConfig, ext.Version, error) {
	version := req.APIVersion
	if version == "" {
		version = VersionV1Beta1
	}
	internal, err := ConvertTemplateDocToInternal(req)
	if err != nil {
		return modelhub.ProviderConfig{}, "", err
	}
	return internal, version, nil
}

// BuildTemplateExternalFromInternal emits an external TemplateDoc for a provider configuration.
func BuildTemplateExternalFromInternal(in modelhub.ProviderConfig, apiVersion ext.Version) (ext.TemplateDoc, error) {
	switch apiVersion {
	case VersionV1Beta1, "": // default to v1beta1
		doc := ext.TemplateDoc{
			APIVersion: VersionV1Beta1,
			Kind:       ext.KindTemplate,
			Metadata:   ext.TemplateMetadata{Name: in.Name},
			Spec: ext.TemplateSpec{
				Image:              in.Image,
				Cmd:                in.Cmd,
				WorkingDir:         in.WorkingDir,
				Mounts:             mountsToExternal(in.Mounts),
				Platform:           in.Platform,
				EnableDinD:         in.EnableDinD,
				DinDImage:          in.DinDImage,
				TTLSeconds:         in.TTLSeconds,
				OrphanGraceSeconds: in.OrphanGraceSeconds,
			},
		}
		for _, e := range in.Env {
			doc.Spec.Env = append(doc.Spec.Env, ext.EnvVar{Name: e.Name, Value: e.Value})
		}
		return doc, nil
	default:
		return ext.TemplateDoc{}, fmt.Errorf("%w for Template: %s", errdefs.ErrUnsupportedAPIVersion, apiVersion)
	}
}

// BuildContainerExternalFromInternal emits a container summary document for a record.
func BuildContainerExternalFromInternal(in modelhub.ContainerRecord, apiVersion ext.Version) (ext.ContainerDoc, error) {
	switch apiVersion {
	case VersionV1Beta1, "":
		doc := ext.ContainerDoc{
			APIVersion: VersionV1Beta1,
			Kind:       ext.KindContainer,
			Metadata: ext.ContainerMetadata{
				Name:   in.ID,
				Labels: in.Labels,
			},
			Spec: ext.ContainerSpec{
				ContainerID: in.ID,
				Identity:    in.Identity,
				Role:        string(in.Role),
				Image:       in.Image,
				Runtime:     in.Runtime,
				Platform:    in.Platform,
				ParentID:    in.ParentID,
				Mounts:      mountsToExternal(in.Mounts),
			},
			Status: ext.ContainerStatus{
				State:      stateToExternal(in.Status),
				StartedAt:  in.StartedAt,
				LastUsedAt: in.LastUsedAt,
				Sidecars:   in.Sidecars,
				Orphaned:   in.Orphaned,
			},
		}
		if in.KillAfterAt != nil {
			t := *in.KillAfterAt
			doc.Status.KillAfterAt = &t
		}
		return doc, nil
	default:
		return ext.ContainerDoc{}, fmt.Errorf("%w for Container: %s", errdefs.ErrUnsupportedAPIVersion, apiVersion)
	}
}

// ConvertContainerDocToInternal converts a container document back to a record.
func ConvertContainerDocToInternal(in ext.ContainerDoc) (modelhub.ContainerRecord, error) {
	switch in.APIVersion {
	case VersionV1Beta1, "":
		rec := modelhub.ContainerRecord{
			ID:         in.Spec.ContainerID,
			Identity:   in.Spec.Identity,
			Labels:     in.Metadata.Labels,
			Role:       modelhub.Role(in.Spec.Role),
			Image:      in.Spec.Image,
			Runtime:    in.Spec.Runtime,
			Platform:   in.Spec.Platform,
			Status:     stateToInternal(in.Status.State),
			StartedAt:  in.Status.StartedAt,
			LastUsedAt: in.Status.LastUsedAt,
			ParentID:   in.Spec.ParentID,
			Sidecars:   in.Status.Sidecars,
			Mounts:     mountsToInternal(in.Spec.Mounts),
			Orphaned:   in.Status.Orphaned,
		}
		if rec.ID == "" {
			rec.ID = in.Metadata.Name
		}
		if rec.ID == "" {
			return modelhub.ContainerRecord{}, fmt.Errorf("%w: %w", errdefs.ErrConversionFailed, errdefs.ErrContainerIDRequired)
		}
		if in.Status.KillAfterAt != nil {
			t := *in.Status.KillAfterAt
			rec.KillAfterAt = &t
		}
		return rec, nil
	default:
		return modelhub.ContainerRecord{}, fmt.Errorf("%w for Container: %s", errdefs.ErrUnsupportedAPIVersion, in.APIVersion)
	}
}

// BuildEventListExternalFromInternal emits one page of the event feed.
func BuildEventListExternalFromInternal(in modelhub.EventPage, apiVersion ext.Version) (ext.EventListDoc, error) {
	switch apiVersion {
	case VersionV1Beta1, "":
		doc := ext.EventListDoc{
			APIVersion: VersionV1Beta1,
			Kind:       ext.KindEventList,
			Items:      make([]ext.EventDoc, 0, len(in.Events)),
			Next:       in.Next,
		}
		for _, ev := range in.Events {
			doc.Items = append(doc.Items, ext.EventDoc{
				Seq:         ev.Seq,
				Time:        ev.Time,
				Type:        string(ev.Type),
				ContainerID: ev.ContainerID,
				Identity:    ev.Identity,
				Role:        string(ev.Role),
				Message:     ev.Message,
			})
		}
		return doc, nil
	default:
		return ext.EventListDoc{}, fmt.Errorf("%w for EventList: %s", errdefs.ErrUnsupportedAPIVersion, apiVersion)
	}
}

func stateToExternal(s modelhub.Status) ext.ContainerState {
	switch s {
	case modelhub.StatusStarting:
		return ext.ContainerStateStarting
	case modelhub.StatusRunning:
		return ext.ContainerStateRunning
	case modelhub.StatusStopping:
		return ext.ContainerStateStopping
	case modelhub.StatusStopped:
		return ext.ContainerStateStopped
	case modelhub.StatusFailed:
		return ext.ContainerStateFailed
	default:
		return ext.ContainerStateUnknown
	}
}

func stateToInternal(s ext.ContainerState) modelhub.Status {
	switch s {
	case ext.ContainerStateStarting:
		return modelhub.StatusStarting
	case ext.ContainerStateRunning:
		return modelhub.StatusRunning
	case ext.ContainerStateStopping:
		return modelhub.StatusStopping
	case ext.ContainerStateStopped:
		return modelhub.StatusStopped
	default:
		return modelhub.StatusFailed
	}
}

func mountsToInternal(in []ext.Mount) []modelhub.Mount {
	if len(in) == 0 {
		return nil
	}
	out := make([]modelhub.Mount, 0, len(in))
	for _, m := range in {
		out = append(out, modelhub.Mount{Source: m.Source, Destination: m.Destination})
	}
	return out
}

func mountsToExternal(in []modelhub.Mount) []ext.Mount {
	if len(in) == 0 {
		return nil
	}
	out := make([]ext.Mount, 0, len(in))
	for _, m := range in {
		out = append(out, ext.Mount{Source: m.Source, Destination: m.Destination})
	}
	return out
}
