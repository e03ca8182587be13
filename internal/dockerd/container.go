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

package dockerd

import (
	"context"
	"fmt"
	"io"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func (r *Runtime) Start(ctx context.Context, spec facade.StartSpec) (modelhub.ContainerRecord, error) {
	if spec.Image == "" {
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: %w", errdefs.ErrStartFailed, errdefs.ErrImageRequired)
	}

	if err := r.ensureImage(ctx, spec.Image, spec.Platform); err != nil {
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: pull %s: %w", errdefs.ErrStartFailed, spec.Image, err)
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		WorkingDir: spec.WorkingDir,
		Env:        facade.EnvList(spec.Env),
		Labels:     spec.Labels,
	}
	hostCfg := &container.HostConfig{
		Privileged: spec.Privileged,
		Mounts:     bindMounts(spec.Mounts),
	}
	if spec.NetworkParent != "" {
		hostCfg.NetworkMode = container.NetworkMode("container:" + spec.NetworkParent)
	}

	// spec.Platform stays nil unless configured; the daemon then picks its default.
	created, err := r.api.ContainerCreate(ctx, cfg, hostCfg, nil, spec.Platform, spec.Name)
	if err != nil {
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: create: %w", errdefs.ErrStartFailed, err)
	}
	for _, w := range created.Warnings {
		r.logger.WarnContext(ctx, "docker create warning", "id", created.ID, "warning", w)
	}

	if err = r.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		if rmErr := r.api.ContainerRemove(
			context.WithoutCancel(ctx),
			created.ID,
			container.RemoveOptions{Force: true, RemoveVolumes: true},
		); rmErr != nil {
			r.logger.WarnContext(ctx, "failed to remove container after start failure",
				"id", created.ID, "err", rmErr)
		}
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: start %s: %w", errdefs.ErrStartFailed, created.ID, err)
	}

	rec := facade.NewRecord(created.ID, spec.Labels)
	rec.Image = spec.Image
	rec.Runtime = Name
	rec.Platform = facade.FormatPlatform(spec.Platform)
	rec.Status = modelhub.StatusRunning
	rec.StartedAt = r.now()
	rec.LastUsedAt = rec.StartedAt
	rec.Mounts = append([]modelhub.Mount(nil), spec.Mounts...)

	r.logger.DebugContext(ctx, "docker container started", "id", rec.ID, "image", spec.Image,
		"platform", rec.Platform)
	return rec, nil
}

// ensureImage pulls ref when it is missing locally, or always when a platform is requested
// so the local tag resolves to that platform.
func (r *Runtime) ensureImage(ctx context.Context, ref string, platform *ocispec.Platform) error {
	if platform == nil {
		_, err := r.api.ImageInspect(ctx, ref)
		if err == nil {
			return nil
		}
		if !cerrdefs.IsNotFound(err) {
			return err
		}
	}

	opts := image.PullOptions{}
	if platform != nil {
		opts.Platform = platforms.Format(*platform)
	}
	r.logger.DebugContext(ctx, "pulling image", "image", ref, "platform", opts.Platform)
	rc, err := r.api.ImagePull(ctx, ref, opts)
	if err != nil {
		return err
	}
	defer rc.Close()
	// The pull only completes once its progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	return err
}

func bindMounts(mounts []modelhub.Mount) []mount.Mount {
	if len(mounts) == 0 {
		return nil
	}
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, mount.Mount{
			Type:   mount.TypeBind,
			Source: m.Source,
			Target: m.Destination,
		})
	}
	return out
}

func (r *Runtime) FindContainerByLabels(
	ctx context.Context,
	labels map[string]string,
) (*modelhub.ContainerRecord, error) {
	args := filters.NewArgs()
	for _, sel := range facade.LabelSelectors(labels) {
		args.Add("label", sel)
	}
	summaries, err := r.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrLookupFailed, err)
	}

	candidates := make([]modelhub.ContainerRecord, 0, len(summaries))
	for _, s := range summaries {
		if !facade.MatchLabels(s.Labels, labels) {
			continue
		}
		candidates = append(candidates, r.recordFromSummary(s))
	}
	return facade.PickBest(candidates), nil
}

func (r *Runtime) recordFromSummary(s container.Summary) modelhub.ContainerRecord {
	rec := facade.NewRecord(s.ID, s.Labels)
	rec.Image = s.Image
	rec.Runtime = Name
	rec.Status = statusFromState(string(s.State))
	rec.StartedAt = time.Unix(s.Created, 0).UTC()
	rec.LastUsedAt = rec.StartedAt
	for _, m := range s.Mounts {
		if m.Type != mount.TypeBind {
			continue
		}
		rec.Mounts = append(rec.Mounts, modelhub.Mount{Source: m.Source, Destination: m.Destination})
	}
	return rec
}

func statusFromState(state string) modelhub.Status {
	switch state {
	case "running", "paused":
		return modelhub.StatusRunning
	case "created", "restarting":
		return modelhub.StatusStarting
	case "removing":
		return modelhub.StatusStopping
	case "dead":
		return modelhub.StatusFailed
	default:
		return modelhub.StatusStopped
	}
}

func (r *Runtime) Status(ctx context.Context, id string) (modelhub.Status, error) {
	info, err := r.api.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", errdefs.ErrContainerNotFound, id)
		}
		return "", fmt.Errorf("%w: inspect %s: %w", errdefs.ErrLookupFailed, id, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return modelhub.StatusStopped, nil
	}
	return statusFromState(string(info.State.Status)), nil
}

func (r *Runtime) GetContainerPlatform(ctx context.Context, id string) (string, error) {
	info, err := r.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: inspect %s: %w", errdefs.ErrPlatformUnknown, id, err)
	}
	if info.ContainerJSONBase == nil || info.Image == "" {
		return "", fmt.Errorf("%w: container %s has no image", errdefs.ErrPlatformUnknown, id)
	}

	img, err := r.api.ImageInspect(ctx, info.Image)
	if err != nil {
		return "", fmt.Errorf("%w: inspect image %s: %w", errdefs.ErrPlatformUnknown, info.Image, err)
	}
	if img.Os == "" || img.Architecture == "" {
		return "", fmt.Errorf("%w: image %s does not declare a platform", errdefs.ErrPlatformUnknown, info.Image)
	}
	return platforms.Format(ocispec.Platform{
		OS:           img.Os,
		Architecture: img.Architecture,
		Variant:      img.Variant,
	}), nil
}

func (r *Runtime) Stop(ctx context.Context, id string) error {
	timeout := int(r.stopTimeout.Seconds())
	err := r.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err == nil || cerrdefs.IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", errdefs.ErrStopFailed, id, err)
}

func (r *Runtime) Remove(ctx context.Context, id string) error {
	err := r.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	switch {
	case err == nil, cerrdefs.IsNotFound(err):
		return nil
	case cerrdefs.IsConflict(err):
		// removal already in progress
		r.logger.DebugContext(ctx, "container removal already in progress", "id", id)
		return nil
	default:
		return fmt.Errorf("%w: %s: %w", errdefs.ErrRemoveFailed, id, err)
	}
}
