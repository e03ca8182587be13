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
	"errors"
	"fmt"
	"maps"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/containerd/typeurl/v2"
	kerrdefs "github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/google/uuid"
)

func (r *Runtime) Start(ctx context.Context, spec facade.StartSpec) (modelhub.ContainerRecord, error) {
	rec, err := r.start(ctx, spec)
	if err != nil {
		return modelhub.ContainerRecord{}, fmt.Errorf("%w: %w", kerrdefs.ErrStartFailed, err)
	}
	return rec, nil
}

func (r *Runtime) start(ctx context.Context, spec facade.StartSpec) (modelhub.ContainerRecord, error) {
	if spec.Image == "" {
		return modelhub.ContainerRecord{}, ErrInvalidImage
	}
	if err := r.connected(); err != nil {
		return modelhub.ContainerRecord{}, err
	}

	id := spec.Name
	if id == "" {
		id = "kukebox-" + uuid.NewString()
	}
	nsCtx := r.namespaceCtx(ctx)

	image, err := r.getImage(ctx, spec.Image, spec.Platform)
	if err != nil {
		return modelhub.ContainerRecord{}, err
	}
	if err = r.ensureImageUnpacked(ctx, image); err != nil {
		return modelhub.ContainerRecord{}, err
	}

	var ns NamespacePaths
	if spec.NetworkParent != "" {
		parent, taskErr := r.loadTask(ctx, spec.NetworkParent)
		if taskErr != nil {
			return modelhub.ContainerRecord{}, fmt.Errorf("network parent %s: %w", spec.NetworkParent, taskErr)
		}
		ns = TaskNamespacePaths(parent.Pid())
	}

	labels := maps.Clone(spec.Labels)
	if labels == nil {
		labels = make(map[string]string)
	}
	if spec.Platform != nil {
		labels[modelhub.LabelPlatform] = platforms.Format(*spec.Platform)
	}

	opts := []containerd.NewContainerOpts{
		containerd.WithImage(image),
		containerd.WithNewSnapshot(id, image),
		containerd.WithNewSpec(buildSpecOpts(image, spec, ns)...),
		containerd.WithContainerLabels(labels),
	}
	if r.snapshotter != "" {
		opts = append([]containerd.NewContainerOpts{containerd.WithSnapshotter(r.snapshotter)}, opts...)
	}

	container, err := r.cClient.NewContainer(nsCtx, id, opts...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to create container", "id", id, "err", formatError(err))
		return modelhub.ContainerRecord{}, fmt.Errorf("failed to create container: %w", err)
	}
	r.containers.put(id, container)

	task, err := container.NewTask(nsCtx, cio.NullIO)
	if err == nil {
		err = task.Start(nsCtx)
		if err != nil {
			_, _ = task.Delete(nsCtx, containerd.WithProcessKill)
		}
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to start task", "id", id, "err", formatError(err))
		cleanupCtx := r.namespaceCtx(context.WithoutCancel(ctx))
		if delErr := container.Delete(cleanupCtx, containerd.WithSnapshotCleanup); delErr != nil {
			r.logger.WarnContext(ctx, "failed to delete container after start failure",
				"id", id, "err", formatError(delErr))
		}
		r.containers.evict(id)
		return modelhub.ContainerRecord{}, fmt.Errorf("failed to start task: %w", err)
	}
	r.tasks.put(id, task)

	rec := facade.NewRecord(id, spec.Labels)
	rec.Image = spec.Image
	rec.Runtime = Name
	rec.Platform = facade.FormatPlatform(spec.Platform)
	rec.Status = modelhub.StatusRunning
	rec.StartedAt = r.now()
	rec.LastUsedAt = rec.StartedAt
	rec.Mounts = append([]modelhub.Mount(nil), spec.Mounts...)

	r.logger.InfoContext(ctx, "started container", "id", id, "image", spec.Image, "platform", rec.Platform)
	return rec, nil
}

func (r *Runtime) FindContainerByLabels(
	ctx context.Context,
	labels map[string]string,
) (*modelhub.ContainerRecord, error) {
	if err := r.connected(); err != nil {
		return nil, fmt.Errorf("%w: %w", kerrdefs.ErrLookupFailed, err)
	}
	nsCtx := r.namespaceCtx(ctx)

	found, err := r.cClient.Containers(nsCtx, labelFilter(labels))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list containers", "err", formatError(err))
		return nil, fmt.Errorf("%w: %w", kerrdefs.ErrLookupFailed, err)
	}

	candidates := make([]modelhub.ContainerRecord, 0, len(found))
	for _, container := range found {
		rec, recErr := r.recordFromContainer(ctx, container)
		if recErr != nil {
			if errdefs.IsNotFound(recErr) {
				// removed between list and info
				continue
			}
			return nil, fmt.Errorf("%w: %w", kerrdefs.ErrLookupFailed, recErr)
		}
		if !facade.MatchLabels(rec.Labels, labels) {
			continue
		}
		r.containers.put(container.ID(), container)
		candidates = append(candidates, rec)
	}
	r.logger.DebugContext(ctx, "listed containers", "matched", len(candidates))
	return facade.PickBest(candidates), nil
}

func (r *Runtime) recordFromContainer(
	ctx context.Context,
	container containerd.Container,
) (modelhub.ContainerRecord, error) {
	nsCtx := r.namespaceCtx(ctx)
	info, err := container.Info(nsCtx)
	if err != nil {
		return modelhub.ContainerRecord{}, err
	}

	rec := facade.NewRecord(info.ID, info.Labels)
	rec.Image = info.Image
	rec.Runtime = Name
	rec.Platform = info.Labels[modelhub.LabelPlatform]
	rec.StartedAt = info.CreatedAt
	rec.LastUsedAt = info.UpdatedAt
	rec.Status = modelhub.StatusStopped

	if info.Spec != nil {
		var spec oci.Spec
		if specErr := typeurl.UnmarshalTo(info.Spec, &spec); specErr == nil {
			rec.Mounts = mountsFromSpec(&spec)
		}
	}

	task, err := container.Task(nsCtx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return rec, nil
		}
		return modelhub.ContainerRecord{}, err
	}
	status, err := task.Status(nsCtx)
	if err != nil {
		return modelhub.ContainerRecord{}, err
	}
	rec.Status = statusFromTask(status.Status)
	return rec, nil
}

func (r *Runtime) Status(ctx context.Context, id string) (modelhub.Status, error) {
	if id == "" {
		return "", ErrEmptyContainerID
	}
	container, err := r.loadContainer(ctx, id)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			return "", fmt.Errorf("%w: %s", kerrdefs.ErrContainerNotFound, id)
		}
		return "", fmt.Errorf("%w: %w", kerrdefs.ErrLookupFailed, err)
	}
	nsCtx := r.namespaceCtx(ctx)

	task, err := container.Task(nsCtx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			// a cached handle may point at a container removed by another client
			if _, infoErr := container.Info(nsCtx); errdefs.IsNotFound(infoErr) {
				r.forget(id)
				return "", fmt.Errorf("%w: %s", kerrdefs.ErrContainerNotFound, id)
			}
			r.tasks.evict(id)
			return modelhub.StatusStopped, nil
		}
		return "", fmt.Errorf("%w: task of %s: %w", kerrdefs.ErrLookupFailed, id, err)
	}
	status, err := task.Status(nsCtx)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return modelhub.StatusStopped, nil
		}
		return "", fmt.Errorf("%w: task status of %s: %w", kerrdefs.ErrLookupFailed, id, err)
	}
	return statusFromTask(status.Status), nil
}

func (r *Runtime) GetContainerPlatform(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: %w", kerrdefs.ErrPlatformUnknown, ErrEmptyContainerID)
	}
	container, err := r.loadContainer(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %w", kerrdefs.ErrPlatformUnknown, err)
	}
	nsCtx := r.namespaceCtx(ctx)

	info, err := container.Info(nsCtx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", kerrdefs.ErrPlatformUnknown, err)
	}

	// Images started for an explicit platform are resolved against that platform, so a
	// multi-platform index yields the manifest that was actually run.
	image, err := container.Image(nsCtx)
	if err != nil {
		return "", fmt.Errorf("%w: image of %s: %w", kerrdefs.ErrPlatformUnknown, id, err)
	}
	if want, ok := info.Labels[modelhub.LabelPlatform]; ok {
		p, parseErr := platforms.Parse(want)
		if parseErr != nil {
			return "", fmt.Errorf("%w: %w", kerrdefs.ErrPlatformUnknown, parseErr)
		}
		imgInfo, getErr := r.cClient.ImageService().Get(nsCtx, info.Image)
		if getErr != nil {
			return "", fmt.Errorf("%w: %w", kerrdefs.ErrPlatformUnknown, getErr)
		}
		image = containerd.NewImageWithPlatform(r.cClient, imgInfo, platforms.Only(p))
	}

	cfg, err := image.Spec(nsCtx)
	if err != nil {
		return "", fmt.Errorf("%w: image config of %s: %w", kerrdefs.ErrPlatformUnknown, id, err)
	}
	if cfg.OS == "" || cfg.Architecture == "" {
		return "", fmt.Errorf("%w: image %s does not declare a platform", kerrdefs.ErrPlatformUnknown, info.Image)
	}
	return platforms.Format(cfg.Platform), nil
}

func (r *Runtime) Stop(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyContainerID
	}
	err := r.stop(ctx, id)
	switch {
	case err == nil,
		errors.Is(err, ErrContainerNotFound),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrTaskNotRunning),
		errdefs.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("%w: %s: %w", kerrdefs.ErrStopFailed, id, err)
	}
}

func (r *Runtime) stop(ctx context.Context, id string) error {
	r.logger.DebugContext(ctx, "stopping container", "id", id)
	task, err := r.loadTask(ctx, id)
	if err != nil {
		return err
	}
	nsCtx := r.namespaceCtx(ctx)

	status, err := task.Status(nsCtx)
	if err != nil {
		return fmt.Errorf("failed to get task status: %w", err)
	}
	if status.Status == containerd.Running || status.Status == containerd.Paused {
		if err = r.killAndWait(ctx, task); err != nil {
			return err
		}
	}

	// Stopped tasks are deleted; the container itself stays until Remove.
	if _, err = task.Delete(nsCtx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		r.logger.WarnContext(ctx, "failed to delete stopped task", "id", id, "err", formatError(err))
	}
	r.tasks.evict(id)
	r.logger.InfoContext(ctx, "stopped container", "id", id)
	return nil
}

func (r *Runtime) killAndWait(ctx context.Context, task containerd.Task) error {
	nsCtx := r.namespaceCtx(ctx)

	exitC, err := task.Wait(nsCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}
	if err = task.Kill(nsCtx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
	defer cancel()
	select {
	case <-exitC:
		return nil
	case <-waitCtx.Done():
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.logger.WarnContext(ctx, "timeout exceeded, force killing", "id", task.ID())
	if err = task.Kill(nsCtx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to force kill task: %w", err)
	}
	select {
	case <-exitC:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyContainerID
	}
	container, err := r.loadContainer(ctx, id)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			r.logger.DebugContext(ctx, "container not found", "id", id)
			return nil
		}
		return fmt.Errorf("%w: %s: %w", kerrdefs.ErrRemoveFailed, id, err)
	}
	nsCtx := r.namespaceCtx(ctx)

	if task, taskErr := container.Task(nsCtx, nil); taskErr == nil {
		if _, err = task.Delete(nsCtx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
			r.logger.WarnContext(ctx, "failed to delete task", "id", id, "err", formatError(err))
		}
	}
	r.tasks.evict(id)

	if err = container.Delete(nsCtx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		r.logger.ErrorContext(ctx, "failed to delete container", "id", id, "err", formatError(err))
		return fmt.Errorf("%w: %s: %w", kerrdefs.ErrRemoveFailed, id, err)
	}
	r.containers.evict(id)
	r.logger.InfoContext(ctx, "removed container", "id", id)
	return nil
}
