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
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/leases"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// getImage returns ref for the requested platform, pulling it when it is not available
// locally. A nil platform means the daemon's default platform.
func (r *Runtime) getImage(ctx context.Context, ref string, platform *ocispec.Platform) (containerd.Image, error) {
	if ref == "" {
		return nil, ErrInvalidImage
	}
	nsCtx := r.namespaceCtx(ctx)

	if platform == nil {
		image, err := r.cClient.GetImage(nsCtx, ref)
		if err == nil {
			return image, nil
		}
		r.logger.DebugContext(ctx, "image not found locally, pulling", "image", ref)
	} else {
		info, err := r.cClient.ImageService().Get(nsCtx, ref)
		if err == nil {
			image := containerd.NewImageWithPlatform(r.cClient, info, platforms.Only(*platform))
			if _, err = image.Spec(nsCtx); err == nil {
				return image, nil
			}
		}
		r.logger.DebugContext(ctx, "image not available for platform, pulling", "image", ref,
			"platform", platforms.Format(*platform))
	}

	return r.pullImage(ctx, ref, platform)
}

func (r *Runtime) pullImage(ctx context.Context, ref string, platform *ocispec.Platform) (containerd.Image, error) {
	nsCtx := r.namespaceCtx(ctx)

	// The lease keeps pulled content from being collected before the image is created.
	leaseManager := r.cClient.LeasesService()
	lease, leaseErr := leaseManager.Create(
		nsCtx,
		leases.WithID(fmt.Sprintf("pull-%s-%d", ref, time.Now().UnixNano())),
		leases.WithExpiration(time.Hour),
	)
	if leaseErr != nil {
		r.logger.WarnContext(ctx, "failed to create lease for image pull, continuing without lease",
			"image", ref, "err", formatError(leaseErr))
	} else {
		defer func() {
			if deleteErr := leaseManager.Delete(nsCtx, lease); deleteErr != nil {
				r.logger.WarnContext(ctx, "failed to delete lease after image pull",
					"lease", lease.ID, "err", formatError(deleteErr))
			}
		}()
		nsCtx = leases.WithLease(nsCtx, lease.ID)
	}

	target := platforms.DefaultSpec()
	if platform != nil {
		target = *platform
	}
	pullOpts := []containerd.RemoteOpt{
		containerd.WithPlatform(platforms.Format(target)),
		containerd.WithResolver(buildResolver(r.creds)),
	}
	if platform != nil {
		// only the requested platform, never a compatible variant
		pullOpts = append(pullOpts, containerd.WithPlatformMatcher(platforms.Only(target)))
	}

	r.logger.DebugContext(ctx, "pulling image", "image", ref, "platform", platforms.Format(target),
		"authenticated", len(r.creds) > 0)
	image, err := r.cClient.Pull(nsCtx, ref, pullOpts...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to pull image", "image", ref, "err", formatError(err))
		return nil, fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return image, nil
}

func (r *Runtime) ensureImageUnpacked(ctx context.Context, image containerd.Image) error {
	nsCtx := r.namespaceCtx(ctx)

	unpacked, err := image.IsUnpacked(nsCtx, r.snapshotter)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to check if image is unpacked",
			"image", image.Name(), "snapshotter", r.snapshotter, "err", formatError(err))
	} else if unpacked {
		return nil
	}

	r.logger.DebugContext(ctx, "unpacking image", "image", image.Name(), "snapshotter", r.snapshotter)
	if err = image.Unpack(nsCtx, r.snapshotter); err != nil {
		r.logger.ErrorContext(ctx, "failed to unpack image",
			"image", image.Name(), "snapshotter", r.snapshotter, "err", formatError(err))
		return fmt.Errorf("failed to unpack image %s: %w", image.Name(), err)
	}
	return nil
}
