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
	"slices"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/errdefs"
	kerrdefs "github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/stream"
	"github.com/google/uuid"
	runtimespec "github.com/opencontainers/runtime-spec/specs-go"
)

func (r *Runtime) Exec(ctx context.Context, id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	res, err := r.exec(ctx, id, req)
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: %w", kerrdefs.ErrExecFailed, err)
	}
	return res, nil
}

func (r *Runtime) exec(ctx context.Context, id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	if id == "" {
		return modelhub.ExecResult{}, ErrEmptyContainerID
	}
	if len(req.Argv) == 0 {
		return modelhub.ExecResult{}, kerrdefs.ErrEmptyArgv
	}

	container, err := r.loadContainer(ctx, id)
	if err != nil {
		return modelhub.ExecResult{}, err
	}
	task, err := r.loadTask(ctx, id)
	if err != nil {
		return modelhub.ExecResult{}, err
	}
	nsCtx := r.namespaceCtx(ctx)

	spec, err := container.Spec(nsCtx)
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("failed to load container spec: %w", err)
	}
	pspec, err := execProcess(spec, req)
	if err != nil {
		return modelhub.ExecResult{}, err
	}

	stdout := stream.NewTextCollector(req.Stdout)
	stderr := stream.NewTextCollector(req.Stderr)
	execID := "exec-" + uuid.NewString()

	process, err := task.Exec(nsCtx, execID, pspec, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		r.evictIfGone(id, err)
		return modelhub.ExecResult{}, fmt.Errorf("failed to create exec process: %w", err)
	}
	defer func() {
		delCtx := r.namespaceCtx(context.WithoutCancel(ctx))
		if _, delErr := process.Delete(delCtx, containerd.WithProcessKill); delErr != nil && !errdefs.IsNotFound(delErr) {
			r.logger.WarnContext(ctx, "failed to delete exec process", "id", id, "exec", execID,
				"err", formatError(delErr))
		}
	}()

	// Wait must be registered before Start so a fast exit is not missed.
	statusC, err := process.Wait(nsCtx)
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("failed to wait for exec process: %w", err)
	}
	if err = process.Start(nsCtx); err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("failed to start exec process: %w", err)
	}

	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		_ = process.Kill(r.namespaceCtx(context.WithoutCancel(ctx)), syscall.SIGKILL)
		process.IO().Cancel()
		return modelhub.ExecResult{}, ctx.Err()
	}

	code, _, err := status.Result()
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("failed to read exec status: %w", err)
	}
	// drain the FIFOs before reading the collected text
	process.IO().Wait()
	if err = stdout.Flush(); err != nil {
		return modelhub.ExecResult{}, err
	}
	if err = stderr.Flush(); err != nil {
		return modelhub.ExecResult{}, err
	}

	r.logger.DebugContext(ctx, "exec finished", "id", id, "exec", execID, "exitCode", code)
	return modelhub.ExecResult{
		ExitCode: int(code),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// execProcess derives the exec process from the container's init process, keeping its
// user and capabilities.
func execProcess(spec *runtimespec.Spec, req facade.ExecRequest) (*runtimespec.Process, error) {
	if spec == nil || spec.Process == nil {
		return nil, ErrNoProcessSpec
	}
	p := *spec.Process
	p.Terminal = false
	p.Args = slices.Clone(req.Argv)
	p.Env = append(slices.Clone(spec.Process.Env), facade.EnvList(req.Env)...)
	if req.WorkingDir != "" {
		p.Cwd = req.WorkingDir
	}
	return &p, nil
}
