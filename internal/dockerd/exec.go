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
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/stream"
)

const execInspectInterval = 50 * time.Millisecond

func (r *Runtime) Exec(ctx context.Context, id string, req facade.ExecRequest) (modelhub.ExecResult, error) {
	if len(req.Argv) == 0 {
		return modelhub.ExecResult{}, fmt.Errorf("%w: %w", errdefs.ErrExecFailed, errdefs.ErrEmptyArgv)
	}

	created, err := r.api.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          req.Argv,
		WorkingDir:   req.WorkingDir,
		Env:          facade.EnvList(req.Env),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: create exec in %s: %w", errdefs.ErrExecFailed, id, err)
	}

	attach, err := r.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: attach exec %s: %w", errdefs.ErrExecFailed, created.ID, err)
	}
	defer attach.Close()

	// Closing the hijacked connection unblocks the reader when ctx is cancelled.
	stop := context.AfterFunc(ctx, attach.Close)
	defer stop()

	stdout := stream.NewTextCollector(req.Stdout)
	stderr := stream.NewTextCollector(req.Stderr)
	raw, copyErr := stream.Copy(stdout, stderr, attach.Reader, stream.WithLogger(r.logger))
	if err = ctx.Err(); err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: exec %s: %w", errdefs.ErrExecFailed, created.ID, err)
	}
	if copyErr != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: read exec %s output: %w", errdefs.ErrExecFailed, created.ID, copyErr)
	}
	if err = stdout.Flush(); err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: %w", errdefs.ErrExecFailed, err)
	}
	if err = stderr.Flush(); err != nil {
		return modelhub.ExecResult{}, fmt.Errorf("%w: %w", errdefs.ErrExecFailed, err)
	}

	exitCode, err := r.waitExec(ctx, created.ID)
	if err != nil {
		return modelhub.ExecResult{}, err
	}

	r.logger.DebugContext(ctx, "exec finished", "id", id, "exec", created.ID, "exitCode", exitCode, "raw", raw)
	return modelhub.ExecResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Raw:      raw,
	}, nil
}

// waitExec polls the exec until the daemon reports it finished. The output stream usually
// closes after the process exits, so the first inspect normally suffices.
func (r *Runtime) waitExec(ctx context.Context, execID string) (int, error) {
	for {
		info, err := r.api.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, fmt.Errorf("%w: inspect exec %s: %w", errdefs.ErrExecFailed, execID, err)
		}
		if !info.Running {
			return info.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: exec %s: %w", errdefs.ErrExecFailed, execID, ctx.Err())
		case <-time.After(execInspectInterval):
		}
	}
}
