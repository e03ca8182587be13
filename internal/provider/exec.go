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
	"context"
	"log/slog"
	"time"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/eminwux/kukebox/internal/metrics"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/registry"
)

// Exec runs a command in a registered or unregistered container. LastUsedAt of a known
// record moves forward only when the runtime ran the command, whatever its exit code.
func Exec(
	ctx context.Context,
	logger *slog.Logger,
	rt facade.Runtime,
	reg *registry.Registry,
	m *metrics.Metrics,
	now func() time.Time,
	id string,
	req facade.ExecRequest,
) (modelhub.ExecResult, error) {
	logger = logging.OrNoop(logger)
	if now == nil {
		now = time.Now
	}
	if id == "" {
		return modelhub.ExecResult{}, errdefs.ErrContainerIDRequired
	}
	if len(req.Argv) == 0 {
		return modelhub.ExecResult{}, errdefs.ErrEmptyArgv
	}

	begin := now()
	res, err := rt.Exec(ctx, id, req)
	m.ObserveExec(rt.Name(), res, err, now().Sub(begin))
	if err != nil {
		logger.WarnContext(ctx, "exec failed", "id", id, "argv", req.Argv, "err", err)
		return res, err
	}
	if res.Raw {
		logger.DebugContext(ctx, "exec output was not multiplexed", "id", id)
	}

	if reg != nil {
		if rec, known := reg.Get(id); known {
			if touchErr := touch(ctx, reg, rec, now()); touchErr != nil {
				logger.WarnContext(ctx, "failed to record container use", "id", id, "err", touchErr)
			}
		}
	}
	logger.DebugContext(ctx, "exec finished", "id", id, "exit", res.ExitCode)
	return res, nil
}

// touch records the use under the identity lock so a concurrent provide or sweep in another
// process is not overwritten with a stale copy of the record.
func touch(ctx context.Context, reg *registry.Registry, rec modelhub.ContainerRecord, at time.Time) error {
	if rec.Identity == "" {
		return reg.Touch(ctx, rec.ID, at)
	}
	unlock, err := reg.Lock(ctx, rec.Identity)
	if err != nil {
		return err
	}
	defer unlock()
	if err = reg.Sync(ctx, rec.Identity); err != nil {
		return err
	}
	if _, ok := reg.Get(rec.ID); !ok {
		return nil
	}
	return reg.Touch(ctx, rec.ID, at)
}
