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

package ctr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/eminwux/kukebox/internal/ctr"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
)

func TestValidation(t *testing.T) {
	rt, err := ctr.New(context.Background(), nil, "/nonexistent/containerd.sock")
	if err != nil {
		// containerd.New dials lazily on most platforms; a dial error is acceptable too
		if !errors.Is(err, errdefs.ErrConnectRuntime) {
			t.Fatalf("New() error = %v, want %v", err, errdefs.ErrConnectRuntime)
		}
		return
	}
	defer rt.Close()
	ctx := context.Background()

	if rt.Name() != ctr.Name || rt.Namespace() != ctr.DefaultNamespace {
		t.Errorf("Name() = %q, Namespace() = %q", rt.Name(), rt.Namespace())
	}
	if _, err = rt.Start(ctx, facade.StartSpec{}); !errors.Is(err, errdefs.ErrStartFailed) || !errors.Is(err, ctr.ErrInvalidImage) {
		t.Errorf("Start() error = %v, want %v", err, ctr.ErrInvalidImage)
	}
	if _, err = rt.Exec(ctx, "", facade.ExecRequest{Argv: []string{"true"}}); !errors.Is(err, ctr.ErrEmptyContainerID) {
		t.Errorf("Exec() error = %v, want %v", err, ctr.ErrEmptyContainerID)
	}
	if _, err = rt.Exec(ctx, "c1", facade.ExecRequest{}); !errors.Is(err, errdefs.ErrEmptyArgv) {
		t.Errorf("Exec() error = %v, want %v", err, errdefs.ErrEmptyArgv)
	}
	if err = rt.Stop(ctx, ""); !errors.Is(err, ctr.ErrEmptyContainerID) {
		t.Errorf("Stop() error = %v, want %v", err, ctr.ErrEmptyContainerID)
	}
	if err = rt.Remove(ctx, ""); !errors.Is(err, ctr.ErrEmptyContainerID) {
		t.Errorf("Remove() error = %v, want %v", err, ctr.ErrEmptyContainerID)
	}
	if _, err = rt.GetContainerPlatform(ctx, ""); !errors.Is(err, errdefs.ErrPlatformUnknown) {
		t.Errorf("GetContainerPlatform() error = %v, want %v", err, errdefs.ErrPlatformUnknown)
	}
}
