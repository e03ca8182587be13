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

package facade

import (
	"sort"
	"strings"

	"github.com/eminwux/kukebox/internal/modelhub"
)

// MatchLabels reports whether have carries every key of want with exactly the same value.
// Extra labels on have are ignored.
func MatchLabels(have, want map[string]string) bool {
	for k, v := range want {
		got, ok := have[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// LabelSelectors returns want as sorted key=value pairs.
func LabelSelectors(want map[string]string) []string {
	out := make([]string, 0, len(want))
	for k, v := range want {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// PickBest chooses among label-matched containers: running ones first, then the most
// recently started. It returns nil for an empty slice.
func PickBest(candidates []modelhub.ContainerRecord) *modelhub.ContainerRecord {
	if len(candidates) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i], candidates[best]) {
			best = i
		}
	}
	picked := candidates[best].Clone()
	return &picked
}

func better(a, b modelhub.ContainerRecord) bool {
	aRunning := a.Status == modelhub.StatusRunning
	bRunning := b.Status == modelhub.StatusRunning
	if aRunning != bRunning {
		return aRunning
	}
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}
	// deterministic tie break
	return strings.Compare(a.ID, b.ID) > 0
}

// EnvList renders env vars as NAME=value entries.
func EnvList(env []modelhub.EnvVar) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		out = append(out, e.Name+"="+e.Value)
	}
	return out
}

// NewRecord builds a record for a container id from its labels, filling identity, role and
// parent from the well-known label keys.
func NewRecord(id string, labels map[string]string) modelhub.ContainerRecord {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return modelhub.ContainerRecord{
		ID:       id,
		Identity: copied[modelhub.LabelIdentity],
		Role:     modelhub.Role(copied[modelhub.LabelRole]),
		ParentID: copied[modelhub.LabelParent],
		Labels:   copied,
	}
}
