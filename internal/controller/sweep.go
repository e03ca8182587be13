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

package controller

import (
	"github.com/eminwux/kukebox/internal/sweeper"
)

// Sweep reclaims expired containers once and prunes events past the retention window.
func (b *Exec) Sweep() (sweeper.Report, error) {
	report, err := b.sweeper.Sweep(b.ctx)
	if err != nil {
		return report, err
	}
	b.pruneEvents()
	return report, nil
}

func (b *Exec) pruneEvents() {
	if b.opts.EventRetention <= 0 || b.events == nil {
		return
	}
	n, err := b.events.Prune(b.ctx, b.now().Add(-b.opts.EventRetention))
	if err != nil {
		b.logger.WarnContext(b.ctx, "failed to prune events", "err", err)
		return
	}
	if n > 0 {
		b.logger.DebugContext(b.ctx, "pruned events", "count", n)
	}
}
