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

package sweep

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/sweeper"
	"github.com/spf13/cobra"
)

type sweepController interface {
	Sweep() (sweeper.Report, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sweep",
		Short:         "Reclaim sandbox containers whose TTL has expired",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) sweepController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			report, err := ctrl.Sweep()
			if err != nil {
				return err
			}

			for _, id := range report.Reclaimed {
				cmd.Printf("Reclaimed %q\n", id)
			}
			for _, id := range report.Skipped {
				cmd.Printf("Skipped %q (no longer expired)\n", id)
			}
			if len(report.Reclaimed) == 0 && len(report.Skipped) == 0 && len(report.Failed) == 0 {
				cmd.Println("Nothing to reclaim")
			}

			failed := make([]string, 0, len(report.Failed))
			for id := range report.Failed {
				failed = append(failed, id)
			}
			slices.Sort(failed)
			errs := make([]error, 0, len(failed))
			for _, id := range failed {
				errs = append(errs, fmt.Errorf("%s: %w", id, report.Failed[id]))
			}
			return errors.Join(errs...)
		},
	}

	return cmd
}
