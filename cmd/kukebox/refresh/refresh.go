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

package refresh

import (
	"errors"

	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/spf13/cobra"
)

type refreshController interface {
	Refresh() (controller.RefreshResult, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile tracked containers with the container runtime",
		Long: "Refresh checks every tracked container against the runtime, records status changes " +
			"as health events and forgets containers that no longer exist.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) refreshController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			result, err := ctrl.Refresh()
			if err != nil {
				return err
			}
			printResult(cmd, result)

			if len(result.Errors) > 0 {
				errs := make([]error, 0, len(result.Errors))
				for _, msg := range result.Errors {
					errs = append(errs, errors.New(msg))
				}
				return errors.Join(errs...)
			}
			return nil
		},
	}

	return cmd
}

func printResult(cmd *cobra.Command, result controller.RefreshResult) {
	cmd.Printf("Checked %d container(s)\n", len(result.Checked))
	for _, id := range result.Updated {
		cmd.Printf("  updated: %s\n", id)
	}
	for _, id := range result.Forgotten {
		cmd.Printf("  forgotten: %s\n", id)
	}
}
