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

package remove

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/cobra"
)

type removeController interface {
	RemoveContainer(id string) ([]modelhub.ContainerRecord, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <container-id>...",
		Aliases: []string{"rm"},
		Short:   "Stop and remove sandbox containers and their sidecars",
		Long: "Remove stops and removes each container with its sidecars and forgets their records. " +
			"Removing an unknown container is not an error.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) removeController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			var errs []error
			for _, arg := range args {
				id := strings.TrimSpace(arg)
				if id == "" {
					errs = append(errs, errdefs.ErrContainerIDRequired)
					continue
				}
				removed, removeErr := ctrl.RemoveContainer(id)
				if removeErr != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, removeErr))
					continue
				}
				for _, rec := range removed {
					role := string(rec.Role)
					if role == "" {
						role = "container"
					}
					cmd.Printf("Removed %s %q\n", role, rec.ID)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.ValidArgsFunction = config.CompleteContainerIDs

	return cmd
}
