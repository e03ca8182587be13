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

package stop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/spf13/cobra"
)

type stopController interface {
	StopContainer(id string) error
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stop <container-id>...",
		Short:         "Stop sandbox containers and their sidecars",
		Long:          "Stop stops each container and its sidecars. The records are kept until removed or swept.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) stopController { return c })
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
				if err = ctrl.StopContainer(id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				cmd.Printf("Stopped container %q\n", id)
			}
			return errors.Join(errs...)
		},
	}

	cmd.ValidArgsFunction = config.CompleteContainerIDs

	return cmd
}
