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

package containers

import (
	"strings"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type containersController interface {
	GetContainer(id string) (modelhub.ContainerRecord, error)
	ListContainers() []modelhub.ContainerRecord
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewContainersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "containers [container-id]",
		Aliases:       []string{"container", "co"},
		Short:         "List tracked sandbox containers or show one",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := shared.ParseOutputFormat(
				viper.GetString(config.KUKEBOX_GET_CONTAINERS_OUTPUT.ViperKey),
				shared.OutputFormatTable,
			)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) containersController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			var recs []modelhub.ContainerRecord
			if len(args) == 1 {
				rec, getErr := ctrl.GetContainer(strings.TrimSpace(args[0]))
				if getErr != nil {
					return getErr
				}
				recs = append(recs, rec)
			} else {
				recs = ctrl.ListContainers()
			}

			return shared.PrintContainers(cmd, format, recs)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output format (yaml, json, table)")
	_ = viper.BindPFlag(config.KUKEBOX_GET_CONTAINERS_OUTPUT.ViperKey, cmd.Flags().Lookup("output"))

	cmd.ValidArgsFunction = config.CompleteContainerIDs

	return cmd
}
