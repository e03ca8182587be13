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

package provide

import (
	"fmt"
	"strings"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type provideController interface {
	Provide(cfg modelhub.ProviderConfig, taskID string) (modelhub.ContainerRecord, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewProvideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provide <task-id>",
		Short: "Provide a running sandbox container for a task",
		Long: "Provide returns the workspace container of the task, reusing it when it is still " +
			"running on the template's platform and starting a new one otherwise.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])
			if taskID == "" {
				return errdefs.ErrTaskIDRequired
			}
			file := strings.TrimSpace(viper.GetString(config.KUKEBOX_PROVIDE_TEMPLATE_FILE.ViperKey))
			if file == "" {
				return fmt.Errorf("%w: template file is required (--template)", errdefs.ErrConfig)
			}
			name := strings.TrimSpace(viper.GetString(config.KUKEBOX_PROVIDE_TEMPLATE_NAME.ViperKey))
			output := viper.GetString(config.KUKEBOX_PROVIDE_OUTPUT.ViperKey)

			var format shared.OutputFormat
			if output != "" {
				var err error
				if format, err = shared.ParseOutputFormat(output, shared.OutputFormatTable); err != nil {
					return err
				}
			}

			cfg, err := shared.LoadTemplate(cmd, file, name)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) provideController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			rec, err := ctrl.Provide(cfg, taskID)
			if err != nil {
				return err
			}

			if format == "" {
				fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return nil
			}
			return shared.PrintContainers(cmd, format, []modelhub.ContainerRecord{rec})
		},
	}

	cmd.Flags().StringP("template", "t", "", "Template file (YAML, use - for stdin)")
	_ = viper.BindPFlag(config.KUKEBOX_PROVIDE_TEMPLATE_FILE.ViperKey, cmd.Flags().Lookup("template"))

	cmd.Flags().String("name", "", "Template to use when the file holds several")
	_ = viper.BindPFlag(config.KUKEBOX_PROVIDE_TEMPLATE_NAME.ViperKey, cmd.Flags().Lookup("name"))

	cmd.Flags().StringP("output", "o", "", "Output format (yaml, json, table); default prints the container id")
	_ = viper.BindPFlag(config.KUKEBOX_PROVIDE_OUTPUT.ViperKey, cmd.Flags().Lookup("output"))

	_ = cmd.MarkFlagFilename("template", "yaml", "yml")

	return cmd
}
