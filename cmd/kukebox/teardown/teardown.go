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

package teardown

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

type teardownController interface {
	Teardown(cfg modelhub.ProviderConfig, taskID string) error
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewTeardownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "teardown <task-id>",
		Short:         "Stop and remove the sandbox container of a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])
			if taskID == "" {
				return errdefs.ErrTaskIDRequired
			}
			file := strings.TrimSpace(viper.GetString(config.KUKEBOX_TEARDOWN_TEMPLATE_FILE.ViperKey))
			if file == "" {
				return fmt.Errorf("%w: template file is required (--template)", errdefs.ErrConfig)
			}
			name := strings.TrimSpace(viper.GetString(config.KUKEBOX_TEARDOWN_TEMPLATE_NAME.ViperKey))

			cfg, err := shared.LoadTemplate(cmd, file, name)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) teardownController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err = ctrl.Teardown(cfg, taskID); err != nil {
				return err
			}
			cmd.Printf("Tore down task %q (template %q)\n", taskID, cfg.Name)
			return nil
		},
	}

	cmd.Flags().StringP("template", "t", "", "Template file (YAML, use - for stdin)")
	_ = viper.BindPFlag(config.KUKEBOX_TEARDOWN_TEMPLATE_FILE.ViperKey, cmd.Flags().Lookup("template"))

	cmd.Flags().String("name", "", "Template to use when the file holds several")
	_ = viper.BindPFlag(config.KUKEBOX_TEARDOWN_TEMPLATE_NAME.ViperKey, cmd.Flags().Lookup("name"))

	_ = cmd.MarkFlagFilename("template", "yaml", "yml")

	return cmd
}
