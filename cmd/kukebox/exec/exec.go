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

package exec

import (
	"fmt"
	"strings"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/facade"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type execController interface {
	ExecCommand(id string, req facade.ExecRequest) (modelhub.ExecResult, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <container-id> [--] <command> [args...]",
		Short: "Run a command inside a sandbox container",
		Long: "Exec runs a command inside a provided container and streams its output. " +
			"The command's exit status becomes the exit status of kukebox.",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errdefs.ErrContainerIDRequired
			}

			argv := args[1:]
			if argv[0] == "--" {
				argv = argv[1:]
			}
			if len(argv) == 0 {
				return errdefs.ErrEmptyArgv
			}

			envFlags, _ := cmd.Flags().GetStringArray("env")
			env, err := parseEnv(envFlags)
			if err != nil {
				return err
			}

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) execController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			res, err := ctrl.ExecCommand(id, facade.ExecRequest{
				Argv:       argv,
				WorkingDir: strings.TrimSpace(viper.GetString(config.KUKEBOX_EXEC_WORKDIR.ViperKey)),
				Env:        env,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			if res.ExitCode != 0 {
				// The command already reported its own failure.
				cmd.SilenceErrors = true
				return &types.ExitCodeError{Code: res.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)

	cmd.Flags().StringP("workdir", "w", "", "Working directory inside the container")
	_ = viper.BindPFlag(config.KUKEBOX_EXEC_WORKDIR.ViperKey, cmd.Flags().Lookup("workdir"))

	cmd.Flags().StringArrayP("env", "e", nil, "Set an environment variable (NAME=value), repeatable")

	cmd.ValidArgsFunction = config.CompleteContainerIDs

	return cmd
}

func parseEnv(values []string) ([]modelhub.EnvVar, error) {
	env := make([]modelhub.EnvVar, 0, len(values))
	for _, kv := range values {
		name, value, _ := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: %q", errdefs.ErrEmptyEnvName, kv)
		}
		env = append(env, modelhub.EnvVar{Name: name, Value: value})
	}
	return env, nil
}
