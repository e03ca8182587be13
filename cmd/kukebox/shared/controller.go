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

package shared

import (
	"fmt"
	"log/slog"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/ctr"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LoggerFromCmd extracts the slog logger from the Cobra command context.
func LoggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// OptionsFromConfig collects the controller options from flags, env and the config file.
func OptionsFromConfig() (controller.Options, error) {
	var creds []ctr.RegistryCredentials
	if viper.IsSet(config.RegistryCredentialsKey) {
		if err := viper.UnmarshalKey(config.RegistryCredentialsKey, &creds); err != nil {
			return controller.Options{}, fmt.Errorf("%w: registries: %w", errdefs.ErrConfig, err)
		}
	}
	return controller.Options{
		RunPath:             viper.GetString(config.KUKEBOX_ROOT_RUN_PATH.ViperKey),
		Runtime:             viper.GetString(config.KUKEBOX_ROOT_RUNTIME.ViperKey),
		DockerHost:          viper.GetString(config.KUKEBOX_ROOT_DOCKER_HOST.ViperKey),
		ContainerdSocket:    viper.GetString(config.KUKEBOX_ROOT_CONTAINERD_SOCKET.ViperKey),
		Namespace:           viper.GetString(config.KUKEBOX_ROOT_CONTAINERD_NAMESPACE.ViperKey),
		Snapshotter:         viper.GetString(config.KUKEBOX_ROOT_CONTAINERD_SNAPSHOTTER.ViperKey),
		RegistryCredentials: creds,
		EventDB:             viper.GetString(config.KUKEBOX_ROOT_EVENT_DB.ViperKey),
		EventRetention:      viper.GetDuration(config.KUKEBOX_ROOT_EVENT_RETENTION.ViperKey),
		StopTimeout:         viper.GetDuration(config.KUKEBOX_ROOT_STOP_TIMEOUT.ViperKey),
		SweepConcurrency:    viper.GetInt(config.KUKEBOX_ROOT_SWEEP_CONCURRENCY.ViperKey),
	}, nil
}

// ControllerFromCmd instantiates a controller.Exec configured with the shared persistent
// flags. The caller closes it.
func ControllerFromCmd(cmd *cobra.Command) (*controller.Exec, error) {
	logger, err := LoggerFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := OptionsFromConfig()
	if err != nil {
		return nil, err
	}
	return controller.NewControllerExec(cmd.Context(), logger, opts)
}

// GetControllerWithMock returns the controller stored under mockKey in the command context,
// or wraps a real one built by ControllerFromCmd.
func GetControllerWithMock[T any](cmd *cobra.Command, mockKey any, wrapper func(*controller.Exec) T) (T, error) {
	var zero T

	if mockCtrl, ok := cmd.Context().Value(mockKey).(T); ok {
		return mockCtrl, nil
	}

	realCtrl, err := ControllerFromCmd(cmd)
	if err != nil {
		return zero, err
	}
	return wrapper(realCtrl), nil
}
