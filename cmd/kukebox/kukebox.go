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

package kukebox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eminwux/kukebox/cmd/config"
	autocompletecmd "github.com/eminwux/kukebox/cmd/kukebox/autocomplete"
	execcmd "github.com/eminwux/kukebox/cmd/kukebox/exec"
	getcmd "github.com/eminwux/kukebox/cmd/kukebox/get"
	providecmd "github.com/eminwux/kukebox/cmd/kukebox/provide"
	refreshcmd "github.com/eminwux/kukebox/cmd/kukebox/refresh"
	removecmd "github.com/eminwux/kukebox/cmd/kukebox/remove"
	servecmd "github.com/eminwux/kukebox/cmd/kukebox/serve"
	stopcmd "github.com/eminwux/kukebox/cmd/kukebox/stop"
	sweepcmd "github.com/eminwux/kukebox/cmd/kukebox/sweep"
	teardowncmd "github.com/eminwux/kukebox/cmd/kukebox/teardown"
	"github.com/eminwux/kukebox/cmd/kukebox/version"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ConfigLoader interface {
	LoadConfig() error
}

// MockConfigLoaderKey is used to inject mock config loaders in tests via context.
type MockConfigLoaderKey struct{}

func NewKukeboxCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "kukebox",
		Short: "Kukebox provisions and reuses sandbox containers for agent tasks",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if viper.GetBool(config.KUKEBOX_ROOT_VERBOSE.ViperKey) {
				logLevel := viper.GetString(config.KUKEBOX_ROOT_LOG_LEVEL.ViperKey)
				if logLevel == "" {
					logLevel = "info"
				}
				logger, levelVar := logging.NewLogger(os.Stderr, logLevel)

				ctx := cmd.Context()
				ctx = context.WithValue(ctx, types.CtxLogger, logger)
				ctx = context.WithValue(ctx, types.CtxLevelVar, levelVar)
				cmd.SetContext(ctx)
				logger.DebugContext(cmd.Context(), "enabling verbose", "log-level", logLevel)
			}

			var loader ConfigLoader
			if mockLoader, ok := cmd.Context().Value(MockConfigLoaderKey{}).(ConfigLoader); ok {
				loader = mockLoader
			} else {
				loader = &realConfigLoader{}
			}

			if err := loader.LoadConfig(); err != nil {
				if logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger); ok {
					logger.DebugContext(cmd.Context(), "config error", "error", err)
				}
				return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	if err := SetupKukeboxCmd(cmd); err != nil {
		return nil, fmt.Errorf("failed to setup kukebox command: %w", err)
	}

	return cmd, nil
}

func SetupKukeboxCmd(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(providecmd.NewProvideCmd())
	rootCmd.AddCommand(teardowncmd.NewTeardownCmd())
	rootCmd.AddCommand(execcmd.NewExecCmd())
	rootCmd.AddCommand(stopcmd.NewStopCmd())
	rootCmd.AddCommand(removecmd.NewRemoveCmd())
	rootCmd.AddCommand(getcmd.NewGetCmd())
	rootCmd.AddCommand(sweepcmd.NewSweepCmd())
	rootCmd.AddCommand(refreshcmd.NewRefreshCmd())
	rootCmd.AddCommand(servecmd.NewServeCmd())
	rootCmd.AddCommand(autocompletecmd.NewAutocompleteCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return SetPersistentFlags(rootCmd)
}

func SetPersistentFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.String("run-path", "", "Directory holding container records and the event database")
	flags.String("config", "", "config file (default is "+config.DefaultConfigFile()+")")
	flags.String("runtime", "docker", "Container runtime backend (docker, containerd)")
	flags.String("docker-host", "", "Docker daemon address (default from DOCKER_HOST)")
	flags.String("containerd-socket", "/run/containerd/containerd.sock", "containerd socket file")
	flags.String("namespace", "kukebox", "containerd namespace")
	flags.String("snapshotter", "", "containerd snapshotter (default from containerd)")
	flags.String("event-db", "", "Event database file (default <run-path>/events.db)")
	flags.Duration("event-retention", 0, "Drop events older than this on every sweep (0 keeps all)")
	flags.Duration("stop-timeout", 0, "Grace period before a stopping container is killed")
	flags.Int("sweep-concurrency", 0, "Containers reclaimed in parallel during a sweep")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	bindings := []struct {
		v    config.Var
		flag string
	}{
		{config.KUKEBOX_ROOT_RUN_PATH, "run-path"},
		{config.KUKEBOX_ROOT_CONFIG_FILE, "config"},
		{config.KUKEBOX_ROOT_RUNTIME, "runtime"},
		{config.KUKEBOX_ROOT_DOCKER_HOST, "docker-host"},
		{config.KUKEBOX_ROOT_CONTAINERD_SOCKET, "containerd-socket"},
		{config.KUKEBOX_ROOT_CONTAINERD_NAMESPACE, "namespace"},
		{config.KUKEBOX_ROOT_CONTAINERD_SNAPSHOTTER, "snapshotter"},
		{config.KUKEBOX_ROOT_EVENT_DB, "event-db"},
		{config.KUKEBOX_ROOT_EVENT_RETENTION, "event-retention"},
		{config.KUKEBOX_ROOT_STOP_TIMEOUT, "stop-timeout"},
		{config.KUKEBOX_ROOT_SWEEP_CONCURRENCY, "sweep-concurrency"},
		{config.KUKEBOX_ROOT_VERBOSE, "verbose"},
		{config.KUKEBOX_ROOT_LOG_LEVEL, "log-level"},
	}
	for _, b := range bindings {
		if err := viper.BindPFlag(b.v.ViperKey, flags.Lookup(b.flag)); err != nil {
			return err
		}
		if err := b.v.BindEnv(); err != nil {
			return err
		}
	}
	return nil
}

type realConfigLoader struct{}

func (r *realConfigLoader) LoadConfig() error {
	return loadConfig()
}

func loadConfig() error {
	configFile := viper.GetString(config.KUKEBOX_ROOT_CONFIG_FILE.ViperKey)
	if configFile == "" {
		configFile = config.DefaultConfigFile()
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Dir(configFile))
	} else {
		viper.SetConfigFile(configFile)
	}

	if err := config.KUKEBOX_ROOT_CONFIG_FILE.Set(configFile); err != nil {
		return fmt.Errorf("%w: failed to set config file: %w", errdefs.ErrConfig, err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// a missing file is fine, flags and env still apply
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
		}
	}

	// applied after ReadInConfig so the file can set them
	if viper.GetString(config.KUKEBOX_ROOT_RUN_PATH.ViperKey) == "" {
		viper.Set(config.KUKEBOX_ROOT_RUN_PATH.ViperKey, config.DefaultRunPath())
	}
	if viper.GetString(config.KUKEBOX_ROOT_LOG_LEVEL.ViperKey) == "" {
		viper.Set(config.KUKEBOX_ROOT_LOG_LEVEL.ViperKey, config.KUKEBOX_ROOT_LOG_LEVEL.Default)
	}

	return nil
}

// LoadConfig is a public wrapper for tests.
func LoadConfig() error {
	return loadConfig()
}
