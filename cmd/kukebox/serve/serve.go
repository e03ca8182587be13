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

package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type serveController interface {
	Serve(opts controller.ServeOptions) error
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the TTL sweeper and health refresh on a schedule and expose metrics",
		Long: "Serve keeps running until interrupted. It sweeps expired containers and refreshes " +
			"container health on cron schedules, and serves Prometheus metrics on /metrics.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) serveController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			return ctrl.Serve(controller.ServeOptions{
				Addr:            viper.GetString(config.KUKEBOX_SERVE_ADDR.ViperKey),
				SweepSchedule:   viper.GetString(config.KUKEBOX_SERVE_SWEEP_SCHEDULE.ViperKey),
				RefreshSchedule: viper.GetString(config.KUKEBOX_SERVE_REFRESH_SCHEDULE.ViperKey),
			})
		},
	}

	cmd.Flags().String("addr", config.KUKEBOX_SERVE_ADDR.Default, "Listen address for /metrics and /healthz")
	_ = viper.BindPFlag(config.KUKEBOX_SERVE_ADDR.ViperKey, cmd.Flags().Lookup("addr"))

	cmd.Flags().String("sweep-schedule", config.KUKEBOX_SERVE_SWEEP_SCHEDULE.Default, "Cron schedule of the TTL sweep")
	_ = viper.BindPFlag(config.KUKEBOX_SERVE_SWEEP_SCHEDULE.ViperKey, cmd.Flags().Lookup("sweep-schedule"))

	cmd.Flags().String("refresh-schedule", config.KUKEBOX_SERVE_REFRESH_SCHEDULE.Default,
		"Cron schedule of the health refresh")
	_ = viper.BindPFlag(config.KUKEBOX_SERVE_REFRESH_SCHEDULE.ViperKey, cmd.Flags().Lookup("refresh-schedule"))

	return cmd
}
