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

package events

import (
	"strconv"
	"time"

	"github.com/eminwux/kukebox/cmd/config"
	"github.com/eminwux/kukebox/cmd/kukebox/shared"
	"github.com/eminwux/kukebox/internal/apischeme"
	"github.com/eminwux/kukebox/internal/controller"
	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultLimit = 100

type eventsController interface {
	ListEvents(after uint64, limit int) (modelhub.EventPage, error)
	Close() error
}

// MockControllerKey is used to inject mock controllers in tests via context.
type MockControllerKey struct{}

func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the container lifecycle event feed",
		Long: "Events prints the lifecycle events recorded after the --after cursor, oldest first. " +
			"Pass the returned next cursor as --after to continue reading.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := shared.ParseOutputFormat(
				viper.GetString(config.KUKEBOX_GET_EVENTS_OUTPUT.ViperKey),
				shared.OutputFormatTable,
			)
			if err != nil {
				return err
			}
			after := viper.GetUint64(config.KUKEBOX_GET_EVENTS_AFTER.ViperKey)
			limit := viper.GetInt(config.KUKEBOX_GET_EVENTS_LIMIT.ViperKey)

			ctrl, err := shared.GetControllerWithMock(cmd, MockControllerKey{},
				func(c *controller.Exec) eventsController { return c })
			if err != nil {
				return err
			}
			defer ctrl.Close()

			page, err := ctrl.ListEvents(after, limit)
			if err != nil {
				return err
			}

			if format == shared.OutputFormatTable {
				printTable(cmd, page)
				return nil
			}

			doc, err := apischeme.BuildEventListExternalFromInternal(page, apischeme.VersionV1Beta1)
			if err != nil {
				return err
			}
			return shared.PrintDoc(cmd, format, doc)
		},
	}

	cmd.Flags().Uint64("after", 0, "Only show events with a sequence number above this cursor")
	_ = viper.BindPFlag(config.KUKEBOX_GET_EVENTS_AFTER.ViperKey, cmd.Flags().Lookup("after"))

	cmd.Flags().Int("limit", defaultLimit, "Maximum number of events to show")
	_ = viper.BindPFlag(config.KUKEBOX_GET_EVENTS_LIMIT.ViperKey, cmd.Flags().Lookup("limit"))

	cmd.Flags().StringP("output", "o", "", "Output format (yaml, json, table)")
	_ = viper.BindPFlag(config.KUKEBOX_GET_EVENTS_OUTPUT.ViperKey, cmd.Flags().Lookup("output"))

	return cmd
}

func printTable(cmd *cobra.Command, page modelhub.EventPage) {
	rows := make([][]string, 0, len(page.Events))
	for _, ev := range page.Events {
		message := ev.Message
		if message == "" {
			message = "-"
		}
		rows = append(rows, []string{
			strconv.FormatUint(ev.Seq, 10),
			ev.Time.UTC().Format(time.RFC3339),
			string(ev.Type),
			ev.ContainerID,
			string(ev.Role),
			message,
		})
	}
	shared.PrintTable(cmd, []string{"SEQ", "TIME", "TYPE", "CONTAINER", "ROLE", "MESSAGE"}, rows)
	if len(rows) > 0 {
		cmd.PrintErrf("next: %d\n", page.Next)
	}
}
