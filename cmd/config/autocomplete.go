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

package config

import (
	"log/slog"
	"strings"

	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/metadata"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CompleteContainerIDs completes container ids from the records under the run path. It
// never contacts the runtime.
func CompleteContainerIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) >= 1 {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	logger, ok := cmd.Context().Value(types.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	runPath := viper.GetString(KUKEBOX_ROOT_RUN_PATH.ViperKey)
	if runPath == "" {
		runPath = DefaultRunPath()
	}

	records, err := metadata.NewRecordStore(logger, runPath).List(cmd.Context())
	if err != nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if toComplete == "" || strings.HasPrefix(rec.ID, toComplete) {
			ids = append(ids, rec.ID)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
