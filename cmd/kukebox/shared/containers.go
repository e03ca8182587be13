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
	"strings"
	"time"

	"github.com/eminwux/kukebox/internal/apischeme"
	"github.com/eminwux/kukebox/internal/modelhub"
	v1beta1 "github.com/eminwux/kukebox/pkg/api/model/v1beta1"
	"github.com/spf13/cobra"
)

// ContainerHeaders are the table columns for container summaries.
//
//nolint:gochecknoglobals // read-only table layout
var ContainerHeaders = []string{"ID", "ROLE", "STATUS", "IDENTITY", "LAST USED", "KILL AFTER", "SIDECARS"}

func ContainerRow(rec modelhub.ContainerRecord) []string {
	killAfter := "-"
	if rec.KillAfterAt != nil {
		killAfter = rec.KillAfterAt.UTC().Format(time.RFC3339)
	}
	lastUsed := "-"
	if !rec.LastUsedAt.IsZero() {
		lastUsed = rec.LastUsedAt.UTC().Format(time.RFC3339)
	}
	identity := rec.Identity
	if len(identity) > 12 {
		identity = identity[:12]
	}
	status := string(rec.Status)
	if rec.Orphaned {
		status += " (orphaned)"
	}
	sidecars := "-"
	if len(rec.Sidecars) > 0 {
		sidecars = strings.Join(rec.Sidecars, ",")
	}
	return []string{rec.ID, string(rec.Role), status, identity, lastUsed, killAfter, sidecars}
}

// ContainerDocs converts records to their external summaries.
func ContainerDocs(recs []modelhub.ContainerRecord) ([]v1beta1.ContainerDoc, error) {
	docs := make([]v1beta1.ContainerDoc, 0, len(recs))
	for _, rec := range recs {
		doc, err := apischeme.BuildContainerExternalFromInternal(rec, apischeme.VersionV1Beta1)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PrintContainers prints records as a table, or as one document (yaml/json) per record.
func PrintContainers(cmd *cobra.Command, format OutputFormat, recs []modelhub.ContainerRecord) error {
	if format == OutputFormatTable {
		rows := make([][]string, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, ContainerRow(rec))
		}
		PrintTable(cmd, ContainerHeaders, rows)
		return nil
	}

	docs, err := ContainerDocs(recs)
	if err != nil {
		return err
	}
	if len(docs) == 1 {
		return PrintDoc(cmd, format, docs[0])
	}
	return PrintDoc(cmd, format, docs)
}
