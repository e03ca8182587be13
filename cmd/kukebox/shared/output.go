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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatYAML  OutputFormat = "yaml"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// ParseOutputFormat validates an --output value. Empty means fallback.
func ParseOutputFormat(output string, fallback OutputFormat) (OutputFormat, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return fallback, nil
	}

	format := OutputFormat(strings.ToLower(output))
	switch format {
	case OutputFormatYAML, OutputFormatJSON, OutputFormatTable:
		return format, nil
	default:
		return fallback, fmt.Errorf("invalid output format: %s (supported: yaml, json, table)", output)
	}
}

// PrintYAML prints the resource as YAML.
func PrintYAML(cmd *cobra.Command, doc any) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(doc)
}

// PrintJSON prints the resource as JSON.
func PrintJSON(cmd *cobra.Command, doc any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// PrintDoc prints doc as YAML or JSON.
func PrintDoc(cmd *cobra.Command, format OutputFormat, doc any) error {
	if format == OutputFormatJSON {
		return PrintJSON(cmd, doc)
	}
	return PrintYAML(cmd, doc)
}

// PrintTable prints resources in a table format.
func PrintTable(cmd *cobra.Command, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No resources found.")
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		var sb strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(sb.String(), " "))
	}

	printRow(headers)
	separator := make([]string, len(widths))
	for i, w := range widths {
		separator[i] = strings.Repeat("-", w)
	}
	printRow(separator)
	for _, row := range rows {
		printRow(row)
	}
}
