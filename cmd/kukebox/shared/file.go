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
	"io"
	"os"

	"github.com/eminwux/kukebox/internal/modelhub"
	"github.com/eminwux/kukebox/internal/template"
)

// ReadFileOrStdin reads from a file or stdin if file is "-".
// Returns the reader and a cleanup function that should be called when done.
func ReadFileOrStdin(cmd interface{ InOrStdin() io.Reader }, file string) (io.Reader, func() error, error) {
	if file == "-" {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file %q: %w", file, err)
	}

	return f, f.Close, nil
}

// LoadTemplate reads file (or stdin for "-") and returns the validated template called name.
// An empty name selects the only template in the file.
func LoadTemplate(cmd interface{ InOrStdin() io.Reader }, file, name string) (modelhub.ProviderConfig, error) {
	reader, cleanup, err := ReadFileOrStdin(cmd, file)
	if err != nil {
		return modelhub.ProviderConfig{}, err
	}
	defer func() { _ = cleanup() }()

	return template.Load(reader, name)
}
