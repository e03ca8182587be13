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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eminwux/kukebox/cmd/kukebox"
	"github.com/eminwux/kukebox/cmd/types"
	"github.com/eminwux/kukebox/internal/logging"
	"github.com/spf13/cobra"
)

const debugModeEnv = "KUKEBOX_DEBUG_MODE"

type rootFactory func() (*cobra.Command, error)

type factoryMap map[string]rootFactory

// mockFactoryMapKey is used to inject mock factory maps in tests via context.
type mockFactoryMapKey struct{}

func getFactories(ctx context.Context) factoryMap {
	if mockFactories, ok := ctx.Value(mockFactoryMapKey{}).(factoryMap); ok {
		return mockFactories
	}
	return factoryMap{
		"kukebox": kukebox.NewKukeboxCmd,
	}
}

// resolveFactory picks the subtree for the executable name, falling back to the
// KUKEBOX_DEBUG_MODE value when the binary was renamed (IDE runs, debuggers).
func resolveFactory(factories factoryMap, exe, debug string) (rootFactory, bool) {
	if factory, ok := factories[exe]; ok {
		return factory, true
	}
	factory, ok := factories[debug]
	return factory, ok
}

// execRoot runs root and maps the outcome to a process exit code. A command that ran in a
// container passes its own exit status through.
func execRoot(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		var exitErr *types.ExitCodeError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

func runWithFactory(ctx context.Context, factory rootFactory) int {
	root, err := factory()
	if err != nil {
		return 1
	}

	root.SetContext(ctx)
	return execRoot(root)
}

func main() {
	logger := logging.NewNoopLogger()
	ctx := context.WithValue(context.Background(), types.CtxLogger, logger)

	exe := filepath.Base(os.Args[0])
	factories := getFactories(ctx)

	if factory, ok := resolveFactory(factories, exe, os.Getenv(debugModeEnv)); ok {
		os.Exit(runWithFactory(ctx, factory))
	}

	fmt.Fprintf(os.Stderr, "unknown entry command: %s (set %s=kukebox to force)\n", exe, debugModeEnv)
	os.Exit(1)
}
