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

package e2e_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const kukebox = "kukebox"

// binaryPath returns the kukebox binary under E2E_BIN_DIR (default: repo root) or skips.
func binaryPath(t *testing.T) string {
	t.Helper()

	dir := os.Getenv("E2E_BIN_DIR")
	if dir == "" {
		dir = ".."
	}
	bin := filepath.Join(dir, kukebox)

	if _, err := os.Stat(bin); os.IsNotExist(err) {
		t.Skipf("binary %s not found, skipping", bin)
	}
	return bin
}

// requireDocker skips tests that start real containers unless KUKEBOX_E2E_DOCKER is set.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("KUKEBOX_E2E_DOCKER") == "" {
		t.Skip("KUKEBOX_E2E_DOCKER not set, skipping runtime test")
	}
}

// runReturningBinary runs kukebox with args, failing the test on non-zero exit or empty output.
func runReturningBinary(t *testing.T, args ...string) []byte {
	t.Helper()

	code, stdout, stderr := runBinary(t, nil, "", args...)
	if code != 0 {
		t.Fatalf("kukebox %v exited %d\nstdout:\n%s\nstderr:\n%s", args, code, stdout, stderr)
	}
	if len(stdout) == 0 {
		t.Fatalf("no output from kukebox %v", args)
	}
	return stdout
}

// runBinary executes kukebox and returns exit code, stdout and stderr separately.
func runBinary(t *testing.T, env []string, stdin string, args ...string) (int, []byte, []byte) {
	t.Helper()

	bin := binaryPath(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		} else {
			t.Fatalf("failed to run %s %v: %v", bin, args, err)
		}
	}

	return exitCode, []byte(stdoutBuf.String()), []byte(stderrBuf.String())
}

// runPathArgs isolates a test in its own run path and event database.
func runPathArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--run-path", t.TempDir(), "--config", filepath.Join(t.TempDir(), "none.yaml")}
}
