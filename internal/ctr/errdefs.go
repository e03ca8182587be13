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

package ctr

import (
	"errors"
	"strings"
)

var (
	// ErrNotConnected indicates that the runtime has no containerd connection.
	ErrNotConnected = errors.New("ctr: not connected to containerd")
	// ErrEmptyContainerID indicates that a container id is required.
	ErrEmptyContainerID = errors.New("ctr: container id is required")
	// ErrContainerNotFound indicates that a container was not found.
	ErrContainerNotFound = errors.New("ctr: container not found")
	// ErrTaskNotFound indicates that a task was not found.
	ErrTaskNotFound = errors.New("ctr: task not found")
	// ErrTaskNotRunning indicates that a task is not running.
	ErrTaskNotRunning = errors.New("ctr: task is not running")
	// ErrInvalidImage indicates that an image reference is required.
	ErrInvalidImage = errors.New("ctr: image reference is required")
	// ErrNoProcessSpec indicates that the container spec carries no process to derive execs from.
	ErrNoProcessSpec = errors.New("ctr: container spec has no process")
)

// formatError recursively unwraps errors and formats the full error chain.
func formatError(err error) string {
	if err == nil {
		return "<nil>"
	}

	var parts []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		parts = append(parts, current.Error())
	}
	return strings.Join(parts, ": ")
}
