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

package errdefs

import (
	"errors"
)

var (
	ErrConfig                = errors.New("config error")
	ErrLoggerNotFound        = errors.New("logger not found in context")
	ErrWriteMetadata         = errors.New("failed to write metadata file")
	ErrMissingMetadataFile   = errors.New("missing metadata file")
	ErrUnsupportedAPIVersion = errors.New("unsupported apiVersion")
	ErrUnknownKind           = errors.New("unknown kind")
	ErrConversionFailed      = errors.New("conversion failed")
	ErrUnknownRuntime        = errors.New("unknown container runtime")
	ErrConnectRuntime        = errors.New("failed to connect to container runtime")

	// Provisioning taxonomy.
	ErrStartFailed     = errors.New("container start failed")
	ErrLookupFailed    = errors.New("container lookup failed")
	ErrPlatformUnknown = errors.New("container platform unknown")
	ErrExecFailed      = errors.New("container exec failed")
	ErrProtocolAnomaly = errors.New("stream is not multiplexed")
	ErrStopFailed      = errors.New("container stop failed")
	ErrRemoveFailed    = errors.New("container remove failed")
	ErrLockFailed      = errors.New("failed to lock identity")

	// Template policy.
	ErrImageRequired    = errors.New("image is required")
	ErrTemplateRequired = errors.New("template name is required")
	ErrTaskIDRequired   = errors.New("task id is required")
	ErrDuplicateEnv     = errors.New("duplicate environment variable")
	ErrEmptyEnvName     = errors.New("environment variable name is required")
	ErrInvalidPlatform  = errors.New("invalid platform")
	ErrInvalidTTL       = errors.New("ttlSeconds must be greater than zero")
	ErrEmptyArgv        = errors.New("command argv is required")

	ErrContainerNotFound   = errors.New("container not found")
	ErrContainerIDRequired = errors.New("container id is required")
	ErrEventStore          = errors.New("event store error")
)
