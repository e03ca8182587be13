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

package v1beta1

type (
	Version string
	Kind    string
)

const (
	// APIVersionV1Beta1 is the canonical API version for this package.
	APIVersionV1Beta1 Version = "v1beta1"
)

// Kinds.
const (
	// KindTemplate identifies sandbox template documents.
	KindTemplate Kind = "Template"
	// KindContainer identifies container summary documents.
	KindContainer Kind = "Container"
	// KindEventList identifies a page of the event feed.
	KindEventList Kind = "EventList"
)

// Common printable state strings.
const (
	StateStartingStr = "Starting"
	StateRunningStr  = "Running"
	StateStoppingStr = "Stopping"
	StateStoppedStr  = "Stopped"
	StateFailedStr   = "Failed"
	StateUnknownStr  = "Unknown"
)
