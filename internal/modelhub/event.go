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

package modelhub

import "time"

type EventType string

const (
	EventStart  EventType = "start"
	EventReuse  EventType = "reuse"
	EventStop   EventType = "stop"
	EventRemove EventType = "remove"
	EventExpire EventType = "expire"
	EventOrphan EventType = "orphan"
	EventHealth EventType = "health"
)

// Event is one entry of the container event feed consumed by monitoring.
type Event struct {
	Seq         uint64
	Time        time.Time
	Type        EventType
	ContainerID string
	Identity    string
	Role        Role
	Message     string
}

// EventPage is one page of the event feed. Next is the cursor to pass as "after" for the
// following page; it equals the request cursor when the page is empty.
type EventPage struct {
	Events []Event
	Next   uint64
}
