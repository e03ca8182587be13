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

// Package stream decodes the multiplexed output protocol container runtimes use for attached
// exec sessions and turns arbitrary byte chunks into boundary-safe UTF-8 text.
//
// Every frame starts with an 8 byte header:
//
//	[0]    stream type: 0 stdin, 1 stdout, 2 stderr
//	[1:4]  reserved, always zero
//	[4:8]  payload length, big-endian uint32
//
// A header with non-zero reserved bytes or a length above MaxFrameSize means the channel is
// not multiplexed at all (for example a TTY session). The Demuxer then stops parsing for the
// rest of its life and forwards every byte to stdout.
package stream
