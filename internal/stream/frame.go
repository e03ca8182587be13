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

package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeHeader returns the 8 byte frame header for a payload of size bytes.
func EncodeHeader(t StreamType, size int) ([HeaderSize]byte, error) {
	var h [HeaderSize]byte
	if size < 0 || size > MaxFrameSize {
		return h, fmt.Errorf("stream: frame size %d out of range", size)
	}
	h[0] = byte(t)
	binary.BigEndian.PutUint32(h[4:], uint32(size))
	return h, nil
}

// WriteFrame writes one frame carrying payload to w.
func WriteFrame(w io.Writer, t StreamType, payload []byte) error {
	h, err := EncodeHeader(t, len(payload))
	if err != nil {
		return err
	}
	if err = writeAll(w, h[:]); err != nil {
		return err
	}
	return writeAll(w, payload)
}

type frameWriter struct {
	w io.Writer
	t StreamType
}

// NewWriter returns a writer that wraps every Write in a frame of type t.
func NewWriter(w io.Writer, t StreamType) io.Writer {
	return &frameWriter{w: w, t: t}
}

func (f *frameWriter) Write(p []byte) (int, error) {
	for off := 0; off < len(p); {
		end := min(off+MaxFrameSize, len(p))
		if err := WriteFrame(f.w, f.t, p[off:end]); err != nil {
			return off, err
		}
		off = end
	}
	return len(p), nil
}
