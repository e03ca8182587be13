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
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextDecoder incrementally decodes UTF-8 chunks. A character split across two Append calls
// is held back until its last byte arrives. Invalid sequences become U+FFFD.
type TextDecoder struct {
	dec     transform.Transformer
	pending []byte
}

func NewTextDecoder() *TextDecoder {
	return &TextDecoder{dec: unicode.UTF8.NewDecoder()}
}

// Append adds a chunk and returns the text that is complete so far.
func (t *TextDecoder) Append(p []byte) string {
	t.pending = append(t.pending, p...)
	return t.decode(false)
}

// Flush returns whatever is still held back, replacing an incomplete trailing sequence,
// and resets the decoder.
func (t *TextDecoder) Flush() string {
	s := t.decode(true)
	t.pending = t.pending[:0]
	t.dec.Reset()
	return s
}

func (t *TextDecoder) decode(atEOF bool) string {
	if len(t.pending) == 0 {
		return ""
	}

	var sb strings.Builder
	// An invalid byte expands to the three byte replacement character.
	dst := make([]byte, 3*len(t.pending)+utf8.UTFMax)
	src := t.pending
	for {
		nDst, nSrc, err := t.dec.Transform(dst, src, atEOF)
		sb.Write(dst[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		break
	}
	t.pending = append(t.pending[:0], src...)
	return sb.String()
}

// TextCollector is an io.Writer that decodes what it receives into text, keeps the full
// text, and forwards each decoded piece to an optional sink.
type TextCollector struct {
	dec  *TextDecoder
	sb   strings.Builder
	sink io.Writer
}

func NewTextCollector(sink io.Writer) *TextCollector {
	return &TextCollector{dec: NewTextDecoder(), sink: sink}
}

func (c *TextCollector) Write(p []byte) (int, error) {
	if err := c.emit(c.dec.Append(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush emits the decoder's trailing bytes.
func (c *TextCollector) Flush() error {
	return c.emit(c.dec.Flush())
}

func (c *TextCollector) String() string {
	return c.sb.String()
}

func (c *TextCollector) emit(s string) error {
	if s == "" {
		return nil
	}
	c.sb.WriteString(s)
	if c.sink != nil {
		if _, err := io.WriteString(c.sink, s); err != nil {
			return err
		}
	}
	return nil
}
