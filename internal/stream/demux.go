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
	"encoding/hex"
	"errors"
	"io"
	"log/slog"

	"github.com/eminwux/kukebox/internal/errdefs"
	"github.com/eminwux/kukebox/internal/logging"
)

const (
	HeaderSize = 8
	// MaxFrameSize is the largest payload length accepted in a frame header (64 MiB).
	MaxFrameSize = 64 << 20
)

type StreamType byte

const (
	Stdin     StreamType = 0
	Stdout    StreamType = 1
	Stderr    StreamType = 2
	Systemerr StreamType = 3
)

var ErrClosed = errors.New("stream: demuxer is closed")

// Demuxer is a push decoder: feed it chunks with Write in arrival order and call Close at end
// of stream. It keeps the partial frame between calls, so chunk boundaries do not matter.
// A Demuxer belongs to exactly one exec session and is not safe for concurrent use.
type Demuxer struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	buf    []byte
	raw    bool
	closed bool
}

type Option func(*Demuxer)

// WithLogger sets the logger used to report the raw-mode fallback.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Demuxer) {
		d.logger = logger
	}
}

func NewDemuxer(stdout, stderr io.Writer, opts ...Option) *Demuxer {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	d := &Demuxer{
		stdout: stdout,
		stderr: stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrNoop(d.logger)
	return d
}

// Raw reports whether the demuxer gave up on framing and treats everything as stdout.
func (d *Demuxer) Raw() bool {
	return d.raw
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Write consumes p. It always accepts the whole chunk; an error comes only from the
// downstream writers.
func (d *Demuxer) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if d.raw {
		if err := writeAll(d.stdout, p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	d.buf = append(d.buf, p...)
	if err := d.drain(); err != nil {
		return len(p), err
	}
	return len(p), nil
}

// Close flushes any buffered, unparsed bytes to stdout. Further writes fail with ErrClosed.
func (d *Demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if len(d.buf) == 0 {
		return nil
	}
	pending := d.buf
	d.buf = nil
	return writeAll(d.stdout, pending)
}

func (d *Demuxer) drain() error {
	off := 0
	defer func() {
		if off > 0 {
			n := copy(d.buf, d.buf[off:])
			d.buf = d.buf[:n]
		}
	}()

	for len(d.buf)-off >= HeaderSize {
		header := d.buf[off : off+HeaderSize]
		size, ok := parseHeader(header)
		if !ok {
			d.raw = true
			d.logger.Debug(
				"stream is not multiplexed, forwarding raw bytes to stdout",
				"err", errdefs.ErrProtocolAnomaly,
				"header", hex.EncodeToString(header),
			)
			pending := d.buf[off:]
			off = len(d.buf)
			return writeAll(d.stdout, pending)
		}

		end := off + HeaderSize + size
		if len(d.buf) < end {
			return nil
		}

		payload := d.buf[off+HeaderSize : end]
		var err error
		switch StreamType(header[0]) {
		case Stdout:
			err = writeAll(d.stdout, payload)
		case Stderr:
			err = writeAll(d.stderr, payload)
		case Stdin, Systemerr:
			// not part of the command output
		default:
			// unknown stream ids are dropped with the frame
		}
		off = end
		if err != nil {
			return err
		}
	}
	return nil
}

// parseHeader validates a frame header and returns its payload length.
func parseHeader(h []byte) (int, bool) {
	if h[1] != 0 || h[2] != 0 || h[3] != 0 {
		return 0, false
	}
	size := binary.BigEndian.Uint32(h[4:HeaderSize])
	if size > MaxFrameSize {
		return 0, false
	}
	return int(size), true
}

func writeAll(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Copy demultiplexes src into stdout and stderr until EOF or a read error. It reports whether
// the stream fell back to raw mode. io.EOF is not returned as an error.
func Copy(stdout, stderr io.Writer, src io.Reader, opts ...Option) (bool, error) {
	d := NewDemuxer(stdout, stderr, opts...)
	_, err := io.Copy(d, src)
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return d.Raw(), err
}

// Split returns independent stdout and stderr readers fed from src. Both readers are closed
// when src ends, receiving src's read error if there was one. The two readers must be drained
// concurrently, since a pending write to one blocks the other.
func Split(src io.Reader, opts ...Option) (*io.PipeReader, *io.PipeReader) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	go func() {
		_, err := Copy(outW, errW, src, opts...)
		_ = outW.CloseWithError(err)
		_ = errW.CloseWithError(err)
	}()
	return outR, errR
}
