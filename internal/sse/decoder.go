// Package sse decodes the tutoring backend's streaming wire protocol and
// maps decoded frames to domain events.
//
// Each frame is UTF-8 text terminated by a blank line. Within a frame an
// optional "event: <type>" line precedes a required "data: <json>" line.
package sse

import (
	"bytes"
	"log/slog"
	"strings"
)

// Frame is one delimited unit of the wire protocol. Frames exist only
// between the decoder and the dispatcher.
type Frame struct {
	EventType string
	Data      string
}

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Decoder incrementally reassembles frames from raw stream chunks. One
// decoder is owned by exactly one open stream: its buffer is fresh at
// stream open and discarded at stream close, never shared across sessions.
type Decoder struct {
	buf    []byte
	first  bool
	logger *slog.Logger
}

// NewDecoder creates a decoder for a single stream.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{first: true, logger: logger}
}

// Feed consumes the next chunk and returns every frame completed by it.
// A partial frame at the end of the chunk is retained and prefixed to the
// next chunk, so decoding is independent of how the stream is split.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if d.first {
		chunk = bytes.TrimPrefix(chunk, []byte("\xef\xbb\xbf"))
		d.first = false
	}
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		raw, rest, ok := cutFrame(d.buf)
		if !ok {
			break
		}
		d.buf = rest
		if f, ok := parseFrame(raw); ok {
			frames = append(frames, f)
		} else {
			d.logger.Debug("dropping frame without data line", slog.String("raw", string(raw)))
		}
	}
	return frames
}

// Finish signals end of stream. Buffered-but-incomplete data at this point
// is a protocol fault: it is logged and discarded, never emitted as a half
// frame.
func (d *Decoder) Finish() {
	if len(bytes.TrimSpace(d.buf)) > 0 {
		d.logger.Warn("discarding incomplete frame at end of stream",
			slog.Int("buffered_bytes", len(d.buf)))
	}
	d.buf = nil
}

// cutFrame splits off the first complete frame at a blank-line boundary.
// CRLF line endings are tolerated.
func cutFrame(buf []byte) (frame, rest []byte, ok bool) {
	for _, delim := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if i := bytes.Index(buf, delim); i >= 0 {
			return buf[:i], buf[i+len(delim):], true
		}
	}
	return nil, buf, false
}

// parseFrame splits frame text into event type and data using
// label-prefixed line matching. A frame lacking a data line is dropped.
func parseFrame(raw []byte) (Frame, bool) {
	var f Frame
	hasData := false
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, eventPrefix):
			f.EventType = strings.TrimPrefix(line, eventPrefix)
		case strings.HasPrefix(line, dataPrefix):
			f.Data = strings.TrimPrefix(line, dataPrefix)
			hasData = true
		}
	}
	return f, hasData
}
