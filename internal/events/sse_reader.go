package events

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Frame is one reassembled SSE frame. Name is the SSE event field ("done"
// and "error" are stream control frames, everything else is an event type).
type Frame struct {
	Name string
	Data []byte
}

// Done reports whether the frame terminates the stream.
func (f Frame) Done() bool { return f.Name == "done" }

// StreamReader reassembles logical SSE frames from a byte stream. It
// tolerates chunk boundaries splitting a frame (or a single line) across
// reads and discards comment lines.
type StreamReader struct {
	r *bufio.Reader
}

// NewStreamReader wraps r for frame-at-a-time reading.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReader(r)}
}

// Next blocks until one full frame is available. It returns io.EOF when the
// stream ends cleanly between frames.
func (s *StreamReader) Next() (Frame, error) {
	var frame Frame
	var data bytes.Buffer
	sawField := false

	for {
		line, err := s.readLine()
		if err != nil {
			if err == io.EOF && sawField {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}

		if len(line) == 0 {
			if !sawField {
				continue // stray blank line between frames
			}
			frame.Data = data.Bytes()
			return frame, nil
		}
		if line[0] == ':' {
			continue // comment / heartbeat
		}

		field, value := splitField(line)
		switch field {
		case "event":
			frame.Name = value
			sawField = true
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			sawField = true
		default:
			// id/retry and unknown fields are ignored.
		}
	}
}

// NextEvent reads the next frame and decodes it into a typed event. Control
// frames ("done", "error") are returned as frames with a nil event; the
// caller decides what to do with them.
func (s *StreamReader) NextEvent() (Event, Frame, error) {
	frame, err := s.Next()
	if err != nil {
		return nil, Frame{}, err
	}
	if frame.Name == "done" || frame.Name == "error" {
		return nil, frame, nil
	}
	ev, err := FromWire(Type(frame.Name), frame.Data)
	if err != nil {
		return nil, frame, fmt.Errorf("reassemble stream event: %w", err)
	}
	return ev, frame, nil
}

// readLine reads one full line, stitching together bufio's partial reads so
// a chunk boundary inside a line is invisible to the caller.
func (s *StreamReader) readLine() ([]byte, error) {
	var full []byte
	for {
		part, isPrefix, err := s.r.ReadLine()
		if err != nil {
			return nil, err
		}
		full = append(full, part...)
		if !isPrefix {
			return full, nil
		}
	}
}

func splitField(line []byte) (field, value string) {
	text := string(line)
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return text, ""
	}
	field = text[:idx]
	value = text[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
