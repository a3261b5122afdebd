package events

import (
	"encoding/json"
	"fmt"
	"io"
)

// SSE framing for the event stream. Each event serializes as
//
//	event: <type>\n
//	data: <json>\n
//	\n
//
// Heartbeats are comment lines, termination is a synthetic "done" frame and
// out-of-band failures a synthetic "error" frame. These two frame names are
// reserved and never collide with event types (which all contain a colon).

// WriteFrame writes one event frame to w.
func WriteFrame(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventType(), err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType(), data)
	return err
}

// WriteHeartbeat writes an SSE comment used as a keep-alive.
func WriteHeartbeat(w io.Writer) error {
	_, err := io.WriteString(w, ": ping\n\n")
	return err
}

// WriteDone terminates the stream.
func WriteDone(w io.Writer) error {
	_, err := io.WriteString(w, "event: done\ndata: {}\n\n")
	return err
}

// WriteStreamError reports an out-of-band failure on the stream.
func WriteStreamError(w io.Writer, code, message string) error {
	payload, err := json.Marshal(map[string]string{"message": message, "code": code})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
	return err
}
