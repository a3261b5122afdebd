package events

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"llmfit/internal/state"
	"llmfit/internal/tester"
)

// chunkedReader hands the stream out in fixed-size pieces to force frame
// and line boundaries to straddle reads.
type chunkedReader struct {
	data []byte
	size int
	off  int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.off >= len(c.data) {
		return 0, io.EOF
	}
	end := c.off + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.off:end])
	c.off += n
	return n, nil
}

func TestWriteFrame_Format(t *testing.T) {
	var buf bytes.Buffer
	tester.NoErr(t, WriteFrame(&buf, NewScreeningStart()))

	got := buf.String()
	tester.True(t, strings.HasPrefix(got, "event: screening:start\ndata: "), got)
	tester.True(t, strings.HasSuffix(got, "\n\n"), got)
}

func TestStreamReader_ReassemblesAcrossChunkBoundaries(t *testing.T) {
	var buf bytes.Buffer
	tester.NoErr(t, WriteFrame(&buf, NewPipelineStage(state.StageScreening)))
	tester.NoErr(t, WriteHeartbeat(&buf))
	tester.NoErr(t, WriteFrame(&buf, NewReasoningChunk("partial text")))
	tester.NoErr(t, WriteDone(&buf))

	// 3-byte chunks split every line several times.
	r := NewStreamReader(&chunkedReader{data: buf.Bytes(), size: 3})

	ev, frame, err := r.NextEvent()
	tester.NoErr(t, err)
	tester.Eq(t, frame.Name, string(TypePipelineStage))
	stage, ok := ev.(*PipelineStage)
	tester.True(t, ok)
	tester.Eq(t, stage.Stage, state.StageScreening)

	// The heartbeat comment is invisible; next frame is the chunk.
	ev, _, err = r.NextEvent()
	tester.NoErr(t, err)
	chunk, ok := ev.(*ReasoningChunk)
	tester.True(t, ok)
	tester.Eq(t, chunk.Chunk, "partial text")

	ev, frame, err = r.NextEvent()
	tester.NoErr(t, err)
	tester.True(t, ev == nil, "done is a control frame")
	tester.True(t, frame.Done())

	_, _, err = r.NextEvent()
	tester.Eq(t, err, io.EOF)
}

func TestStreamReader_ErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	tester.NoErr(t, WriteStreamError(&buf, "UNKNOWN", "backend exploded"))

	r := NewStreamReader(&buf)
	ev, frame, err := r.NextEvent()
	tester.NoErr(t, err)
	tester.True(t, ev == nil)
	tester.Eq(t, frame.Name, "error")
	tester.True(t, strings.Contains(string(frame.Data), "backend exploded"))
}

func TestStreamReader_UnknownEventTypeFails(t *testing.T) {
	r := NewStreamReader(strings.NewReader("event: mystery:event\ndata: {}\n\n"))
	_, _, err := r.NextEvent()
	tester.Err(t, err)
}
