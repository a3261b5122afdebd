package events

import (
	"encoding/json"
	"testing"

	"llmfit/internal/state"
	"llmfit/internal/tester"
)

func TestKnownType_ClosedSet(t *testing.T) {
	tester.True(t, KnownType(TypePipelineStart))
	tester.True(t, KnownType(TypeReasoningChunk))
	tester.False(t, KnownType(Type("pipeline:unknown")))
	tester.False(t, KnownType(Type("")))
}

func TestMarshalDecode_RoundTrip(t *testing.T) {
	orig := NewDimensionPreliminary("task_clarity", state.ScoreFavorable, 0.85)

	raw, err := Marshal(orig)
	tester.NoErr(t, err)

	var env Envelope
	tester.NoErr(t, json.Unmarshal(raw, &env))
	tester.Eq(t, env.Version, SchemaVersion)
	tester.Eq(t, env.Type, TypeDimensionPreliminary)

	got, err := Decode(raw)
	tester.NoErr(t, err)
	dim, ok := got.(*DimensionPreliminary)
	tester.True(t, ok)
	tester.Eq(t, dim.DimensionID, "task_clarity")
	tester.Eq(t, dim.Score, state.ScoreFavorable)
}

func TestDecode_RejectsUnknownTypeAndVersion(t *testing.T) {
	_, err := Decode([]byte(`{"v":1,"type":"mystery:event","data":{}}`))
	tester.Err(t, err)

	_, err = Decode([]byte(`{"v":99,"type":"pipeline:start","data":{}}`))
	tester.Err(t, err)
}

func TestFromWire_EmptyDataYieldsZeroEvent(t *testing.T) {
	ev, err := FromWire(TypeVerdictComputing, nil)
	tester.NoErr(t, err)
	tester.Eq(t, ev.EventType(), TypeVerdictComputing)
}
