package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the generic wire form of an event.
type Envelope struct {
	Version int             `json:"v"`
	Type    Type            `json:"type"`
	Data    json.RawMessage `json:"data"`
}

// decoders maps every known type to a factory for its zero value. The map
// doubles as the type guard: anything absent here is not a known event.
var decoders = map[Type]func() Event{
	TypePipelineStart:        func() Event { return &PipelineStart{} },
	TypePipelineResumed:      func() Event { return &PipelineResumed{} },
	TypePipelineStage:        func() Event { return &PipelineStage{} },
	TypePipelineComplete:     func() Event { return &PipelineComplete{} },
	TypePipelineError:        func() Event { return &PipelineError{} },
	TypeScreeningStart:       func() Event { return &ScreeningStart{} },
	TypeScreeningSignal:      func() Event { return &ScreeningSignal{} },
	TypeScreeningQuestion:    func() Event { return &ScreeningQuestion{} },
	TypeScreeningInsight:     func() Event { return &ScreeningInsight{} },
	TypeScreeningComplete:    func() Event { return &ScreeningComplete{} },
	TypeDimensionStart:       func() Event { return &DimensionStart{} },
	TypeDimensionPreliminary: func() Event { return &DimensionPreliminary{} },
	TypeDimensionQuestion:    func() Event { return &DimensionQuestion{} },
	TypeDimensionComplete:    func() Event { return &DimensionComplete{} },
	TypeDimensionToolCall:    func() Event { return &DimensionToolCall{} },
	TypeDimensionToolResult:  func() Event { return &DimensionToolResult{} },
	TypeVerdictComputing:     func() Event { return &VerdictComputing{} },
	TypeVerdictResult:        func() Event { return &VerdictResult{} },
	TypeRisksStart:           func() Event { return &RisksStart{} },
	TypeRisksComplete:        func() Event { return &RisksComplete{} },
	TypeAlternativesStart:    func() Event { return &AlternativesStart{} },
	TypeAlternativesComplete: func() Event { return &AlternativesComplete{} },
	TypeArchitectureStart:    func() Event { return &ArchitectureStart{} },
	TypeArchitectureComplete: func() Event { return &ArchitectureComplete{} },
	TypePrebuildComplete:     func() Event { return &PrebuildComplete{} },
	TypeReasoningStart:       func() Event { return &ReasoningStart{} },
	TypeReasoningChunk:       func() Event { return &ReasoningChunk{} },
	TypeReasoningComplete:    func() Event { return &ReasoningComplete{} },
	TypeAnswerReceived:       func() Event { return &AnswerReceived{} },
}

// KnownType reports whether t is part of the closed event set.
func KnownType(t Type) bool {
	_, ok := decoders[t]
	return ok
}

// Marshal encodes an event into its wire envelope.
func Marshal(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Version: SchemaVersion, Type: ev.EventType(), Data: data})
}

// Decode reconstitutes an event from its wire envelope, rejecting unknown
// types and incompatible versions.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Version != 0 && env.Version != SchemaVersion {
		return nil, fmt.Errorf("unsupported event schema version %d", env.Version)
	}
	return FromWire(env.Type, env.Data)
}

// FromWire reconstitutes an event from a type tag and its bare data
// payload, as received over SSE.
func FromWire(t Type, data []byte) (Event, error) {
	factory, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	ev := factory()
	if len(data) > 0 {
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", t, err)
		}
	}
	return ev, nil
}
