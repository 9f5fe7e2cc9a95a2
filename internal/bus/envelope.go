package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned by Decode for payloads that are not a
// JSON object with a non-empty string "event" field.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the unit of delivery. Data is shared between every handler of
// one dispatch and must be treated as read-only.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var null = json.RawMessage("null")

// Decode parses one wire envelope. A missing data field decodes as null.
func Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: not a JSON object", ErrMalformedEnvelope)
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}
	if len(env.Data) == 0 {
		env.Data = null
	}
	return env, nil
}

// Encode builds the wire form of an outbound envelope. data may be nil,
// a json.RawMessage, or any JSON-marshalable value.
func Encode(event string, data any) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}

	var payload json.RawMessage
	switch v := data.(type) {
	case nil:
		payload = null
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: data is not valid JSON", ErrMalformedEnvelope)
		}
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", event, err)
		}
		payload = b
	}

	return json.Marshal(Envelope{Event: event, Data: payload})
}

// Unmarshal decodes the envelope payload into v.
func (e Envelope) Unmarshal(v any) error {
	return json.Unmarshal(e.Data, v)
}
