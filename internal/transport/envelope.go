package transport

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/template"
)

type MessageType string

const (
	TypeHello   MessageType = "hello"
	TypeSpawn   MessageType = "spawn"
	TypeDespawn MessageType = "despawn"
	TypeState   MessageType = "state"
)

func (t MessageType) valid() bool {
	switch t {
	case TypeHello, TypeSpawn, TypeDespawn, TypeState:
		return true
	}
	return false
}

// Envelope is the unit every carrier moves. Session is set on messages addressed to
// one session and empty on broadcasts.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Tick    uint64          `json:"tick"`
	Session string          `json:"session,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello greets a new session.
type Hello struct {
	Session        string   `json:"session"`
	TickRate       float64  `json:"tickRate"`
	Protocol       []string `json:"protocol"`
	BroadcastEvery int      `json:"broadcastEvery"`
}

// Spawn announces an instance. Template is the instance's resolved template, so a
// replica builds the same shape even when the instance was created with overrides.
type Spawn struct {
	ID       uint64                 `json:"id"`
	Kind     string                 `json:"kind"`
	Template *template.TemplateSpec `json:"template,omitempty"`
}

type Despawn struct {
	ID uint64 `json:"id"`
}

// Encode marshals payload into an envelope.
func Encode(typ MessageType, tick uint64, session string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", typ)
	}
	return json.Marshal(Envelope{Type: typ, Tick: tick, Session: session, Payload: raw})
}

// EncodeState wraps serialized state. JSON state is embedded as is; any other codec's
// bytes travel as a JSON string.
func EncodeState(tick uint64, session string, state []byte) ([]byte, error) {
	payload := json.RawMessage(state)
	if !json.Valid(state) {
		quoted, err := json.Marshal(string(state))
		if err != nil {
			return nil, errors.Wrap(err, "encode state payload")
		}
		payload = quoted
	}
	return json.Marshal(Envelope{Type: TypeState, Tick: tick, Session: session, Payload: payload})
}

func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, errors.Wrap(ErrBadEnvelope, err.Error())
	}
	if !e.Type.valid() {
		return Envelope{}, errors.Wrapf(ErrUnknownType, "%q", e.Type)
	}
	return e, nil
}

// Bind unmarshals the payload into v.
func (e Envelope) Bind(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.Wrapf(ErrBadEnvelope, "%s payload: %v", e.Type, err)
	}
	return nil
}

// State returns the serialized state carried by a state envelope.
func (e Envelope) State() ([]byte, error) {
	if e.Type != TypeState {
		return nil, errors.Wrapf(ErrBadEnvelope, "%s is not a state envelope", e.Type)
	}
	trimmed := bytes.TrimSpace(e.Payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.Wrapf(ErrBadEnvelope, "state payload: %v", err)
		}
		return []byte(s), nil
	}
	return trimmed, nil
}
