package event

import (
	"encoding/json"
	"fmt"

	"apisketch/internal/apperrors"
)

// EncodePayload renders the payload as the JSON stored in the log.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, invalid("payload is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, apperrors.Generic(fmt.Sprintf("encode %s payload", p.Type()), err)
	}
	return raw, nil
}

// DecodePayload parses stored JSON into the variant for t.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case TypeDefineRoot:
		var v DefineRoot
		err = unmarshal(raw, &v)
		p = v
	case TypeAdd:
		var v Add
		err = unmarshal(raw, &v)
		p = v
	case TypeUpdate:
		var v Update
		err = unmarshal(raw, &v)
		p = v
	case TypeDelete:
		var v Delete
		err = unmarshal(raw, &v)
		p = v
	case TypeMove:
		var v Move
		err = unmarshal(raw, &v)
		p = v
	default:
		return nil, invalid("unknown event type %q", t)
	}
	if err != nil {
		return nil, apperrors.Generic(fmt.Sprintf("decode %s payload", t), err)
	}
	return p, nil
}

func unmarshal(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Decode rebuilds a full event from its stored columns.
func Decode(seq int64, sketchID, userID, eventType string, raw []byte) (Event, error) {
	t := Type(eventType)
	p, err := DecodePayload(t, raw)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Seq:      seq,
		SketchID: sketchID,
		UserID:   userID,
		Type:     t,
		Payload:  p,
	}, nil
}
