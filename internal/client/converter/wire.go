// Package converter maps between the server's JSON representations and the
// local records, which carry both a client-generated local id and the
// optional server id.
package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref is a foreign key the server renders either as a bare id or as a
// nested object with an "id" field.
type Ref struct {
	ID   *int64
	Data json.RawMessage
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			ID *Number `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		if obj.ID != nil {
			id := int64(*obj.ID)
			r.ID = &id
		}
		r.Data = append(json.RawMessage(nil), b...)
		return nil
	}
	var n Number
	if err := n.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	id := int64(n)
	r.ID = &id
	return nil
}

// Number accepts a JSON number or a numeric string ("12.50"), which is how
// decimal fields are serialized.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = Number(f)
	return nil
}

// Text accepts a JSON string or number and keeps its textual form.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

func (r Ref) idValue() int64 {
	if r.ID == nil {
		return 0
	}
	return *r.ID
}

func numPtr(n *Number) *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

func numValue(n *Number) float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

func textPtr(t *Text) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func firstID(ids ...*int64) *int64 {
	for _, id := range ids {
		if id != nil {
			return id
		}
	}
	return nil
}

func rawOrNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// ServerID extracts the "id" field from a create response.
func ServerID(body json.RawMessage) (*int64, error) {
	var obj struct {
		ID *Number `json:"id"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode server id: %w", err)
	}
	if obj.ID == nil {
		return nil, nil
	}
	id := int64(*obj.ID)
	return &id, nil
}
