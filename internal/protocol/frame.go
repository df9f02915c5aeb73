package protocol

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Frame is the envelope every outbound message travels in. IDs are ULIDs so
// frames for one session sort in send order.
type Frame[T any] struct {
	ID   ulid.ULID `json:"id"`
	Type Type      `json:"type"`
	Body T         `json:"body"`
}

func Encode(c Codec, msg Message) ([]byte, error) {
	data, err := c.Marshal(Frame[Message]{
		ID:   ulid.Make(),
		Type: msg.Type(),
		Body: msg,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}
	return data, nil
}

// Decode reads a frame whose body is known to be T.
func Decode[T any](c Codec, data []byte) (Frame[T], error) {
	var f Frame[T]
	if err := c.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}

// PeekType returns the frame type without decoding the body.
func PeekType(c Codec, data []byte) (Type, error) {
	var f struct {
		Type Type `json:"type"`
	}
	if err := c.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("decoding frame: %w", err)
	}
	return f.Type, nil
}

// SessionSubject is the subject frames for one session are published on.
func SessionSubject(id uuid.UUID) string {
	return "session." + id.String()
}
