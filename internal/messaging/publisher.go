package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/protocol"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher delivers outbound frames to each session's subject.
type Publisher struct {
	server publisher
	codec  protocol.Codec
}

func NewPublisher(server publisher, codec protocol.Codec) *Publisher {
	return &Publisher{server: server, codec: codec}
}

func (p *Publisher) Send(ctx context.Context, viewer uuid.UUID, msg protocol.Message) error {
	data, err := protocol.Encode(p.codec, msg)
	if err != nil {
		return err
	}
	if err := p.server.Publish(protocol.SessionSubject(viewer), data); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", msg.Type(), viewer, err)
	}
	return nil
}
