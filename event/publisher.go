package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/gomarket/models"
	"goflare.io/gomarket/models/enum"
)

const DefaultSubjectPrefix = "gomarket.cart"

// Publisher announces cart changes once they have reached storage.
type Publisher interface {
	Publish(ctx context.Context, event *models.CartEvent) error
}

var (
	_ Publisher = (*natsPublisher)(nil)
	_ Publisher = NopPublisher{}
)

type natsPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *zap.Logger
}

func NewNATSPublisher(conn *nats.Conn, subjectPrefix string, logger *zap.Logger) Publisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &natsPublisher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}
}

func (p *natsPublisher) Publish(_ context.Context, event *models.CartEvent) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	subject := Subject(p.subjectPrefix, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish cart event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.CartEvent) error { return nil }

// Subject returns the subject an event of type t is published on.
func Subject(prefix string, t enum.CartEventType) string {
	return prefix + "." + string(t)
}

// WildcardSubject matches every cart event under prefix.
func WildcardSubject(prefix string) string {
	return prefix + ".>"
}

func Encode(event *models.CartEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal cart event %s: %w", event.ID, err)
	}
	return data, nil
}

func Decode(data []byte) (*models.CartEvent, error) {
	var event models.CartEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal cart event: %w", err)
	}
	if !event.Type.Valid() {
		return nil, fmt.Errorf("unknown cart event type %q", event.Type)
	}
	return &event, nil
}
