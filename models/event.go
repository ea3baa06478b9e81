package models

import (
	"time"

	"github.com/google/uuid"

	"goflare.io/gomarket/models/enum"
)

// CartEvent is published after a cart change has been written to storage.
type CartEvent struct {
	ID         string             `json:"id"`
	Type       enum.CartEventType `json:"type"`
	ProductID  string             `json:"product_id,omitempty"`
	Quantity   uint64             `json:"quantity"`
	Product    *Product           `json:"product,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func NewCartEvent(eventType enum.CartEventType, product Product) *CartEvent {
	event := &CartEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProductID:  product.ID,
		Quantity:   product.Quantity,
		OccurredAt: time.Now().UTC(),
	}
	if eventType != enum.CartEventTypeProductRemoved && eventType != enum.CartEventTypeCartCleared {
		p := product
		event.Product = &p
	}
	return event
}
