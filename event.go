package gomarket

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/gomarket/event"
	"goflare.io/gomarket/models"
	"goflare.io/gomarket/models/enum"
)

type EventHandler func(context.Context, *models.CartEvent) error

// EventManager receives cart events from NATS and hands them to the registered handlers.
type EventManager struct {
	natsConn      *nats.Conn
	subjectPrefix string
	logger        *zap.Logger

	mu       sync.RWMutex
	handlers map[enum.CartEventType][]EventHandler
}

func NewEventManager(natsConn *nats.Conn, subjectPrefix string, logger *zap.Logger) *EventManager {
	if subjectPrefix == "" {
		subjectPrefix = event.DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventManager{
		natsConn:      natsConn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
		handlers:      make(map[enum.CartEventType][]EventHandler),
	}
}

func (em *EventManager) RegisterHandler(eventType enum.CartEventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[eventType] = append(em.handlers[eventType], handler)
}

// RegisterHandlerForAll registers handler for every cart event type.
func (em *EventManager) RegisterHandlerForAll(handler EventHandler) {
	for _, eventType := range []enum.CartEventType{
		enum.CartEventTypeProductAdded,
		enum.CartEventTypeProductIncremented,
		enum.CartEventTypeProductDecremented,
		enum.CartEventTypeProductRemoved,
		enum.CartEventTypeCartCleared,
	} {
		em.RegisterHandler(eventType, handler)
	}
}

func (em *EventManager) GetHandlers(eventType enum.CartEventType) ([]EventHandler, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	handlers, exists := em.handlers[eventType]
	return handlers, exists
}

// Dispatch runs every handler registered for the event's type and stops at the first error.
func (em *EventManager) Dispatch(ctx context.Context, ev *models.CartEvent) error {
	handlers, exists := em.GetHandlers(ev.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", ev.Type)
	}

	for _, handler := range handlers {
		if err := handler(ctx, ev); err != nil {
			em.logger.Error("Failed to handle cart event",
				zap.String("event_id", ev.ID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err))
			return err
		}
	}

	em.logger.Debug("Cart event processed", zap.String("event_id", ev.ID))
	return nil
}

// SubscribeToEvents subscribes to every cart event subject. Events for the same product
// are dispatched in the order they arrive.
func (em *EventManager) SubscribeToEvents(wp *WorkerPool) (*nats.Subscription, error) {
	subject := event.WildcardSubject(em.subjectPrefix)
	sub, err := em.natsConn.Subscribe(subject, func(msg *nats.Msg) {
		em.handleMessage(wp, msg.Data)
	})
	if err != nil {
		em.logger.Error("Failed to subscribe to cart events", zap.String("subject", subject), zap.Error(err))
		return nil, err
	}
	return sub, nil
}

func (em *EventManager) handleMessage(wp *WorkerPool, data []byte) {
	ev, err := event.Decode(data)
	if err != nil {
		em.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	// 事件處理失敗只記錄，不混進 pool 的寫入錯誤
	wp.Submit(context.Background(), ev.ProductID, func(ctx context.Context) error {
		if err := em.Dispatch(ctx, ev); err != nil {
			em.logger.Warn("Cart event not handled",
				zap.String("event_id", ev.ID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err))
		}
		return nil
	})
}
