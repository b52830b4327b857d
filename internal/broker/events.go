package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"assistant-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishChatCompleted publishes ChatCompleted event
func (ep *EventPublisher) PublishChatCompleted(ctx context.Context, event *models.ChatCompletedEvent) error {
	key := fmt.Sprintf("store-%s", event.StoreID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishCartIntent publishes CartIntent event
func (ep *EventPublisher) PublishCartIntent(ctx context.Context, event *models.CartIntentEvent) error {
	key := fmt.Sprintf("user-%s", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishPurchaseRecorded publishes PurchaseRecorded event
func (ep *EventPublisher) PublishPurchaseRecorded(ctx context.Context, event *models.PurchaseRecordedEvent) error {
	key := fmt.Sprintf("store-%s", event.StoreID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCartIntent    func(context.Context, *models.CartIntentEvent) error
	onChatCompleted func(context.Context, *models.ChatCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCartIntent registers a handler for CartIntent events
func (eh *EventHandler) OnCartIntent(handler func(context.Context, *models.CartIntentEvent) error) {
	eh.onCartIntent = handler
}

// OnChatCompleted registers a handler for ChatCompleted events
func (eh *EventHandler) OnChatCompleted(handler func(context.Context, *models.ChatCompletedEvent) error) {
	eh.onChatCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeCartIntent:
		if eh.onCartIntent != nil {
			var event models.CartIntentEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartIntent event: %w", err)
			}
			return eh.onCartIntent(ctx, &event)
		}

	case models.EventTypeChatCompleted:
		if eh.onChatCompleted != nil {
			var event models.ChatCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ChatCompleted event: %w", err)
			}
			return eh.onChatCompleted(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
