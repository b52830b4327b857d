package worker

import (
	"context"
	"encoding/json"
	"log"

	"assistant-service/internal/broker"
	"assistant-service/internal/models"
	"assistant-service/internal/store"
)

// ActivityWorker turns cart-intent events into append-only activity
// log rows. Audit writes ride Kafka so a slow or failing insert never
// delays a chat response.
type ActivityWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
}

// NewActivityWorker creates a new activity worker
func NewActivityWorker(consumer *broker.Consumer, st *store.Store) *ActivityWorker {
	w := &ActivityWorker{
		consumer: consumer,
		store:    st,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCartIntent(w.handleCartIntent)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ActivityWorker) Start(ctx context.Context) error {
	log.Println("Starting activity worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	log.Println("Stopping activity worker...")
	return w.consumer.Close()
}

// handleCartIntent writes one activity row per cart intent, with
// event-id dedupe so redelivery cannot double-log
func (w *ActivityWorker) handleCartIntent(ctx context.Context, event *models.CartIntentEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		log.Printf("Event already processed: %s", event.EventID)
		return nil
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"product_name": event.ProductName,
		"quantity":     event.Quantity,
		"price_cents":  event.PriceCents,
		"store_id":     event.StoreID,
	})
	if err != nil {
		return err
	}

	entry := &models.ActivityLog{
		UserID:     event.UserID,
		ActionType: event.ActionType,
		TargetID:   event.ProductID,
		Metadata:   metadata,
	}

	if err := w.store.CreateActivityLog(ctx, entry); err != nil {
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
