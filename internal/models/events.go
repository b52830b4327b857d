package models

import "time"

// Event types
const (
	EventTypeChatCompleted    = "CHAT_COMPLETED"
	EventTypeCartIntent       = "CART_INTENT"
	EventTypePurchaseRecorded = "PURCHASE_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatCompletedEvent published after each orchestration run, successful or not
type ChatCompletedEvent struct {
	BaseEvent
	StoreID    string `json:"store_id"`
	UserID     string `json:"user_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	TokensUsed int64  `json:"tokens_used"`
	ToolRounds int    `json:"tool_rounds"`
	Fallback   bool   `json:"fallback"`
}

// CartIntentEvent published when the assistant confirms a cart action.
// The client cart is the source of truth; this is audit only.
type CartIntentEvent struct {
	BaseEvent
	StoreID     string `json:"store_id"`
	UserID      string `json:"user_id"`
	ActionType  string `json:"action_type"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	PriceCents  int64  `json:"price_cents,omitempty"`
}

// PurchaseRecordedEvent published when a simulated purchase is booked
type PurchaseRecordedEvent struct {
	BaseEvent
	StoreID       string             `json:"store_id"`
	UserID        string             `json:"user_id"`
	InvoiceNumber string             `json:"invoice_number"`
	AmountCents   int64              `json:"amount_cents"`
	Items         []PurchaseItemData `json:"items"`
}

// PurchaseItemData represents item data in purchase events
type PurchaseItemData struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}
