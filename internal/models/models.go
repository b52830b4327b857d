package models

import (
	"time"

	"github.com/lib/pq"
)

// Store represents a tenant storefront
type Store struct {
	ID            string    `db:"id" json:"id"`
	StoreName     string    `db:"store_name" json:"store_name"`
	ClientUserID  string    `db:"client_user_id" json:"client_user_id"`
	City          string    `db:"city" json:"city,omitempty"`
	Description   string    `db:"description" json:"description,omitempty"`
	Category      string    `db:"category" json:"category,omitempty"`
	BusinessHours string    `db:"business_hours" json:"business_hours,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents a product in a store catalog.
// Prices are integer cents. Brand, category and color are folded into
// one lowercase tag set rather than structured columns.
type Product struct {
	ID          string         `db:"id" json:"id"`
	StoreID     string         `db:"store_id" json:"store_id"`
	SKU         string         `db:"sku" json:"sku"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	PriceCents  int64          `db:"price_cents" json:"price_cents"`
	Stock       int            `db:"stock" json:"stock"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Images      pq.StringArray `db:"images" json:"images"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AIQuery is one question/answer pair recorded per chat request
type AIQuery struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Question  string    `db:"question" json:"question"`
	Answer    string    `db:"answer" json:"answer"`
	ProductID string    `db:"product_id" json:"product_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TokenUsage records model token consumption per store and user
type TokenUsage struct {
	ID         int64     `db:"id" json:"id"`
	StoreID    string    `db:"store_id" json:"store_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	TokensUsed int64     `db:"tokens_used" json:"tokens_used"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ActivityLog is an append-only audit row for user actions
type ActivityLog struct {
	ID         int64     `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	ActionType string    `db:"action_type" json:"action_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Purchase represents a simulated purchase (bookkeeping only, no payment provider)
type Purchase struct {
	ID            int64     `db:"id" json:"id"`
	StoreID       string    `db:"store_id" json:"store_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	InvoiceNumber string    `db:"invoice_number" json:"invoice_number"`
	AmountCents   int64     `db:"amount_cents" json:"amount_cents"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleAdmin   = "ADMIN"
	RoleClient  = "CLIENT"
	RoleEndUser = "END_USER"
)

// Store statuses
const (
	StoreStatusActive    = "ACTIVE"
	StoreStatusSuspended = "SUSPENDED"
)

// Activity action types
const (
	ActionAddToCart      = "ADD_TO_CART"
	ActionRemoveFromCart = "REMOVE_FROM_CART"
	ActionPurchase       = "PURCHASE"
)

// Purchase statuses
const (
	PurchaseStatusPaid = "PAID"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
