package store

import (
	"context"
	"fmt"

	"assistant-service/internal/models"
)

// CreateAIQuery records a question/answer pair
func (s *Store) CreateAIQuery(ctx context.Context, q *models.AIQuery) error {
	query := `
		INSERT INTO ai_queries (user_id, question, answer, product_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at`

	return s.db.GetContext(ctx, q, query,
		q.UserID, q.Question, q.Answer, q.ProductID)
}

// CreateTokenUsage records model token consumption for a request
func (s *Store) CreateTokenUsage(ctx context.Context, u *models.TokenUsage) error {
	query := `
		INSERT INTO token_usage (store_id, user_id, tokens_used)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, u, query,
		u.StoreID, u.UserID, u.TokensUsed)
}

// CreateActivityLog appends an audit row
func (s *Store) CreateActivityLog(ctx context.Context, a *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, action_type, target_id, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, a, query,
		a.UserID, a.ActionType, a.TargetID, a.Metadata)
}

// CreatePurchaseTx records a simulated purchase and decrements stock
// for each item within one transaction (FOR UPDATE lock per product)
func (s *Store) CreatePurchaseTx(ctx context.Context, p *models.Purchase, items []models.PurchaseItemData) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO purchases (store_id, user_id, invoice_number, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, p, query,
		p.StoreID, p.UserID, p.InvoiceNumber, p.AmountCents, p.Status); err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	for _, item := range items {
		var stock int
		err = tx.GetContext(ctx, &stock,
			"SELECT stock FROM products WHERE id = $1 AND store_id = $2 FOR UPDATE",
			item.ProductID, p.StoreID)
		if err != nil {
			return fmt.Errorf("failed to lock product %s: %w", item.ProductID, err)
		}

		if stock < item.Quantity {
			return fmt.Errorf("insufficient stock for product %s: available=%d, requested=%d",
				item.ProductID, stock, item.Quantity)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	return tx.Commit()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
