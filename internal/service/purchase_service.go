package service

import (
	"context"
	"fmt"
	"time"

	"assistant-service/internal/broker"
	"assistant-service/internal/models"
	"assistant-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PurchaseStore is the persistence surface the purchase flow needs
type PurchaseStore interface {
	GetProductForStore(ctx context.Context, storeID, productID string) (*models.Product, error)
	CreatePurchaseTx(ctx context.Context, p *models.Purchase, items []models.PurchaseItemData) error
	CreateActivityLog(ctx context.Context, a *models.ActivityLog) error
}

// PurchaseService books simulated purchases. There is no payment
// provider: a purchase is an invoice row plus stock decrements.
type PurchaseService struct {
	store          PurchaseStore
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(store PurchaseStore, eventPublisher *broker.EventPublisher) *PurchaseService {
	return &PurchaseService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// PurchaseItemRequest is one line item in a purchase
type PurchaseItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// PurchaseRequest represents a checkout of the client-side cart
type PurchaseRequest struct {
	StoreID string                `json:"storeId" binding:"required"`
	UserID  string                `json:"userId" binding:"required"`
	Items   []PurchaseItemRequest `json:"items" binding:"required,min=1"`
}

// PurchaseResponse is returned after a successful purchase
type PurchaseResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
	AmountCents   int64  `json:"amountCents"`
	Status        string `json:"status"`
}

// CreatePurchase validates the items against the store catalog, books
// the purchase with stock decrements in one transaction, and emits the
// PurchaseRecorded event. Prices come from the catalog, never from the
// client.
func (ps *PurchaseService) CreatePurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.CreatePurchase")
	defer span.End()

	items := make([]models.PurchaseItemData, 0, len(req.Items))
	var total int64
	for _, item := range req.Items {
		product, err := ps.store.GetProductForStore(ctx, req.StoreID, item.ProductID)
		if err != nil {
			util.PurchasesFailedTotal.WithLabelValues("lookup_error").Inc()
			return nil, fmt.Errorf("failed to look up product %s: %w", item.ProductID, err)
		}
		if product == nil {
			util.PurchasesFailedTotal.WithLabelValues("unknown_product").Inc()
			return nil, fmt.Errorf("product %s not found in store", item.ProductID)
		}

		items = append(items, models.PurchaseItemData{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: product.PriceCents,
		})
		total += product.PriceCents * int64(item.Quantity)
	}

	purchase := &models.Purchase{
		StoreID:       req.StoreID,
		UserID:        req.UserID,
		InvoiceNumber: fmt.Sprintf("INV-%s", uuid.New().String()[:8]),
		AmountCents:   total,
		Status:        models.PurchaseStatusPaid,
	}

	if err := ps.store.CreatePurchaseTx(ctx, purchase, items); err != nil {
		util.PurchasesFailedTotal.WithLabelValues("tx_failed").Inc()
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	util.PurchasesRecordedTotal.Inc()
	ps.logger.Info("Purchase recorded",
		zap.String("invoice", purchase.InvoiceNumber),
		zap.String("store_id", req.StoreID),
		zap.Int64("amount_cents", total))

	ps.logActivity(ctx, req, purchase)
	ps.publishPurchaseRecorded(ctx, purchase, items)

	return &PurchaseResponse{
		InvoiceNumber: purchase.InvoiceNumber,
		AmountCents:   purchase.AmountCents,
		Status:        purchase.Status,
	}, nil
}

// logActivity appends the audit row best-effort
func (ps *PurchaseService) logActivity(ctx context.Context, req *PurchaseRequest, purchase *models.Purchase) {
	metadata := []byte(fmt.Sprintf(`{"store_id":%q,"amount_cents":%d,"items":%d}`,
		req.StoreID, purchase.AmountCents, len(req.Items)))

	err := ps.store.CreateActivityLog(ctx, &models.ActivityLog{
		UserID:     req.UserID,
		ActionType: models.ActionPurchase,
		TargetID:   purchase.InvoiceNumber,
		Metadata:   metadata,
	})
	if err != nil {
		util.LoggingFailuresTotal.WithLabelValues("activity_log").Inc()
		ps.logger.Warn("Failed to log purchase activity", zap.Error(err))
	}
}

// publishPurchaseRecorded emits the domain event best-effort
func (ps *PurchaseService) publishPurchaseRecorded(ctx context.Context, purchase *models.Purchase, items []models.PurchaseItemData) {
	if ps.eventPublisher == nil {
		return
	}

	event := &models.PurchaseRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePurchaseRecorded,
			Timestamp: time.Now(),
		},
		StoreID:       purchase.StoreID,
		UserID:        purchase.UserID,
		InvoiceNumber: purchase.InvoiceNumber,
		AmountCents:   purchase.AmountCents,
		Items:         items,
	}

	if err := ps.eventPublisher.PublishPurchaseRecorded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PurchaseRecorded event", zap.Error(err))
	}
}
