package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"assistant-service/internal/models"
	"assistant-service/internal/store"
	"assistant-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the store-scoped product access the tools need
type Catalog interface {
	FilterProducts(ctx context.Context, storeID string, f store.ProductFilter) ([]models.Product, error)
	GetProductForStore(ctx context.Context, storeID, productID string) (*models.Product, error)
}

// AuditPublisher receives cart-intent events for async audit logging
type AuditPublisher interface {
	PublishCartIntent(ctx context.Context, event *models.CartIntentEvent) error
}

// QueryLogger persists question/answer pairs
type QueryLogger interface {
	CreateAIQuery(ctx context.Context, q *models.AIQuery) error
}

// ToolContext carries the tenant scope for one tool execution. It is
// threaded immutably through every call; tools never accept a store ID
// from model-supplied arguments.
type ToolContext struct {
	StoreID  string
	UserID   string
	UserRole string
}

// FilterCriteria echoes the filter a query applied, forwarded to the
// UI so the product grid can mirror the chat narrative
type FilterCriteria struct {
	Search   string   `json:"search,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	Color    string   `json:"color,omitempty"`
	PriceMin *float64 `json:"priceMin,omitempty"`
	PriceMax *float64 `json:"priceMax,omitempty"`
}

// ProductView is the product shape serialized into tool results
type ProductView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Price       string   `json:"price"`
	Stock       int      `json:"stock"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images,omitempty"`
	SKU         string   `json:"sku"`
	Quantity    int      `json:"quantity,omitempty"`
}

// Result is the uniform envelope returned for every tool call
type Result struct {
	Success       bool            `json:"success"`
	Count         int             `json:"count,omitempty"`
	Products      []ProductView   `json:"products,omitempty"`
	ProductIDs    []string        `json:"product_ids,omitempty"`
	FilterApplied *FilterCriteria `json:"filter_applied,omitempty"`
	Product       *ProductView    `json:"product,omitempty"`
	Message       string          `json:"message,omitempty"`
	Note          string          `json:"note,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Executor routes tool calls to their implementations
type Executor struct {
	catalog Catalog
	audit   AuditPublisher
	queries QueryLogger
	logger  *zap.Logger
}

// NewExecutor creates a new tool executor
func NewExecutor(catalog Catalog, audit AuditPublisher, queries QueryLogger) *Executor {
	return &Executor{
		catalog: catalog,
		audit:   audit,
		queries: queries,
		logger:  util.GetLogger(),
	}
}

// dollarsToCents converts a model-supplied dollar amount once at the
// boundary; all price comparisons happen in integer cents.
func dollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// FormatPrice renders cents as a decimal dollar string
func FormatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func productView(p *models.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Price:       FormatPrice(p.PriceCents),
		Stock:       p.Stock,
		Tags:        p.Tags,
		Images:      p.Images,
		SKU:         p.SKU,
	}
}

type filterProductsArgs struct {
	Search      string   `json:"search"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Color       string   `json:"color"`
	PriceMin    *float64 `json:"price_min"`
	PriceMax    *float64 `json:"price_max"`
	InStockOnly *bool    `json:"in_stock_only"`
}

// filterProducts runs a store-scoped catalog query. The id list and
// the product payloads come from the same query result, so the chat
// narrative and the UI grid can never diverge.
func (e *Executor) filterProducts(ctx context.Context, args filterProductsArgs, tc ToolContext) Result {
	filter := store.ProductFilter{
		Search:      args.Search,
		Brand:       args.Brand,
		Category:    args.Category,
		Color:       args.Color,
		InStockOnly: args.InStockOnly == nil || *args.InStockOnly,
	}
	if args.PriceMin != nil {
		cents := dollarsToCents(*args.PriceMin)
		filter.PriceMinCents = &cents
	}
	if args.PriceMax != nil {
		cents := dollarsToCents(*args.PriceMax)
		filter.PriceMaxCents = &cents
	}

	products, err := e.catalog.FilterProducts(ctx, tc.StoreID, filter)
	if err != nil {
		e.logger.Error("Failed to filter products",
			zap.String("store_id", tc.StoreID),
			zap.Error(err))
		return failure("Failed to filter products")
	}

	views := make([]ProductView, 0, len(products))
	ids := make([]string, 0, len(products))
	for i := range products {
		views = append(views, productView(&products[i]))
		ids = append(ids, products[i].ID)
	}

	return Result{
		Success:    true,
		Count:      len(products),
		Products:   views,
		ProductIDs: ids,
		FilterApplied: &FilterCriteria{
			Search:   args.Search,
			Brand:    args.Brand,
			Category: args.Category,
			Color:    args.Color,
			PriceMin: args.PriceMin,
			PriceMax: args.PriceMax,
		},
	}
}

type productIDArgs struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

// showProductDetails fetches one product scoped to the caller's store
func (e *Executor) showProductDetails(ctx context.Context, args productIDArgs, tc ToolContext) Result {
	if args.ProductID == "" {
		return failure("product_id is required")
	}

	product, err := e.catalog.GetProductForStore(ctx, tc.StoreID, args.ProductID)
	if err != nil {
		e.logger.Error("Failed to get product details",
			zap.String("product_id", args.ProductID),
			zap.Error(err))
		return failure("Failed to get product details")
	}
	if product == nil {
		return failure("Product not found or not available")
	}

	view := productView(product)
	return Result{Success: true, Product: &view}
}

// addToCart validates the product and records the intent. The client
// cart is the source of truth; success here is a logged intent, not a
// state transition.
func (e *Executor) addToCart(ctx context.Context, args productIDArgs, tc ToolContext) Result {
	if args.ProductID == "" {
		return failure("product_id is required")
	}

	quantity := int(args.Quantity)
	if quantity <= 0 {
		quantity = 1
	}

	product, err := e.catalog.GetProductForStore(ctx, tc.StoreID, args.ProductID)
	if err != nil {
		e.logger.Error("Failed to look up product for cart",
			zap.String("product_id", args.ProductID),
			zap.Error(err))
		return failure("Failed to add to cart")
	}
	if product == nil {
		return failure("Product not found")
	}

	if product.Stock < quantity {
		return failure("Insufficient stock. Only %d available.", product.Stock)
	}

	e.publishCartIntent(ctx, tc, models.ActionAddToCart, product, quantity)

	view := productView(product)
	view.Quantity = quantity
	return Result{
		Success: true,
		Product: &view,
		Message: fmt.Sprintf("Added %dx %s to cart", quantity, product.Name),
	}
}

// removeFromCart records the removal intent
func (e *Executor) removeFromCart(ctx context.Context, args productIDArgs, tc ToolContext) Result {
	if args.ProductID == "" {
		return failure("product_id is required")
	}

	e.publishCartIntent(ctx, tc, models.ActionRemoveFromCart, &models.Product{ID: args.ProductID}, 0)

	return Result{Success: true, Message: "Product removed from cart"}
}

// getCartSummary has no server state to summarize: the cart lives in
// the client. Returns the fixed instruction payload.
func (e *Executor) getCartSummary() Result {
	return Result{
		Success: true,
		Message: "Please check your shopping cart in the sidebar to see your current items and total.",
		Note:    "Cart is managed in the UI",
	}
}

type saveAIQueryArgs struct {
	UserID    string `json:"user_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	ProductID string `json:"product_id"`
}

// saveAIQuery logs a question/answer pair on the model's behalf
func (e *Executor) saveAIQuery(ctx context.Context, args saveAIQueryArgs) Result {
	if args.UserID == "" || args.Question == "" || args.Answer == "" {
		return failure("user_id, question and answer are required")
	}

	err := e.queries.CreateAIQuery(ctx, &models.AIQuery{
		UserID:    args.UserID,
		Question:  args.Question,
		Answer:    args.Answer,
		ProductID: args.ProductID,
	})
	if err != nil {
		e.logger.Error("Failed to save AI query", zap.Error(err))
		return failure("Failed to log query")
	}

	return Result{Success: true, Message: "Query logged successfully"}
}

// publishCartIntent emits the audit event best-effort; a broker outage
// must not fail the user-visible cart confirmation
func (e *Executor) publishCartIntent(ctx context.Context, tc ToolContext, action string, product *models.Product, quantity int) {
	if e.audit == nil {
		return
	}

	event := &models.CartIntentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartIntent,
			Timestamp: time.Now(),
		},
		StoreID:     tc.StoreID,
		UserID:      tc.UserID,
		ActionType:  action,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		PriceCents:  product.PriceCents,
	}

	if err := e.audit.PublishCartIntent(ctx, event); err != nil {
		util.LoggingFailuresTotal.WithLabelValues("cart_intent").Inc()
		e.logger.Warn("Failed to publish cart intent",
			zap.String("product_id", product.ID),
			zap.Error(err))
	}
}

// decodeArgs parses model-supplied JSON arguments. An empty payload is
// treated as an empty object; some models omit it for no-arg tools.
func decodeArgs(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
