package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"assistant-service/internal/models"
	"assistant-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves canned products and records the queries it saw
type fakeCatalog struct {
	products   []models.Product
	lastStore  string
	lastFilter store.ProductFilter
	err        error
}

func (f *fakeCatalog) FilterProducts(_ context.Context, storeID string, filter store.ProductFilter) ([]models.Product, error) {
	f.lastStore = storeID
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}

	var out []models.Product
	for _, p := range f.products {
		if p.StoreID != storeID {
			continue
		}
		if filter.InStockOnly && p.Stock == 0 {
			continue
		}
		if filter.PriceMinCents != nil && p.PriceCents < *filter.PriceMinCents {
			continue
		}
		if filter.PriceMaxCents != nil && p.PriceCents > *filter.PriceMaxCents {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) GetProductForStore(_ context.Context, storeID, productID string) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.products {
		if f.products[i].ID == productID && f.products[i].StoreID == storeID {
			return &f.products[i], nil
		}
	}
	return nil, nil
}

type fakeAudit struct {
	events []*models.CartIntentEvent
	err    error
}

func (f *fakeAudit) PublishCartIntent(_ context.Context, event *models.CartIntentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeQueryLog struct {
	queries []*models.AIQuery
	err     error
}

func (f *fakeQueryLog) CreateAIQuery(_ context.Context, q *models.AIQuery) error {
	if f.err != nil {
		return f.err
	}
	f.queries = append(f.queries, q)
	return nil
}

func testProducts() []models.Product {
	return []models.Product{
		{ID: "p1", StoreID: "store-1", Name: "Trail Runner", PriceCents: 4999, Stock: 5, Tags: []string{"nike", "shoes", "red"}},
		{ID: "p2", StoreID: "store-1", Name: "Court Classic", PriceCents: 1500, Stock: 0, Tags: []string{"adidas", "shoes", "white"}},
		{ID: "p3", StoreID: "store-2", Name: "Other Tenant Boot", PriceCents: 2000, Stock: 9, Tags: []string{"boots"}},
	}
}

func newTestExecutor(catalog *fakeCatalog) (*Executor, *fakeAudit, *fakeQueryLog) {
	audit := &fakeAudit{}
	queries := &fakeQueryLog{}
	return NewExecutor(catalog, audit, queries), audit, queries
}

func TestFilterProductsStoreScoping(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{}`), ToolContext{StoreID: "store-1", UserID: "u1"})

	require.True(t, result.Success)
	assert.Equal(t, "store-1", catalog.lastStore)
	for _, p := range result.Products {
		assert.NotEqual(t, "p3", p.ID)
	}
}

func TestFilterProductsIDsMatchProductOrder(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{"in_stock_only":false}`), ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	require.Equal(t, len(result.Products), len(result.ProductIDs))
	for i, p := range result.Products {
		assert.Equal(t, p.ID, result.ProductIDs[i])
	}
}

func TestFilterProductsPriceBoundsInCents(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{"price_min":10,"price_max":20,"in_stock_only":false}`),
		ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	require.NotNil(t, catalog.lastFilter.PriceMinCents)
	require.NotNil(t, catalog.lastFilter.PriceMaxCents)
	assert.Equal(t, int64(1000), *catalog.lastFilter.PriceMinCents)
	assert.Equal(t, int64(2000), *catalog.lastFilter.PriceMaxCents)

	for _, p := range result.Products {
		assert.GreaterOrEqual(t, p.PriceCents, int64(1000))
		assert.LessOrEqual(t, p.PriceCents, int64(2000))
	}
}

func TestFilterProductsInStockDefault(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{}`), ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	assert.True(t, catalog.lastFilter.InStockOnly)
	for _, p := range result.Products {
		assert.Greater(t, p.Stock, 0)
	}
}

func TestFilterProductsEmptyResultIsNonNil(t *testing.T) {
	catalog := &fakeCatalog{}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{"search":"nothing"}`), ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	assert.NotNil(t, result.ProductIDs)
	assert.Empty(t, result.ProductIDs)
	assert.Equal(t, 0, result.Count)
}

func TestFilterProductsEchoesCriteria(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{"search":"shoes","brand":"nike","price_max":50}`),
		ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	require.NotNil(t, result.FilterApplied)
	assert.Equal(t, "shoes", result.FilterApplied.Search)
	assert.Equal(t, "nike", result.FilterApplied.Brand)
	require.NotNil(t, result.FilterApplied.PriceMax)
	assert.Equal(t, float64(50), *result.FilterApplied.PriceMax)
}

func TestShowProductDetailsCrossStore(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	// p3 exists globally but belongs to store-2
	result := exec.ExecuteTool(context.Background(), ToolShowProductDetails,
		json.RawMessage(`{"product_id":"p3"}`), ToolContext{StoreID: "store-1"})

	assert.False(t, result.Success)
	assert.Equal(t, "Product not found or not available", result.Error)
	assert.Nil(t, result.Product)
}

func TestShowProductDetailsFound(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolShowProductDetails,
		json.RawMessage(`{"product_id":"p1"}`), ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	require.NotNil(t, result.Product)
	assert.Equal(t, "Trail Runner", result.Product.Name)
	assert.Equal(t, "49.99", result.Product.Price)
}

func TestAddToCartSuccess(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, audit, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolAddToCart,
		json.RawMessage(`{"product_id":"p1","quantity":2}`),
		ToolContext{StoreID: "store-1", UserID: "u1"})

	require.True(t, result.Success)
	assert.Equal(t, "Added 2x Trail Runner to cart", result.Message)
	require.NotNil(t, result.Product)
	assert.Equal(t, 2, result.Product.Quantity)

	require.Len(t, audit.events, 1)
	assert.Equal(t, models.ActionAddToCart, audit.events[0].ActionType)
	assert.Equal(t, "p1", audit.events[0].ProductID)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, audit, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolAddToCart,
		json.RawMessage(`{"product_id":"p1","quantity":10}`),
		ToolContext{StoreID: "store-1", UserID: "u1"})

	assert.False(t, result.Success)
	assert.Equal(t, "Insufficient stock. Only 5 available.", result.Error)
	assert.Empty(t, audit.events)
}

func TestAddToCartAuditFailureStillSucceeds(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, audit, _ := newTestExecutor(catalog)
	audit.err = errors.New("broker down")

	result := exec.ExecuteTool(context.Background(), ToolAddToCart,
		json.RawMessage(`{"product_id":"p1"}`),
		ToolContext{StoreID: "store-1", UserID: "u1"})

	assert.True(t, result.Success)
}

func TestRemoveFromCart(t *testing.T) {
	catalog := &fakeCatalog{products: testProducts()}
	exec, audit, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolRemoveFromCart,
		json.RawMessage(`{"product_id":"p1"}`),
		ToolContext{StoreID: "store-1", UserID: "u1"})

	require.True(t, result.Success)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.ActionRemoveFromCart, audit.events[0].ActionType)
}

func TestGetCartSummaryIsClientOwned(t *testing.T) {
	exec, _, _ := newTestExecutor(&fakeCatalog{})

	result := exec.ExecuteTool(context.Background(), ToolGetCartSummary,
		nil, ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	assert.Contains(t, result.Message, "shopping cart")
	assert.Equal(t, "Cart is managed in the UI", result.Note)
}

func TestSaveAIQuery(t *testing.T) {
	exec, _, queries := newTestExecutor(&fakeCatalog{})

	result := exec.ExecuteTool(context.Background(), ToolSaveAIQuery,
		json.RawMessage(`{"user_id":"u1","question":"q","answer":"a"}`),
		ToolContext{StoreID: "store-1"})

	require.True(t, result.Success)
	require.Len(t, queries.queries, 1)
	assert.Equal(t, "u1", queries.queries[0].UserID)
}

func TestUnknownToolNeverThrows(t *testing.T) {
	exec, _, _ := newTestExecutor(&fakeCatalog{})

	result := exec.ExecuteTool(context.Background(), "teleport_products",
		json.RawMessage(`{}`), ToolContext{StoreID: "store-1"})

	assert.False(t, result.Success)
	assert.Equal(t, "Unknown tool: teleport_products", result.Error)
}

func TestMalformedArgumentsBecomeFailedResult(t *testing.T) {
	exec, _, _ := newTestExecutor(&fakeCatalog{})

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{"price_min": "not a number"`), ToolContext{StoreID: "store-1"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid arguments")
}

func TestCatalogErrorBecomesFailedResult(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("db down")}
	exec, _, _ := newTestExecutor(catalog)

	result := exec.ExecuteTool(context.Background(), ToolFilterProducts,
		json.RawMessage(`{}`), ToolContext{StoreID: "store-1"})

	assert.False(t, result.Success)
	assert.Equal(t, "Failed to filter products", result.Error)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "49.99", FormatPrice(4999))
	assert.Equal(t, "0.05", FormatPrice(5))
	assert.Equal(t, "100.00", FormatPrice(10000))
}
