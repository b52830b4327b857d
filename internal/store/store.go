package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"assistant-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// maxFilterResults caps catalog query results to bound the payload
// fed back into the model prompt.
const maxFilterResults = 20

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetStoreByID retrieves a storefront by ID
func (s *Store) GetStoreByID(ctx context.Context, id string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT * FROM stores WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CountActiveProducts returns the number of active products in a store.
// The chat prompt carries only this count, never the catalog itself.
func (s *Store) CountActiveProducts(ctx context.Context, storeID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM products WHERE store_id = $1 AND is_active = TRUE", storeID)
	return count, err
}

// ProductFilter holds catalog filter criteria. Price bounds are
// inclusive and expressed in cents; brand/category/color match the
// product tag set, an empty value means no constraint on that dimension.
type ProductFilter struct {
	Search        string
	Brand         string
	Category      string
	Color         string
	PriceMinCents *int64
	PriceMaxCents *int64
	InStockOnly   bool
}

// buildProductFilterQuery assembles the store-scoped filter query.
// Factored out so the clause assembly is testable without a database.
func buildProductFilterQuery(storeID string, f ProductFilter) (string, []interface{}) {
	clauses := []string{"store_id = $1", "is_active = TRUE"}
	args := []interface{}{storeID}

	if f.InStockOnly {
		clauses = append(clauses, "stock > 0")
	}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	for _, tag := range []string{f.Brand, f.Category, f.Color} {
		if tag != "" {
			args = append(args, strings.ToLower(tag))
			clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", len(args)))
		}
	}

	if f.PriceMinCents != nil {
		args = append(args, *f.PriceMinCents)
		clauses = append(clauses, fmt.Sprintf("price_cents >= $%d", len(args)))
	}
	if f.PriceMaxCents != nil {
		args = append(args, *f.PriceMaxCents)
		clauses = append(clauses, fmt.Sprintf("price_cents <= $%d", len(args)))
	}

	query := fmt.Sprintf(
		"SELECT * FROM products WHERE %s ORDER BY created_at DESC LIMIT %d",
		strings.Join(clauses, " AND "), maxFilterResults)

	return query, args
}

// FilterProducts retrieves active products matching the filter,
// newest first, capped at maxFilterResults. Every returned product
// belongs to the given store.
func (s *Store) FilterProducts(ctx context.Context, storeID string, f ProductFilter) ([]models.Product, error) {
	query, args := buildProductFilterQuery(storeID, f)

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to filter products: %w", err)
	}
	return products, nil
}

// GetProductForStore retrieves an active product scoped to the store.
// Returns (nil, nil) when the product does not exist in this store,
// including when the ID is valid for a different store.
func (s *Store) GetProductForStore(ctx context.Context, storeID, productID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND store_id = $2 AND is_active = TRUE",
		productID, storeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts retrieves all active products for the store grid
func (s *Store) ListActiveProducts(ctx context.Context, storeID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE store_id = $1 AND is_active = TRUE ORDER BY created_at DESC",
		storeID)
	return products, err
}
