package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commerce-api/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrInsufficientStock is returned when a conditional stock decrement affects
// no rows, i.e. another order consumed the stock first.
var ErrInsufficientStock = errors.New("insufficient stock")

type Store struct {
	db *sqlx.DB
}

// NewStore creates the single shared database store for the process.
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

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database handle.
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetActiveProductsByIDs retrieves the active products among the given ids.
// Callers compare the returned count against the requested count to detect
// missing or inactive products.
func (s *Store) GetActiveProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, slug, price, stock, is_active FROM products WHERE id IN (?) AND is_active = true", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductByID retrieves a product by id.
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT id, name, slug, price, stock, is_active FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetAddressForUser retrieves a saved address only if it belongs to the user.
// Returns nil when the address does not exist or is owned by someone else.
func (s *Store) GetAddressForUser(ctx context.Context, addressID, userID string) (*models.Address, error) {
	var address models.Address
	err := s.db.GetContext(ctx, &address,
		"SELECT id, user_id, name, street, city, state, country, zip FROM addresses WHERE id = $1 AND user_id = $2",
		addressID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// NextOrderNumber reserves the next value from the order number sequence.
// The sequence is atomic at the database level, so concurrent order creation
// never observes the same value.
func (s *Store) NextOrderNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.GetContext(ctx, &seq, "SELECT nextval('order_number_seq')")
	if err != nil {
		return 0, fmt.Errorf("failed to advance order number sequence: %w", err)
	}
	return seq, nil
}
