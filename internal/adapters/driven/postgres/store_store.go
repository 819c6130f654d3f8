package postgres

import (
	"context"
	"database/sql"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StoreConfigStore = (*StoreConfigStore)(nil)

// StoreConfigStore implements driven.StoreConfigStore using PostgreSQL
type StoreConfigStore struct {
	db *DB
}

// NewStoreConfigStore creates a new StoreConfigStore
func NewStoreConfigStore(db *DB) *StoreConfigStore {
	return &StoreConfigStore{db: db}
}

// Save creates or updates a store registration
func (s *StoreConfigStore) Save(ctx context.Context, store *domain.Store) error {
	query := `
		INSERT INTO stores (
			id, name, base_url, consumer_key, consumer_secret,
			currency, locale, region, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			consumer_key = EXCLUDED.consumer_key,
			consumer_secret = EXCLUDED.consumer_secret,
			currency = EXCLUDED.currency,
			locale = EXCLUDED.locale,
			region = EXCLUDED.region,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		store.ID,
		store.Name,
		store.BaseURL,
		store.ConsumerKey,
		store.ConsumerSecret,
		store.Currency,
		store.Locale,
		store.Region,
		store.Enabled,
		store.CreatedAt,
		store.UpdatedAt,
	)
	return err
}

// Get retrieves a store by id
func (s *StoreConfigStore) Get(ctx context.Context, id string) (*domain.Store, error) {
	query := selectStore + ` WHERE id = $1`

	store, err := scanStore(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// List retrieves all registered stores
func (s *StoreConfigStore) List(ctx context.Context) ([]*domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, selectStore+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []*domain.Store
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

// Delete removes a store registration
func (s *StoreConfigStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStoreNotFound
	}
	return nil
}

const selectStore = `
	SELECT id, name, base_url, consumer_key, consumer_secret,
	       currency, locale, region, enabled, created_at, updated_at
	FROM stores
`

func scanStore(row rowScanner) (*domain.Store, error) {
	var store domain.Store
	err := row.Scan(
		&store.ID,
		&store.Name,
		&store.BaseURL,
		&store.ConsumerKey,
		&store.ConsumerSecret,
		&store.Currency,
		&store.Locale,
		&store.Region,
		&store.Enabled,
		&store.CreatedAt,
		&store.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &store, nil
}
