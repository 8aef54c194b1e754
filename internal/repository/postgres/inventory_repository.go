package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/stockcast/internal/domain"
)

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

const itemColumns = `id, sku, name, current_stock, minimum_stock, lead_time_days, active, preferred_vendor_id, updated_at`

func (r *inventoryRepository) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	var item domain.Item
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ItemNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (r *inventoryRepository) ListActiveItems(ctx context.Context) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE active ORDER BY id`

	var items []*domain.Item
	if err := sqlx.SelectContext(ctx, r.db, &items, query); err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	return items, nil
}

func (r *inventoryRepository) GetStockCounts(ctx context.Context, itemID string, since time.Time) ([]domain.StockCount, error) {
	query := `
		SELECT item_id, count, counted_at
		FROM stock_counts
		WHERE item_id = $1 AND counted_at >= $2
		ORDER BY counted_at ASC, id ASC
	`

	var counts []domain.StockCount
	if err := sqlx.SelectContext(ctx, r.db, &counts, query, itemID, since); err != nil {
		return nil, fmt.Errorf("failed to get stock counts for %s: %w", itemID, err)
	}
	return counts, nil
}

// AppendStockCount records the count and moves the item's current stock to
// it when the count is the newest one.
func (r *inventoryRepository) AppendStockCount(ctx context.Context, count domain.StockCount) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Insert the count
		insert := `INSERT INTO stock_counts (item_id, count, counted_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insert, count.ItemID, count.Count, count.CountedAt); err != nil {
			return fmt.Errorf("failed to insert stock count: %w", err)
		}

		// 2. Sync current stock with the latest count
		update := `
			UPDATE items
			SET current_stock = $2, updated_at = NOW()
			WHERE id = $1
			  AND NOT EXISTS (
				SELECT 1 FROM stock_counts
				WHERE item_id = $1 AND counted_at > $3
			  )
		`
		if _, err := tx.ExecContext(ctx, update, count.ItemID, count.Count, count.CountedAt); err != nil {
			return fmt.Errorf("failed to update current stock: %w", err)
		}
		return nil
	})
}
