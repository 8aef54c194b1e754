package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/stockcast/internal/domain"
)

type vendorRepository struct {
	db *DB
}

func NewVendorRepository(db *DB) *vendorRepository {
	return &vendorRepository{db: db}
}

const vendorColumns = `id, name, active, lead_time_days, avg_lead_time_days, on_time_rate, metrics_updated_at`

func (r *vendorRepository) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	var v domain.Vendor
	if err := r.db.GetContext(ctx, &v, query, vendorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.VendorNotFound(vendorID)
		}
		return nil, fmt.Errorf("failed to get vendor %s: %w", vendorID, err)
	}
	return &v, nil
}

func (r *vendorRepository) ListActiveVendors(ctx context.Context) ([]*domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE active ORDER BY id`

	var vendors []*domain.Vendor
	if err := sqlx.SelectContext(ctx, r.db, &vendors, query); err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	return vendors, nil
}

func (r *vendorRepository) GetPriceTiers(ctx context.Context, itemIDs []string) ([]domain.PriceTier, error) {
	query := `
		SELECT vendor_id, item_id, unit_price, min_quantity, expires_at
		FROM price_tiers
	`
	var args []any
	if len(itemIDs) > 0 {
		query += ` WHERE item_id = ANY($1)`
		args = append(args, pq.Array(itemIDs))
	}
	query += ` ORDER BY vendor_id, item_id, min_quantity`

	var tiers []domain.PriceTier
	if err := sqlx.SelectContext(ctx, r.db, &tiers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get price tiers: %w", err)
	}
	return tiers, nil
}

// UpdateVendorMetrics stores the figures on the vendor row and appends them
// to the metrics history.
func (r *vendorRepository) UpdateVendorMetrics(ctx context.Context, m domain.VendorMetrics) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Update the vendor
		update := `
			UPDATE vendors
			SET avg_lead_time_days = $2, on_time_rate = $3, metrics_updated_at = $4
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, update, m.VendorID, m.AvgLeadTimeDays, m.OnTimeRate, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update vendor metrics: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.VendorNotFound(m.VendorID)
		}

		// 2. Keep history
		insert := `
			INSERT INTO vendor_metrics_history (vendor_id, avg_lead_time_days, on_time_rate, delivered_orders, computed_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, insert, m.VendorID, m.AvgLeadTimeDays, m.OnTimeRate, m.DeliveredOrders, m.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert vendor metrics history: %w", err)
		}
		return nil
	})
}

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetDeliveredOrders(ctx context.Context, since time.Time) ([]domain.DeliveredOrder, error) {
	query := `
		SELECT id, vendor_id, ordered_at, expected_at, delivered_at, total_amount, item_quantity
		FROM purchase_orders
		WHERE delivered_at IS NOT NULL AND delivered_at >= $1
		ORDER BY delivered_at ASC
	`

	var orders []domain.DeliveredOrder
	if err := sqlx.SelectContext(ctx, r.db, &orders, query, since); err != nil {
		return nil, fmt.Errorf("failed to get delivered orders: %w", err)
	}
	return orders, nil
}
