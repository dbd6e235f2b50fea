package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads inventory lots from PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// LoadRecords returns every raw lot document.
func (r *Repository) LoadRecords(ctx context.Context) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock, price_tablet, price_blister, price_box,
	tablets_per_blister, blisters_per_box, expiration, antibiotic, product_type
FROM inventory_lots
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var rec Record
		var expiration *time.Time
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Stock, &rec.PriceTablet, &rec.PriceBlister, &rec.PriceBox,
			&rec.TabletsPerBlister, &rec.BlistersPerBox, &expiration, &rec.Antibiotic, &rec.ProductType); err != nil {
			return nil, err
		}
		rec.Expiration = expiration
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadAll implements Source. Invalid records are logged and skipped.
func (r *Repository) LoadAll(ctx context.Context) ([]Lot, error) {
	records, err := r.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	lots, rejects := ToLots(records)
	if r.logger != nil {
		for _, rej := range rejects {
			r.logger.Warn("inventory record rejected", slog.String("lot_id", rej.ID), slog.String("reason", rej.Reason))
		}
	}
	return lots, nil
}
