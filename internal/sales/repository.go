package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/platform/db"
)

// Repository is the PostgreSQL Sink.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, logger: logger}
}

// RecordSale inserts the sale, its lines and their lot allocations in one
// transaction. Recording an ID that already exists is treated as done.
func (r *Repository) RecordSale(ctx context.Context, sale Sale) (string, error) {
	if r == nil || r.pool == nil {
		return "", &WriteError{Op: "record sale", SaleID: sale.ID, Err: errors.New("repository not initialised")}
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO sales (id, created_at, payment_method, net_total, surcharge, gross_total, tendered, change_due)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sale.ID, sale.CreatedAt, string(sale.PaymentMethod),
			sale.NetTotal.String(), sale.Surcharge.String(), sale.GrossTotal.String(),
			sale.Tendered.String(), sale.Change.String()); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, line := range sale.Lines {
			batch.Queue(`INSERT INTO sale_lines (id, sale_id, line_no, product_key, product_name, format, quantity, base_units, unit_price, subtotal, controlled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				line.ID, sale.ID, i+1, line.ProductKey, line.ProductName, string(line.Format),
				line.Quantity, line.BaseUnits, line.UnitPrice.String(), line.Subtotal.String(), line.Controlled)
			for _, a := range line.Allocations {
				batch.Queue(`INSERT INTO sale_line_allocations (line_id, lot_id, base_units, prior_stock)
VALUES ($1, $2, $3, $4)`, line.ID, a.LotID, a.BaseUnitsTaken, a.PriorLotStock)
			}
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			r.logger.Warn("sale already recorded", slog.String("sale_id", sale.ID))
			return sale.ID, nil
		}
		return "", &WriteError{Op: "record sale", SaleID: sale.ID, Err: err}
	}
	return sale.ID, nil
}

// ReconcileLotStock writes levels only while the lot still holds prior.
// A lot that moved on returns inventory.ErrStockSuperseded.
func (r *Repository) ReconcileLotStock(ctx context.Context, lotID string, prior int, levels inventory.StockLevels) error {
	if r == nil || r.pool == nil {
		return &WriteError{Op: "reconcile lot stock", LotID: lotID, Err: errors.New("repository not initialised")}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_lots
SET stock = $2, stock_box = $3, stock_blister = $4, stock_tablet = $5, updated_at = NOW()
WHERE id = $1 AND stock = $6`, lotID, levels.Stock, levels.StockBox, levels.StockBlister, levels.StockTablet, prior)
	if err != nil {
		return &WriteError{Op: "reconcile lot stock", LotID: lotID, Err: err}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_lots WHERE id = $1)`, lotID).Scan(&exists); err != nil {
		return &WriteError{Op: "reconcile lot stock", LotID: lotID, Err: err}
	}
	if !exists {
		return &WriteError{Op: "reconcile lot stock", LotID: lotID, Err: fmt.Errorf("%w: %s", inventory.ErrUnknownLot, lotID)}
	}
	return fmt.Errorf("%w: %s expected stock %d", inventory.ErrStockSuperseded, lotID, prior)
}

// UpdateLotStock overwrites the persisted stock of one lot.
func (r *Repository) UpdateLotStock(ctx context.Context, lotID string, levels inventory.StockLevels) error {
	if r == nil || r.pool == nil {
		return &WriteError{Op: "update lot stock", LotID: lotID, Err: errors.New("repository not initialised")}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_lots
SET stock = $2, stock_box = $3, stock_blister = $4, stock_tablet = $5, updated_at = NOW()
WHERE id = $1`, lotID, levels.Stock, levels.StockBox, levels.StockBlister, levels.StockTablet)
	if err != nil {
		return &WriteError{Op: "update lot stock", LotID: lotID, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &WriteError{Op: "update lot stock", LotID: lotID, Err: fmt.Errorf("%w: %s", inventory.ErrUnknownLot, lotID)}
	}
	return nil
}
