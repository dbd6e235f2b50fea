package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/pharmapos/internal/jobs"
	"github.com/odyssey-erp/pharmapos/internal/sales"
)

// LotWriter applies a lot update only while the lot still holds prior stock.
// It returns inventory.ErrStockSuperseded when a later write moved the lot.
type LotWriter interface {
	ReconcileLotStock(ctx context.Context, lotID string, prior int, levels inventory.StockLevels) error
}

var _ LotWriter = (*sales.Repository)(nil)

// Invalidator drops cached inventory snapshots.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// StockReconcileJob re-applies lot updates left unapplied by a partial commit.
type StockReconcileJob struct {
	Writer      LotWriter
	Invalidator Invalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewStockReconcileJob wires dependencies for the reconcile handler.
func NewStockReconcileJob(writer LotWriter, invalidator Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Writer: writer, Invalidator: invalidator, Logger: logger, Metrics: metrics}
}

// Handle applies every update of the payload as a compare-and-set against
// the update's prior stock. A lot written by a later sale is left alone:
// that sale's level already accounts for this one.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Writer == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Updates) == 0 {
		return nil
	}

	tracker := j.metrics().Track(TaskStockReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("sale_id", payload.SaleID))
	var errs []error
	unknown := 0
	applied := 0
	for _, u := range payload.Updates {
		err := j.Writer.ReconcileLotStock(ctx, u.LotID, u.PriorStock, u.Levels)
		if errors.Is(err, inventory.ErrStockSuperseded) {
			logger.Info("lot stock superseded, skipping", slog.String("lot_id", u.LotID), slog.Int("prior_stock", u.PriorStock))
			continue
		}
		if err != nil {
			if errors.Is(err, inventory.ErrUnknownLot) {
				unknown++
			}
			logger.Warn("lot stock reconcile failed", slog.String("lot_id", u.LotID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		applied++
	}
	if applied > 0 && j.Invalidator != nil {
		if err := j.Invalidator.Bump(ctx); err != nil {
			logger.Warn("inventory cache invalidation failed", slog.Any("error", err))
		}
	}
	if len(errs) == 0 {
		logger.Info("stock reconciled", slog.Int("lots", applied))
		return nil
	}
	resultErr = errors.Join(errs...)
	if unknown == len(errs) {
		resultErr = fmt.Errorf("%w: %w", resultErr, asynq.SkipRetry)
	}
	return resultErr
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStockReconcile))
}

func (j *StockReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
