package sales

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/observability"
)

// Sink persists finalized sales and lot stock.
type Sink interface {
	RecordSale(ctx context.Context, sale Sale) (string, error)
	UpdateLotStock(ctx context.Context, lotID string, levels inventory.StockLevels) error
}

// Invalidator drops cached inventory after stock has been written.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// CommitReport summarises a commit.
type CommitReport struct {
	SaleID    string   `json:"sale_id"`
	Succeeded []string `json:"succeeded_lots"`
	Failed    []string `json:"failed_lots,omitempty"`
}

// LotWriteTimeout bounds the lot updates that follow a recorded sale.
const LotWriteTimeout = 15 * time.Second

// Committer writes a FinalizedSale through a Sink. It never retries.
type Committer struct {
	sink         Sink
	invalidator  Invalidator
	metrics      *observability.Metrics
	logger       *slog.Logger
	writeTimeout time.Duration
}

// NewCommitter builds a Committer; invalidator and metrics may be nil.
func NewCommitter(sink Sink, invalidator Invalidator, metrics *observability.Metrics, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{sink: sink, invalidator: invalidator, metrics: metrics, logger: logger, writeTimeout: LotWriteTimeout}
}

// Commit records the sale, then applies every lot update. A failed sale
// record returns a *WriteError and nothing else is attempted. Lot failures
// after the sale was recorded return the report with a *PartialCommitError.
// Once the sale is recorded, cancelling ctx no longer stops the lot updates;
// they run under their own LotWriteTimeout.
func (c *Committer) Commit(ctx context.Context, fs FinalizedSale) (CommitReport, error) {
	logger := c.logger.With(slog.String("sale_id", fs.Sale.ID))
	saleID, err := c.sink.RecordSale(ctx, fs.Sale)
	if err != nil {
		c.metrics.SaleCommitted(observability.CommitStatusFailed)
		logger.Error("record sale failed", slog.Any("error", err))
		var we *WriteError
		if errors.As(err, &we) {
			return CommitReport{}, err
		}
		return CommitReport{}, &WriteError{Op: "record sale", SaleID: fs.Sale.ID, Err: err}
	}
	if saleID == "" {
		saleID = fs.Sale.ID
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	report := CommitReport{SaleID: saleID, Succeeded: []string{}}
	var failed []FailedLotUpdate
	for _, u := range fs.Updates {
		if err := c.sink.UpdateLotStock(writeCtx, u.LotID, u.Levels); err != nil {
			var we *WriteError
			if !errors.As(err, &we) {
				err = &WriteError{Op: "update lot stock", SaleID: saleID, LotID: u.LotID, Err: err}
			}
			failed = append(failed, FailedLotUpdate{Update: u, Err: err})
			report.Failed = append(report.Failed, u.LotID)
			logger.Error("lot stock update failed", slog.String("lot_id", u.LotID), slog.Int("new_stock", u.NewStock), slog.Any("error", err))
			continue
		}
		report.Succeeded = append(report.Succeeded, u.LotID)
	}

	if len(report.Succeeded) > 0 && c.invalidator != nil {
		if err := c.invalidator.Bump(writeCtx); err != nil {
			logger.Warn("inventory cache invalidation failed", slog.Any("error", err))
		}
	}
	if len(failed) > 0 {
		c.metrics.SaleCommitted(observability.CommitStatusPartial)
		c.metrics.LotUpdatesFailed(len(failed))
		return report, &PartialCommitError{SaleID: saleID, Succeeded: report.Succeeded, Failed: failed}
	}
	c.metrics.SaleCommitted(observability.CommitStatusCommitted)
	logger.Info("sale committed",
		slog.String("method", string(fs.Sale.PaymentMethod)),
		slog.String("gross", fs.Sale.GrossTotal.StringFixed(2)),
		slog.Int("lots", len(report.Succeeded)))
	return report, nil
}
