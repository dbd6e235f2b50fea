package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/pharmapos/internal/jobs"
)

// ExpiryReporter produces the expiration report.
type ExpiryReporter interface {
	Expiring(ctx context.Context, window time.Duration) ([]inventory.ExpiryEntry, error)
}

// ExpiryScanJob logs and publishes lots close to or past expiration.
type ExpiryScanJob struct {
	Inventory ExpiryReporter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewExpiryScanJob wires dependencies for the expiry scan handler.
func NewExpiryScanJob(reporter ExpiryReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{Inventory: reporter, Logger: logger, Metrics: metrics}
}

// Handle runs one scan. A zero window uses the reporter's default.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowDays < 0 {
		payload.WindowDays = 0
	}

	tracker := j.metrics().Track(TaskExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	entries, err := j.Inventory.Expiring(ctx, time.Duration(payload.WindowDays)*24*time.Hour)
	if err != nil {
		resultErr = err
		logger.Error("expiry scan failed", slog.Any("error", err))
		return resultErr
	}

	expired := 0
	for _, e := range entries {
		if e.Expired {
			expired++
			logger.Warn("expired lot on hand",
				slog.String("lot_id", e.LotID),
				slog.String("product", e.Name),
				slog.Int("stock", e.Stock),
				slog.Int("days_left", e.DaysLeft),
				slog.Bool("controlled", e.Controlled))
		}
	}
	j.metrics().SetExpiry(expired, len(entries)-expired)
	logger.Info("expiry scan complete", slog.Int("expired", expired), slog.Int("expiring", len(entries)-expired))
	return nil
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
