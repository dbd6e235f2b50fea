package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/pharmapos/internal/jobs"
	"github.com/odyssey-erp/pharmapos/internal/sales"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries stock reconciliation, which must not wait behind reports.
	QueueCritical = "critical"
	// TaskStockReconcile re-applies lot stock updates a sale commit left behind.
	TaskStockReconcile = "stock:reconcile"
	// TaskExpiryScan reports lots close to or past expiration.
	TaskExpiryScan = "inventory:expiry_scan"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StockReconcilePayload carries the unapplied updates of one sale.
type StockReconcilePayload struct {
	SaleID  string                 `json:"sale_id"`
	Updates []sales.LotStockUpdate `json:"updates"`
}

// NewStockReconcileTask builds a reconcile task. The sale ID doubles as the
// task ID so a sale is queued at most once.
func NewStockReconcileTask(payload StockReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body,
		asynq.Queue(QueueCritical),
		asynq.TaskID("reconcile:"+payload.SaleID),
		asynq.MaxRetry(10),
	), nil
}

// ExpiryScanPayload configures one expiry scan.
type ExpiryScanPayload struct {
	WindowDays   int       `json:"window_days"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewExpiryScanTask builds an expiry scan task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}
