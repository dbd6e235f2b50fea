package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/observability"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

// ReconcileEnqueuer schedules lot updates left unapplied by a partial commit.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, saleID string, updates []LotStockUpdate) error
}

const enqueueTimeout = 10 * time.Second

// Register serializes access to one Session for the HTTP layer and ties it
// to inventory loading and sale commits.
type Register struct {
	mu        sync.Mutex
	inventory *inventory.Service
	session   *Session
	committer *Committer
	reconcile ReconcileEnqueuer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// RegisterDeps collects the collaborators of a Register. Reconcile and
// Metrics are optional.
type RegisterDeps struct {
	Inventory *inventory.Service
	Committer *Committer
	Reconcile ReconcileEnqueuer
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Session   SessionConfig
}

// NewRegister loads the first inventory snapshot and opens a session.
func NewRegister(ctx context.Context, deps RegisterDeps) (*Register, error) {
	if deps.Inventory == nil || deps.Committer == nil {
		return nil, errors.New("sales: register requires inventory and committer")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cache, err := deps.Inventory.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Register{
		inventory: deps.Inventory,
		session:   NewSession(cache, deps.Session),
		committer: deps.Committer,
		reconcile: deps.Reconcile,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}, nil
}

// ProductView is a product as listed to the cashier.
type ProductView struct {
	Key           string                  `json:"key"`
	Name          string                  `json:"name"`
	Kind          inventory.ProductKind   `json:"kind"`
	Controlled    bool                    `json:"controlled"`
	Packaging     units.Packaging         `json:"packaging"`
	Prices        inventory.Prices        `json:"prices"`
	TotalStock    int                     `json:"total_stock"`
	Sellable      inventory.SellableStock `json:"sellable"`
	DefaultFormat units.Format            `json:"default_format"`
	Lots          int                     `json:"lots"`
}

// CartView is the open cart with totals for both payment methods.
type CartView struct {
	State string     `json:"state"`
	Lines []CartLine `json:"lines"`
	Cash  Totals     `json:"cash"`
	Card  Totals     `json:"card"`
}

// CheckoutResult is the outcome of a checkout that recorded the sale.
type CheckoutResult struct {
	Sale            Sale             `json:"sale"`
	Updates         []LotStockUpdate `json:"updates"`
	Report          CommitReport     `json:"report"`
	ReconcileQueued bool             `json:"reconcile_queued"`
}

// Products lists the snapshot's products ordered by key.
func (r *Register) Products() []ProductView {
	r.mu.Lock()
	defer r.mu.Unlock()
	products := r.session.Cache().Products()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProductView{
			Key:           p.Key,
			Name:          p.Name,
			Kind:          p.Kind,
			Controlled:    p.Controlled,
			Packaging:     p.Packaging,
			Prices:        p.Prices,
			TotalStock:    p.TotalStock(),
			Sellable:      p.Sellable(),
			DefaultFormat: p.DefaultFormat(),
			Lots:          len(p.ActiveLots()),
		})
	}
	return out
}

// Cart returns the open cart.
func (r *Register) Cart() CartView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cartLocked()
}

func (r *Register) cartLocked() CartView {
	return CartView{
		State: r.session.State().String(),
		Lines: r.session.Lines(),
		Cash:  r.session.Totals(PaymentCash),
		Card:  r.session.Totals(PaymentCard),
	}
}

// AddLine adds a line; an empty format uses the product's default format.
func (r *Register) AddLine(productName string, format units.Format, qty int) (CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if format == "" {
		p, err := r.session.Cache().Product(productName)
		if err != nil {
			return CartLine{}, err
		}
		format = p.DefaultFormat()
	}
	line, err := r.session.AddLine(productName, format, qty)
	if err != nil {
		return CartLine{}, err
	}
	r.metrics.SetCartLines(len(r.session.Lines()))
	r.logger.Info("cart line added",
		slog.String("line_id", line.ID),
		slog.String("product", line.ProductName),
		slog.String("format", string(line.Format)),
		slog.Int("quantity", line.Quantity),
		slog.Int("base_units", line.BaseUnits))
	return line, nil
}

// RemoveLine drops a line and releases its stock.
func (r *Register) RemoveLine(lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.session.RemoveLine(lineID); err != nil {
		return err
	}
	r.metrics.SetCartLines(len(r.session.Lines()))
	return nil
}

// Abandon empties the cart.
func (r *Register) Abandon() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.session.Abandon()
	r.metrics.SetCartLines(len(r.session.Lines()))
	return err
}

// Reload replaces the snapshot with a fresh load. Refused while lines are open.
func (r *Register) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.session.Lines()); n > 0 {
		return fmt.Errorf("%w: %d line(s)", ErrPendingLines, n)
	}
	cache, err := r.inventory.Load(ctx)
	if err != nil {
		return err
	}
	return r.session.Reload(cache)
}

// Checkout finalizes and commits the open sale. When recording the sale
// fails the cart is restored and the error returned. When only lot updates
// fail the result is returned together with a *PartialCommitError and the
// failed updates are queued for reconciliation if an enqueuer is set.
func (r *Register) Checkout(ctx context.Context, method PaymentMethod, tendered decimal.Decimal) (CheckoutResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fs, err := r.session.Finalize(method, tendered)
	if err != nil {
		return CheckoutResult{}, err
	}
	report, err := r.committer.Commit(ctx, fs)
	result := CheckoutResult{Sale: fs.Sale, Updates: fs.Updates, Report: report}
	var partial *PartialCommitError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		if r.reconcile != nil {
			// The sale is already recorded: queue the repair even if the request went away.
			qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
			qerr := r.reconcile.EnqueueReconcile(qctx, partial.SaleID, partial.Updates())
			cancel()
			if qerr != nil {
				r.logger.Error("enqueue reconcile failed", slog.String("sale_id", partial.SaleID), slog.Any("error", qerr))
			} else {
				result.ReconcileQueued = true
			}
		}
	default:
		if rerr := r.session.Restore(fs); rerr != nil {
			r.logger.Error("restore cart failed", slog.String("sale_id", fs.Sale.ID), slog.Any("error", rerr))
		}
		r.metrics.SetCartLines(len(r.session.Lines()))
		return CheckoutResult{}, err
	}
	r.metrics.SetCartLines(0)
	return result, err
}
