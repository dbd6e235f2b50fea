package sales

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
)

var (
	// ErrInvalidSaleRequest matches every *InvalidRequestError.
	ErrInvalidSaleRequest = errors.New("sales: invalid sale request")
	// ErrInsufficientStock is the inventory sentinel re-exported for callers of this package.
	ErrInsufficientStock = inventory.ErrInsufficientStock
	// ErrDuplicateCartLine rejects a second open line for the same product and format.
	ErrDuplicateCartLine = errors.New("sales: product and format already in cart")
	// ErrSourceUnavailable is the inventory sentinel re-exported for callers of this package.
	ErrSourceUnavailable = inventory.ErrSourceUnavailable
	// ErrWriteFailed matches every *WriteError and *PartialCommitError.
	ErrWriteFailed = errors.New("sales: write failed")
	// ErrPartialCommit marks a sale recorded while some lot updates failed.
	ErrPartialCommit = errors.New("sales: partial commit")
	// ErrTenderShort rejects a cash finalize paying less than the gross total.
	ErrTenderShort = errors.New("sales: tendered amount below total")
	// ErrPendingLines refuses an inventory reload while lines hold allocations.
	ErrPendingLines = errors.New("sales: cart has open lines")
	// ErrEmptyCart refuses finalizing a sale without lines.
	ErrEmptyCart = errors.New("sales: cart is empty")
	// ErrLineNotFound reports an unknown cart line ID.
	ErrLineNotFound = errors.New("sales: cart line not found")
	// ErrInvalidPaymentMethod rejects payment methods other than cash and card.
	ErrInvalidPaymentMethod = errors.New("sales: invalid payment method")
)

// InvalidRequestError names the precondition a sale line failed.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("sales: invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidSaleRequest.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidSaleRequest
}

func invalid(field, format string, args ...any) error {
	return &InvalidRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// WriteError is a failed call to the sales sink.
type WriteError struct {
	Op     string
	SaleID string
	LotID  string
	Err    error
}

func (e *WriteError) Error() string {
	var b strings.Builder
	b.WriteString("sales: ")
	b.WriteString(e.Op)
	if e.SaleID != "" {
		b.WriteString(" sale=")
		b.WriteString(e.SaleID)
	}
	if e.LotID != "" {
		b.WriteString(" lot=")
		b.WriteString(e.LotID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrWriteFailed.
func (e *WriteError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// PartialCommitError reports a recorded sale whose lot write-backs did not all
// succeed. Failed holds the updates still to be applied.
type PartialCommitError struct {
	SaleID    string
	Succeeded []string
	Failed    []FailedLotUpdate
}

// FailedLotUpdate pairs an unapplied update with its cause.
type FailedLotUpdate struct {
	Update LotStockUpdate
	Err    error
}

func (e *PartialCommitError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.Update.LotID)
	}
	return fmt.Sprintf("sales: sale %s recorded, %d lot update(s) failed: %s",
		e.SaleID, len(e.Failed), strings.Join(ids, ", "))
}

// Is matches both ErrPartialCommit and ErrWriteFailed.
func (e *PartialCommitError) Is(target error) bool {
	return target == ErrPartialCommit || target == ErrWriteFailed
}

// Unwrap exposes the individual lot failures.
func (e *PartialCommitError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Updates returns the lot updates that were not applied.
func (e *PartialCommitError) Updates() []LotStockUpdate {
	out := make([]LotStockUpdate, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Update)
	}
	return out
}
