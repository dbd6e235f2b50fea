package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultSurchargePercent is the card surcharge applied when none is configured.
var DefaultSurchargePercent = decimal.NewFromInt(5)

// SessionConfig groups optional Session settings.
type SessionConfig struct {
	// SurchargePercent is added to the net total of card payments.
	SurchargePercent decimal.Decimal
	Now              func() time.Time
	NewID            func() string
}

// Session is one register's open sale over an inventory snapshot it owns.
// It is not safe for concurrent use.
type Session struct {
	cache     *inventory.Cache
	allocator Allocator
	lines     []CartLine
	state     State
	surcharge decimal.Decimal
	now       func() time.Time
	newID     func() string
}

// NewSession starts an empty session over cache.
func NewSession(cache *inventory.Cache, cfg SessionConfig) *Session {
	if cfg.SurchargePercent.IsNegative() {
		cfg.SurchargePercent = decimal.Zero
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Session{
		cache:     cache,
		allocator: NewAllocator(cfg.NewID),
		state:     StateEmpty,
		surcharge: cfg.SurchargePercent,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
}

// State reports the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Cache returns the inventory snapshot the session mutates.
func (s *Session) Cache() *inventory.Cache {
	return s.cache
}

// Lines returns a copy of the open lines in insertion order.
func (s *Session) Lines() []CartLine {
	out := make([]CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// AddLine reserves qty units of format of the named product.
func (s *Session) AddLine(productName string, format units.Format, qty int) (CartLine, error) {
	p, err := s.cache.Product(productName)
	if err != nil {
		return CartLine{}, err
	}
	line, err := s.allocator.Add(p, format, qty, s.lines)
	if err != nil {
		return CartLine{}, err
	}
	s.lines = append(s.lines, line)
	s.state = StateBuilding
	return line, nil
}

// RemoveLine releases the line's reservation and drops it from the cart.
func (s *Session) RemoveLine(lineID string) error {
	idx := s.lineIndex(lineID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	line := s.lines[idx]
	p, err := s.cache.Product(line.ProductKey)
	if err != nil {
		return err
	}
	if err := s.allocator.Remove(p, line); err != nil {
		return err
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	if len(s.lines) == 0 {
		s.state = StateEmpty
	}
	return nil
}

func (s *Session) lineIndex(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// NetTotal sums the subtotals of the open lines.
func (s *Session) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal)
	}
	return roundMoney(total)
}

// Totals applies the payment method surcharge to the net total.
func (s *Session) Totals(method PaymentMethod) Totals {
	net := s.NetTotal()
	surcharge := decimal.Zero
	if method == PaymentCard {
		surcharge = roundMoney(net.Mul(s.surcharge).Div(decimal.NewFromInt(100)))
	}
	return Totals{Method: method, Net: net, Surcharge: surcharge, Gross: net.Add(surcharge)}
}

// ComputeChange compares a cash tender with the cash gross total. A negative
// difference is reported as Shortfall and the tender is not sufficient.
func (s *Session) ComputeChange(tendered decimal.Decimal) Change {
	gross := s.Totals(PaymentCash).Gross
	diff := roundMoney(tendered).Sub(gross)
	c := Change{Tendered: roundMoney(tendered), Gross: gross, Amount: diff, Shortfall: decimal.Zero, Sufficient: true}
	if diff.IsNegative() {
		c.Amount = decimal.Zero
		c.Shortfall = diff.Neg()
		c.Sufficient = false
	}
	return c
}

// Finalize closes the sale: it builds the sale record and one stock update
// per touched lot, then clears the cart. It writes nothing remotely; pass
// the result to a Committer. On error the cart is left as it was.
func (s *Session) Finalize(method PaymentMethod, tendered decimal.Decimal) (FinalizedSale, error) {
	if len(s.lines) == 0 {
		return FinalizedSale{}, ErrEmptyCart
	}
	if method != PaymentCash && method != PaymentCard {
		return FinalizedSale{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	s.state = StateFinalizing
	result, err := s.finalize(method, tendered)
	if err != nil {
		s.state = StateBuilding
		return FinalizedSale{}, err
	}
	s.lines = nil
	s.state = StateEmpty
	return result, nil
}

func (s *Session) finalize(method PaymentMethod, tendered decimal.Decimal) (FinalizedSale, error) {
	totals := s.Totals(method)
	change := decimal.Zero
	switch method {
	case PaymentCash:
		c := s.ComputeChange(tendered)
		if !c.Sufficient {
			return FinalizedSale{}, fmt.Errorf("%w: gross %s, tendered %s, short %s",
				ErrTenderShort, c.Gross.StringFixed(2), c.Tendered.StringFixed(2), c.Shortfall.StringFixed(2))
		}
		tendered = c.Tendered
		change = c.Amount
	case PaymentCard:
		tendered = totals.Gross
	}

	updates, err := s.lotUpdates()
	if err != nil {
		return FinalizedSale{}, err
	}
	sale := Sale{
		ID:            s.newID(),
		CreatedAt:     s.now().UTC(),
		PaymentMethod: method,
		Lines:         s.Lines(),
		NetTotal:      totals.Net,
		Surcharge:     totals.Surcharge,
		GrossTotal:    totals.Gross,
		Tendered:      tendered,
		Change:        change,
	}
	return FinalizedSale{Sale: sale, Updates: updates}, nil
}

// lotUpdates aggregates consumption per lot across every line. The ledger
// already reflects the reservations, so its current stock is the new stock.
func (s *Session) lotUpdates() ([]LotStockUpdate, error) {
	type touched struct {
		product  *inventory.Product
		consumed int
	}
	order := []string{}
	byLot := map[string]*touched{}
	for _, line := range s.lines {
		p, err := s.cache.Product(line.ProductKey)
		if err != nil {
			return nil, err
		}
		for _, a := range line.Allocations {
			t, ok := byLot[a.LotID]
			if !ok {
				t = &touched{product: p}
				byLot[a.LotID] = t
				order = append(order, a.LotID)
			}
			t.consumed += a.BaseUnitsTaken
		}
	}
	updates := make([]LotStockUpdate, 0, len(order))
	for _, id := range order {
		t := byLot[id]
		lot, ok := t.product.Lot(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", inventory.ErrUnknownLot, id)
		}
		updates = append(updates, LotStockUpdate{
			LotID:       id,
			ProductName: t.product.Name,
			PriorStock:  lot.Stock + t.consumed,
			Consumed:    t.consumed,
			NewStock:    lot.Stock,
			Levels:      inventory.LevelsFor(lot.Stock, lot.Packaging),
		})
	}
	return updates, nil
}

// Abandon releases every open line and empties the cart. Lines whose
// release fails stay in the cart and the joined errors are returned.
func (s *Session) Abandon() error {
	var errs []error
	kept := s.lines[:0]
	for _, line := range s.lines {
		p, err := s.cache.Product(line.ProductKey)
		if err == nil {
			err = s.allocator.Remove(p, line)
		}
		if err != nil {
			errs = append(errs, err)
			kept = append(kept, line)
		}
	}
	s.lines = kept
	if len(s.lines) == 0 {
		s.lines = nil
		s.state = StateEmpty
	}
	return errors.Join(errs...)
}

// Reload swaps in a fresh inventory snapshot. It is refused while lines are
// open, since their allocations point into the current snapshot.
func (s *Session) Reload(cache *inventory.Cache) error {
	if len(s.lines) > 0 {
		return fmt.Errorf("%w: %d line(s)", ErrPendingLines, len(s.lines))
	}
	s.cache = cache
	return nil
}

// Restore puts the lines of a finalized sale back into an empty cart. Their
// allocations were never released, so the cart returns to its state before
// Finalize. Use it when the commit failed before anything was written.
func (s *Session) Restore(fs FinalizedSale) error {
	if len(s.lines) > 0 {
		return fmt.Errorf("%w: %d line(s)", ErrPendingLines, len(s.lines))
	}
	if len(fs.Sale.Lines) == 0 {
		return nil
	}
	s.lines = append([]CartLine(nil), fs.Sale.Lines...)
	s.state = StateBuilding
	return nil
}
