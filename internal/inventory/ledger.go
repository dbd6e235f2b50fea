package inventory

import (
	"fmt"
	"sort"
)

// Ledger keeps the lots of one product in consumption order.
// Lots that reach zero stock stay in the ledger so releases can find them.
type Ledger struct {
	lots []*Lot
	byID map[string]*Lot
}

// NewLedger copies lots and orders them soonest expiration first.
// Lots without expiration go last; later duplicates of an ID are ignored.
func NewLedger(lots []Lot) *Ledger {
	l := &Ledger{byID: make(map[string]*Lot, len(lots))}
	for _, src := range lots {
		if _, dup := l.byID[src.ID]; dup {
			continue
		}
		lot := src
		if lot.Stock < 0 {
			lot.Stock = 0
		}
		l.lots = append(l.lots, &lot)
		l.byID[lot.ID] = &lot
	}
	sortLots(l.lots)
	return l
}

func sortLots(lots []*Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if a.HasExpiration() != b.HasExpiration() {
			return a.HasExpiration()
		}
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		return a.ID < b.ID
	})
}

// Consume takes n base units walking lots in order and decrements them in place.
// The unsatisfied remainder is returned as shortfall; the caller decides
// whether to keep or release the partial allocations.
func (l *Ledger) Consume(n int) ([]Allocation, int) {
	if n <= 0 {
		return nil, 0
	}
	remaining := n
	var allocs []Allocation
	for _, lot := range l.lots {
		if remaining == 0 {
			break
		}
		if lot.Stock <= 0 {
			continue
		}
		take := min(remaining, lot.Stock)
		allocs = append(allocs, Allocation{LotID: lot.ID, BaseUnitsTaken: take, PriorLotStock: lot.Stock})
		lot.Stock -= take
		remaining -= take
	}
	return allocs, remaining
}

// Release adds allocated units back to their lots. Every lot is checked
// before any stock changes.
func (l *Ledger) Release(allocs []Allocation) error {
	for _, a := range allocs {
		if _, ok := l.byID[a.LotID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLot, a.LotID)
		}
		if a.BaseUnitsTaken < 0 {
			return fmt.Errorf("%w: lot %s", ErrInvalidAllocation, a.LotID)
		}
	}
	for _, a := range allocs {
		l.byID[a.LotID].Stock += a.BaseUnitsTaken
	}
	return nil
}

// Total sums stock over every lot.
func (l *Ledger) Total() int {
	total := 0
	for _, lot := range l.lots {
		total += lot.Stock
	}
	return total
}

// Lot returns a copy of the lot with the given id.
func (l *Ledger) Lot(id string) (Lot, bool) {
	lot, ok := l.byID[id]
	if !ok {
		return Lot{}, false
	}
	return *lot, true
}

// Lots returns copies of all lots in consumption order.
func (l *Ledger) Lots() []Lot {
	out := make([]Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		out = append(out, *lot)
	}
	return out
}

// Active returns copies of lots that still have stock, in consumption order.
func (l *Ledger) Active() []Lot {
	out := make([]Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if lot.Stock > 0 {
			out = append(out, *lot)
		}
	}
	return out
}
