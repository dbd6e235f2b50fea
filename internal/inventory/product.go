package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

// PricePolicy decides which price survives when several lots of one product
// carry a price for the same format.
type PricePolicy func(current, candidate decimal.Decimal) decimal.Decimal

// LastSeenPrice keeps the last positive price encountered. Lot order from the
// source therefore decides the product price.
func LastSeenPrice(current, candidate decimal.Decimal) decimal.Decimal {
	if candidate.IsPositive() {
		return candidate
	}
	return current
}

// Product consolidates every lot sharing a normalized name.
type Product struct {
	Key        string
	Name       string
	Kind       ProductKind
	Controlled bool
	Packaging  units.Packaging
	Prices     Prices

	totalStock int
	ledger     *Ledger
}

// SellableStock is the whole number of units sellable per format.
type SellableStock struct {
	Box     int `json:"box"`
	Blister int `json:"blister"`
	Tablet  int `json:"tablet"`
}

// For returns the sellable quantity of format f.
func (s SellableStock) For(f units.Format) int {
	switch f {
	case units.FormatBox:
		return s.Box
	case units.FormatBlister:
		return s.Blister
	default:
		return s.Tablet
	}
}

// GroupLots consolidates lots by normalized product name. A nil policy
// means LastSeenPrice.
func GroupLots(lots []Lot, policy PricePolicy) map[string]*Product {
	if policy == nil {
		policy = LastSeenPrice
	}
	products := make(map[string]*Product)
	members := make(map[string][]Lot)
	for _, lot := range lots {
		key := NormalizeName(lot.Name)
		if key == "" {
			continue
		}
		p, ok := products[key]
		if !ok {
			p = &Product{Key: key, Name: DisplayName(lot.Name), Kind: KindOther}
			products[key] = p
		}
		if lot.Kind == KindPharmaceutical {
			p.Kind = KindPharmaceutical
		}
		p.Controlled = p.Controlled || lot.Controlled
		p.Packaging = lot.Packaging.Normalize()
		p.Prices.Tablet = policy(p.Prices.Tablet, lot.Prices.Tablet)
		p.Prices.Blister = policy(p.Prices.Blister, lot.Prices.Blister)
		p.Prices.Box = policy(p.Prices.Box, lot.Prices.Box)
		members[key] = append(members[key], lot)
	}
	for key, p := range products {
		p.ledger = NewLedger(members[key])
		p.totalStock = p.ledger.Total()
	}
	return products
}

// TotalStock returns the base-unit stock across all lots.
func (p *Product) TotalStock() int {
	return p.totalStock
}

// Lots returns every lot in consumption order, including exhausted ones.
func (p *Product) Lots() []Lot {
	return p.ledger.Lots()
}

// ActiveLots returns lots that can still be allocated.
func (p *Product) ActiveLots() []Lot {
	return p.ledger.Active()
}

// Lot looks up one lot of the product.
func (p *Product) Lot(id string) (Lot, bool) {
	return p.ledger.Lot(id)
}

// Offers reports whether the product can be sold in format f.
func (p *Product) Offers(f units.Format) bool {
	if !f.Valid() {
		return false
	}
	return p.Kind == KindPharmaceutical || f == units.FormatTablet
}

// UnitPrice returns the price of one unit in format f, zero if not offered.
func (p *Product) UnitPrice(f units.Format) decimal.Decimal {
	if !p.Offers(f) {
		return decimal.Zero
	}
	return p.Prices.For(f)
}

// Sellable derives sellable quantities from the current total stock.
func (p *Product) Sellable() SellableStock {
	s := SellableStock{Tablet: p.totalStock}
	if p.Kind != KindPharmaceutical {
		return s
	}
	s.Box = p.totalStock / p.Packaging.UnitsPerBox()
	s.Blister = p.totalStock / p.Packaging.Normalize().UnitsPerBlister
	return s
}

// DefaultFormat picks the largest format that is priced and in stock.
func (p *Product) DefaultFormat() units.Format {
	if p.Kind != KindPharmaceutical {
		return units.FormatTablet
	}
	sellable := p.Sellable()
	for _, f := range []units.Format{units.FormatBox, units.FormatBlister} {
		if p.Prices.For(f).IsPositive() && sellable.For(f) > 0 {
			return f
		}
	}
	return units.FormatTablet
}

// Take consumes base units from the lots and lowers total stock. On a
// shortfall nothing is changed and ErrInsufficientStock is returned.
func (p *Product) Take(baseUnits int) ([]Allocation, error) {
	if baseUnits <= 0 {
		return nil, ErrInvalidQuantity
	}
	allocs, shortfall := p.ledger.Consume(baseUnits)
	if shortfall > 0 {
		if err := p.ledger.Release(allocs); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s short by %d units", ErrInsufficientStock, p.Name, shortfall)
	}
	p.totalStock -= baseUnits
	return allocs, nil
}

// Return gives allocated units back to their lots and raises total stock.
func (p *Product) Return(allocs []Allocation) error {
	if err := p.ledger.Release(allocs); err != nil {
		return err
	}
	for _, a := range allocs {
		p.totalStock += a.BaseUnitsTaken
	}
	return nil
}

// CheckConsistency verifies total stock equals the lot sum.
func (p *Product) CheckConsistency() error {
	if sum := p.ledger.Total(); sum != p.totalStock {
		return fmt.Errorf("%w: %s total %d lots %d", ErrInconsistentStock, p.Name, p.totalStock, sum)
	}
	return nil
}
