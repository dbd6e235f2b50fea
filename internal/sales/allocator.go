package sales

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

// Allocator turns sale requests into cart lines by reserving lot stock.
type Allocator struct {
	newID func() string
}

// NewAllocator builds an Allocator. A nil newID uses random UUIDs.
func NewAllocator(newID func() string) Allocator {
	if newID == nil {
		newID = uuid.NewString
	}
	return Allocator{newID: newID}
}

// Add validates the request against the product and the open lines, then
// reserves qty units of format from the product's lots. Any error leaves
// the product untouched.
func (a Allocator) Add(p *inventory.Product, format units.Format, qty int, open []CartLine) (CartLine, error) {
	if p == nil {
		return CartLine{}, invalid("product", "unknown product")
	}
	if !p.Offers(format) {
		return CartLine{}, invalid("format", "%s is not sold as %q", p.Name, format)
	}
	if qty <= 0 {
		return CartLine{}, invalid("quantity", "must be positive, got %d", qty)
	}
	for _, line := range open {
		if line.ProductKey == p.Key && line.Format == format {
			return CartLine{}, fmt.Errorf("%w: %s (%s)", ErrDuplicateCartLine, p.Name, format)
		}
	}
	price := p.UnitPrice(format)
	if !price.IsPositive() {
		return CartLine{}, invalid("price", "%s has no %s price", p.Name, format)
	}
	if available := p.Sellable().For(format); qty > available {
		return CartLine{}, invalid("quantity", "%d %s requested, %d available", qty, format, available)
	}

	baseUnits := qty * units.ConversionFactor(format, p.Packaging)
	allocs, err := p.Take(baseUnits)
	if err != nil {
		return CartLine{}, err
	}
	return CartLine{
		ID:          a.id(),
		ProductKey:  p.Key,
		ProductName: p.Name,
		Format:      format,
		Quantity:    qty,
		BaseUnits:   baseUnits,
		UnitPrice:   price,
		Subtotal:    roundMoney(price.Mul(decimal.NewFromInt(int64(qty)))),
		Controlled:  p.Controlled,
		Allocations: allocs,
	}, nil
}

// Remove returns the line's reserved units to the product's lots.
func (a Allocator) Remove(p *inventory.Product, line CartLine) error {
	if p == nil {
		return fmt.Errorf("%w: %s", inventory.ErrProductNotFound, line.ProductName)
	}
	return p.Return(line.Allocations)
}

func (a Allocator) id() string {
	if a.newID == nil {
		return uuid.NewString()
	}
	return a.newID()
}
