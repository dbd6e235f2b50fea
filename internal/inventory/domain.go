package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

// ProductKind separates pharmaceuticals from other merchandise.
type ProductKind string

const (
	// KindPharmaceutical products may be sold by box, blister or tablet.
	KindPharmaceutical ProductKind = "pharmaceutical"
	// KindOther products are sold per unit only.
	KindOther ProductKind = "other"
)

// Prices holds the unit price of each sale format.
type Prices struct {
	Tablet  decimal.Decimal `json:"tablet"`
	Blister decimal.Decimal `json:"blister"`
	Box     decimal.Decimal `json:"box"`
}

// For returns the price of one unit of format f.
func (p Prices) For(f units.Format) decimal.Decimal {
	switch f {
	case units.FormatBox:
		return p.Box
	case units.FormatBlister:
		return p.Blister
	default:
		return p.Tablet
	}
}

// Lot is one inventory record: a quantity of a product sharing an expiration date.
type Lot struct {
	ID         string
	Name       string
	Stock      int
	Packaging  units.Packaging
	Expiration time.Time
	Prices     Prices
	Controlled bool
	Kind       ProductKind
}

// HasExpiration reports whether the lot carries a real expiration date.
func (l Lot) HasExpiration() bool {
	return !l.Expiration.IsZero()
}

// Allocation records base units taken from one lot.
type Allocation struct {
	LotID          string `json:"lot_id"`
	BaseUnitsTaken int    `json:"base_units_taken"`
	PriorLotStock  int    `json:"prior_lot_stock"`
}

// StockLevels is the persisted stock of a lot, in base units and physical units.
type StockLevels struct {
	Stock        int `json:"stock"`
	StockBox     int `json:"stock_box"`
	StockBlister int `json:"stock_blister"`
	StockTablet  int `json:"stock_tablet"`
}

// LevelsFor derives persisted stock levels from a base-unit count.
func LevelsFor(stock int, p units.Packaging) StockLevels {
	b := units.ToPhysical(stock, p)
	return StockLevels{Stock: stock, StockBox: b.Boxes, StockBlister: b.Blisters, StockTablet: b.Tablets}
}

var (
	// ErrInsufficientStock indicates lots cannot cover a requested quantity.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrUnknownLot indicates an allocation references a lot the ledger does not hold.
	ErrUnknownLot = errors.New("inventory: unknown lot")
	// ErrStockSuperseded indicates a persisted lot no longer holds the stock
	// a pending update was computed from.
	ErrStockSuperseded = errors.New("inventory: lot stock superseded")
	// ErrInvalidQuantity indicates a non-positive base unit request.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidAllocation indicates an allocation with negative units.
	ErrInvalidAllocation = errors.New("inventory: allocation units must be >= 0")
	// ErrSourceUnavailable indicates the inventory source could not be read.
	ErrSourceUnavailable = errors.New("inventory: source unavailable")
	// ErrProductNotFound indicates no product matches the requested name.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInconsistentStock indicates total stock diverged from the lot sum.
	ErrInconsistentStock = errors.New("inventory: total stock does not match lots")
)
