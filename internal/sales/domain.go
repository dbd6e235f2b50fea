package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

// ============================================================================
// PAYMENT
// ============================================================================

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	// PaymentCash is settled in cash; tendered must cover the gross total.
	PaymentCash PaymentMethod = "cash"
	// PaymentCard carries the card surcharge and needs no tendered amount.
	PaymentCard PaymentMethod = "card"
)

// ParsePaymentMethod accepts english and spanish names.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash", "efectivo":
		return PaymentCash, nil
	case "card", "tarjeta":
		return PaymentCard, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Totals are the sale amounts for one payment method.
type Totals struct {
	Method    PaymentMethod   `json:"method"`
	Net       decimal.Decimal `json:"net"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Gross     decimal.Decimal `json:"gross"`
}

// Change is the result of comparing a tendered amount with the gross total.
type Change struct {
	Tendered   decimal.Decimal `json:"tendered"`
	Gross      decimal.Decimal `json:"gross"`
	Amount     decimal.Decimal `json:"amount"`
	Shortfall  decimal.Decimal `json:"shortfall"`
	Sufficient bool            `json:"sufficient"`
}

// ============================================================================
// CART
// ============================================================================

// CartLine is one reserved product line of the open sale.
type CartLine struct {
	ID          string                 `json:"id"`
	ProductKey  string                 `json:"product_key"`
	ProductName string                 `json:"product_name"`
	Format      units.Format           `json:"format"`
	Quantity    int                    `json:"quantity"`
	BaseUnits   int                    `json:"base_units"`
	UnitPrice   decimal.Decimal        `json:"unit_price"`
	Subtotal    decimal.Decimal        `json:"subtotal"`
	Controlled  bool                   `json:"controlled"`
	Allocations []inventory.Allocation `json:"allocations"`
}

// ============================================================================
// SALE
// ============================================================================

// Sale is the record handed to the sink on finalize.
type Sale struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Lines         []CartLine      `json:"lines"`
	NetTotal      decimal.Decimal `json:"net_total"`
	Surcharge     decimal.Decimal `json:"surcharge"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	Tendered      decimal.Decimal `json:"tendered"`
	Change        decimal.Decimal `json:"change"`
}

// HasControlled reports whether any line sells a controlled product.
func (s Sale) HasControlled() bool {
	for _, l := range s.Lines {
		if l.Controlled {
			return true
		}
	}
	return false
}

// LotStockUpdate is the new persisted stock of one lot touched by a sale.
type LotStockUpdate struct {
	LotID       string                `json:"lot_id"`
	ProductName string                `json:"product_name"`
	PriorStock  int                   `json:"prior_stock"`
	Consumed    int                   `json:"consumed"`
	NewStock    int                   `json:"new_stock"`
	Levels      inventory.StockLevels `json:"levels"`
}

// FinalizedSale is the output of a successful finalize, ready to commit.
type FinalizedSale struct {
	Sale    Sale             `json:"sale"`
	Updates []LotStockUpdate `json:"updates"`
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
