package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

// Record is the raw inventory document as stored by the back office.
type Record struct {
	ID                string     `json:"id" validate:"required"`
	Name              string     `json:"nombre" validate:"required"`
	Stock             int        `json:"stock" validate:"gte=0"`
	PriceTablet       float64    `json:"precioTableta" validate:"gte=0"`
	PriceBlister      float64    `json:"precioBlister" validate:"gte=0"`
	PriceBox          float64    `json:"precioCaja" validate:"gte=0"`
	TabletsPerBlister int        `json:"tabletasPorBlister" validate:"gte=0"`
	BlistersPerBox    int        `json:"blistersPorCaja" validate:"gte=0"`
	Expiration        *time.Time `json:"vencimiento"`
	Antibiotic        bool       `json:"antibiotico"`
	ProductType       string     `json:"tipoProducto"`
}

// RecordError describes a record rejected at the source boundary.
type RecordError struct {
	ID     string
	Reason string
}

func (e RecordError) Error() string {
	return fmt.Sprintf("inventory: record %q rejected: %s", e.ID, e.Reason)
}

var recordValidator = validator.New()

// ToLot validates the record and applies defaults: packaging factors of 0
// become 1, a missing or epoch expiration becomes the zero time.
func (r Record) ToLot() (Lot, error) {
	if err := recordValidator.Struct(r); err != nil {
		reasons := []string{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				reasons = append(reasons, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		} else {
			reasons = append(reasons, err.Error())
		}
		return Lot{}, RecordError{ID: r.ID, Reason: strings.Join(reasons, ", ")}
	}
	lot := Lot{
		ID:    r.ID,
		Name:  DisplayName(r.Name),
		Stock: r.Stock,
		Packaging: units.Packaging{
			UnitsPerBlister: r.TabletsPerBlister,
			BlistersPerBox:  r.BlistersPerBox,
		}.Normalize(),
		Prices: Prices{
			Tablet:  decimal.NewFromFloat(r.PriceTablet),
			Blister: decimal.NewFromFloat(r.PriceBlister),
			Box:     decimal.NewFromFloat(r.PriceBox),
		},
		Controlled: r.Antibiotic,
		Kind:       ParseKind(r.ProductType),
	}
	if r.Expiration != nil && !r.Expiration.IsZero() && r.Expiration.Unix() != 0 {
		lot.Expiration = r.Expiration.UTC()
	}
	return lot, nil
}

// ParseKind maps the document product type; an empty type is pharmaceutical.
func ParseKind(raw string) ProductKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "farmaceutico", "farmacéutico", "pharmaceutical":
		return KindPharmaceutical
	default:
		return KindOther
	}
}

// ToLots converts records, collecting rejects instead of failing the batch.
func ToLots(records []Record) ([]Lot, []RecordError) {
	lots := make([]Lot, 0, len(records))
	var rejects []RecordError
	for _, r := range records {
		lot, err := r.ToLot()
		if err != nil {
			if re, ok := err.(RecordError); ok {
				rejects = append(rejects, re)
				continue
			}
			rejects = append(rejects, RecordError{ID: r.ID, Reason: err.Error()})
			continue
		}
		lots = append(lots, lot)
	}
	return lots, rejects
}
