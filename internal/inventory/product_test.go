package inventory

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGroupLotsConsolidatesByNormalizedName(t *testing.T) {
	products := GroupLots([]Lot{
		{ID: "1", Name: "Amoxicilina 500mg", Stock: 20, Kind: KindPharmaceutical, Prices: Prices{Tablet: price("1.50")}, Expiration: date(2026, 5, 1)},
		{ID: "2", Name: "  amoxicilina   500MG ", Stock: 30, Kind: KindPharmaceutical, Controlled: true, Prices: Prices{Tablet: price("1.75"), Box: price("30")}, Expiration: date(2026, 1, 1)},
		{ID: "3", Name: "AMOXICILINA 500MG", Stock: 5, Kind: KindPharmaceutical, Prices: Prices{Tablet: decimal.Zero}},
		{ID: "4", Name: "Alcohol gel", Stock: 8, Kind: KindOther, Prices: Prices{Tablet: price("4")}},
	}, nil)

	require.Len(t, products, 2)
	amox := products["amoxicilina 500mg"]
	require.NotNil(t, amox)
	require.Equal(t, "Amoxicilina 500mg", amox.Name)
	require.Equal(t, 55, amox.TotalStock())
	require.True(t, amox.Controlled)
	require.True(t, amox.Prices.Tablet.Equal(price("1.75")), "last positive price wins")
	require.True(t, amox.Prices.Box.Equal(price("30")))
	require.Equal(t, []string{"2", "1", "3"}, lotIDs(amox.Lots()))
	require.NoError(t, amox.CheckConsistency())

	gel := products["alcohol gel"]
	require.Equal(t, KindOther, gel.Kind)
	require.False(t, gel.Controlled)
}

func TestGroupLotsAcceptsCustomPolicy(t *testing.T) {
	firstSeen := func(current, candidate decimal.Decimal) decimal.Decimal {
		if current.IsPositive() {
			return current
		}
		return candidate
	}
	products := GroupLots([]Lot{
		{ID: "1", Name: "Ibuprofeno", Stock: 1, Prices: Prices{Tablet: price("2")}},
		{ID: "2", Name: "Ibuprofeno", Stock: 1, Prices: Prices{Tablet: price("3")}},
	}, firstSeen)
	require.True(t, products["ibuprofeno"].Prices.Tablet.Equal(price("2")))
}

func lotIDs(lots []Lot) []string {
	ids := make([]string, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ID)
	}
	return ids
}

func boxProduct(stock int) *Product {
	return GroupLots([]Lot{{
		ID:        "L1",
		Name:      "Losartan 50mg",
		Stock:     stock,
		Kind:      KindPharmaceutical,
		Packaging: units.Packaging{UnitsPerBlister: 10, BlistersPerBox: 5},
		Prices:    Prices{Tablet: price("0.5"), Blister: price("4.5"), Box: price("20")},
	}}, nil)["losartan 50mg"]
}

func TestBoxSaleScenario(t *testing.T) {
	p := boxProduct(120)
	require.Equal(t, SellableStock{Box: 2, Blister: 12, Tablet: 120}, p.Sellable())

	allocs, err := p.Take(2 * units.ConversionFactor(units.FormatBox, p.Packaging))
	require.NoError(t, err)
	require.Equal(t, []Allocation{{LotID: "L1", BaseUnitsTaken: 100, PriorLotStock: 120}}, allocs)
	require.Equal(t, 20, p.TotalStock())

	sellable := p.Sellable()
	require.Equal(t, 20, sellable.Tablet)
	require.Equal(t, 2, sellable.Blister)
	require.Equal(t, 0, sellable.Box)
	require.NoError(t, p.CheckConsistency())
}

func TestNonPharmaceuticalSellsTabletsOnly(t *testing.T) {
	p := GroupLots([]Lot{{ID: "1", Name: "Jabon", Stock: 40, Kind: KindOther,
		Packaging: units.Packaging{UnitsPerBlister: 4, BlistersPerBox: 2},
		Prices:    Prices{Tablet: price("1"), Box: price("7")}}}, nil)["jabon"]
	require.Equal(t, SellableStock{Tablet: 40}, p.Sellable())
	require.False(t, p.Offers(units.FormatBox))
	require.True(t, p.UnitPrice(units.FormatBox).IsZero())
	require.Equal(t, units.FormatTablet, p.DefaultFormat())
}

func TestDefaultFormat(t *testing.T) {
	require.Equal(t, units.FormatBox, boxProduct(120).DefaultFormat())
	require.Equal(t, units.FormatBlister, boxProduct(30).DefaultFormat())
	require.Equal(t, units.FormatTablet, boxProduct(7).DefaultFormat())

	unpricedBox := boxProduct(120)
	unpricedBox.Prices.Box = decimal.Zero
	require.Equal(t, units.FormatBlister, unpricedBox.DefaultFormat())
}

func TestTakeShortfallLeavesProductUntouched(t *testing.T) {
	p := GroupLots([]Lot{
		{ID: "A", Name: "X", Stock: 3, Expiration: date(2025, 1, 1)},
		{ID: "B", Name: "X", Stock: 4, Expiration: date(2025, 2, 1)},
	}, nil)["x"]
	_, err := p.Take(9)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 7, p.TotalStock())
	require.Equal(t, []Lot{
		{ID: "A", Name: "X", Stock: 3, Expiration: date(2025, 1, 1)},
		{ID: "B", Name: "X", Stock: 4, Expiration: date(2025, 2, 1)},
	}, p.Lots())

	_, err = p.Take(0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestTakeReturnConservesStock(t *testing.T) {
	p := GroupLots([]Lot{
		{ID: "A", Name: "Y", Stock: 15, Expiration: date(2025, 1, 1)},
		{ID: "B", Name: "Y", Stock: 9, Expiration: date(2025, 6, 1)},
		{ID: "C", Name: "Y", Stock: 30},
	}, nil)["y"]
	rng := rand.New(rand.NewSource(7))
	var held [][]Allocation
	for i := 0; i < 500; i++ {
		if len(held) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(held))
			require.NoError(t, p.Return(held[idx]))
			held = append(held[:idx], held[idx+1:]...)
		} else {
			allocs, err := p.Take(1 + rng.Intn(12))
			if err == nil {
				held = append(held, allocs)
			} else {
				require.ErrorIs(t, err, ErrInsufficientStock)
			}
		}
		require.NoError(t, p.CheckConsistency())
	}
	for _, allocs := range held {
		require.NoError(t, p.Return(allocs))
	}
	require.Equal(t, 54, p.TotalStock())
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "ácido fólico 5mg", NormalizeName("  Ácido   FÓLICO 5MG "))
	require.Equal(t, NormalizeName("Ácido fólico"), NormalizeName("Ácido fólico"))
	require.Equal(t, "Ácido FÓLICO", DisplayName(" Ácido  FÓLICO "))
}
