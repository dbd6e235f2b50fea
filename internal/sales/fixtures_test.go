package sales

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var fixedNow = time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC)

func fixtureLots() []inventory.Lot {
	paracetamol := units.Packaging{UnitsPerBlister: 10, BlistersPerBox: 2}
	paracetamolPrices := inventory.Prices{Tablet: money("0.25"), Blister: money("2.00"), Box: money("3.50")}
	return []inventory.Lot{
		{ID: "P2", Name: "Paracetamol 500mg", Stock: 30, Packaging: paracetamol, Prices: paracetamolPrices,
			Expiration: day(2025, 6, 1), Kind: inventory.KindPharmaceutical},
		{ID: "P1", Name: "Paracetamol 500mg", Stock: 15, Packaging: paracetamol, Prices: paracetamolPrices,
			Expiration: day(2025, 3, 1), Kind: inventory.KindPharmaceutical},
		{ID: "L1", Name: "Amoxicilina 500mg", Stock: 20, Packaging: units.Packaging{UnitsPerBlister: 4, BlistersPerBox: 3},
			Prices: inventory.Prices{Tablet: money("1"), Blister: money("3.5"), Box: money("10")},
			Controlled: true, Kind: inventory.KindPharmaceutical},
		{ID: "G1", Name: "Alcohol gel", Stock: 5, Prices: inventory.Prices{Tablet: money("4")}, Kind: inventory.KindOther},
		{ID: "U1", Name: "Sin precio", Stock: 10, Kind: inventory.KindPharmaceutical},
	}
}

func fixtureCache() *inventory.Cache {
	return inventory.NewCache(fixtureLots(), nil, fixedNow)
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestSession() *Session {
	return NewSession(fixtureCache(), SessionConfig{
		SurchargePercent: DefaultSurchargePercent,
		Now:              func() time.Time { return fixedNow },
		NewID:            sequentialIDs("id"),
	})
}

func product(t interface{ Fatalf(string, ...any) }, c *inventory.Cache, name string) *inventory.Product {
	p, err := c.Product(name)
	if err != nil {
		t.Fatalf("product %s: %v", name, err)
	}
	return p
}

type fakeSink struct {
	mu        sync.Mutex
	sales     []Sale
	levels    map[string]inventory.StockLevels
	recordErr error
	lotErrs   map[string]error
}

func newFakeSink() *fakeSink {
	return &fakeSink{levels: map[string]inventory.StockLevels{}, lotErrs: map[string]error{}}
}

func (s *fakeSink) RecordSale(ctx context.Context, sale Sale) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return "", s.recordErr
	}
	s.sales = append(s.sales, sale)
	return sale.ID, nil
}

func (s *fakeSink) UpdateLotStock(ctx context.Context, lotID string, levels inventory.StockLevels) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lotErrs[lotID]; err != nil {
		return err
	}
	s.levels[lotID] = levels
	return nil
}

type countingInvalidator struct {
	bumps int
	err   error
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return c.err
}

type recordingEnqueuer struct {
	saleID  string
	updates []LotStockUpdate
	err     error
}

func (e *recordingEnqueuer) EnqueueReconcile(ctx context.Context, saleID string, updates []LotStockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.err != nil {
		return e.err
	}
	e.saleID = saleID
	e.updates = updates
	return nil
}

// cancellingSink cancels the caller's context as soon as the sale is recorded
// and refuses lot writes on a done context.
type cancellingSink struct {
	*fakeSink
	cancel context.CancelFunc
}

func (s *cancellingSink) RecordSale(ctx context.Context, sale Sale) (string, error) {
	id, err := s.fakeSink.RecordSale(ctx, sale)
	s.cancel()
	return id, err
}

func (s *cancellingSink) UpdateLotStock(ctx context.Context, lotID string, levels inventory.StockLevels) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeSink.UpdateLotStock(ctx, lotID, levels)
}
