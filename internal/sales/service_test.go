package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

type registerFixture struct {
	register *Register
	sink     *fakeSink
	enqueuer *recordingEnqueuer
	loads    *int
}

func newRegisterFixture(t *testing.T) registerFixture {
	t.Helper()
	loads := 0
	src := inventory.SourceFunc(func(ctx context.Context) ([]inventory.Lot, error) {
		loads++
		return fixtureLots(), nil
	})
	svc := inventory.NewService(src, nil, inventory.ServiceConfig{Now: func() time.Time { return fixedNow }})
	sink := newFakeSink()
	enq := &recordingEnqueuer{}
	reg, err := NewRegister(context.Background(), RegisterDeps{
		Inventory: svc,
		Committer: NewCommitter(sink, nil, nil, nil),
		Reconcile: enq,
		Session:   SessionConfig{SurchargePercent: DefaultSurchargePercent, NewID: sequentialIDs("r")},
	})
	require.NoError(t, err)
	return registerFixture{register: reg, sink: sink, enqueuer: enq, loads: &loads}
}

func TestNewRegisterPropagatesLoadFailure(t *testing.T) {
	svc := inventory.NewService(inventory.SourceFunc(func(ctx context.Context) ([]inventory.Lot, error) {
		return nil, errors.New("offline")
	}), nil, inventory.ServiceConfig{})
	_, err := NewRegister(context.Background(), RegisterDeps{Inventory: svc, Committer: NewCommitter(newFakeSink(), nil, nil, nil)})
	require.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = NewRegister(context.Background(), RegisterDeps{})
	require.Error(t, err)
}

func TestRegisterDefaultFormat(t *testing.T) {
	f := newRegisterFixture(t)
	line, err := f.register.AddLine("Paracetamol 500mg", "", 1)
	require.NoError(t, err)
	require.Equal(t, units.FormatBox, line.Format)

	view := f.register.Cart()
	require.Equal(t, "building", view.State)
	require.True(t, view.Card.Gross.Equal(money("3.68")))
}

func TestRegisterCheckoutCommits(t *testing.T) {
	f := newRegisterFixture(t)
	_, err := f.register.AddLine("Amoxicilina 500mg", units.FormatBox, 1)
	require.NoError(t, err)

	result, err := f.register.Checkout(context.Background(), PaymentCash, money("20"))
	require.NoError(t, err)
	require.False(t, result.ReconcileQueued)
	require.Equal(t, []string{"L1"}, result.Report.Succeeded)
	require.Equal(t, 8, f.sink.levels["L1"].Stock)
	require.Equal(t, "empty", f.register.Cart().State)
}

func TestRegisterCheckoutPartialQueuesReconcile(t *testing.T) {
	f := newRegisterFixture(t)
	f.sink.lotErrs["G1"] = errors.New("timeout")
	_, err := f.register.AddLine("Alcohol gel", units.FormatTablet, 2)
	require.NoError(t, err)
	_, err = f.register.AddLine("Paracetamol 500mg", units.FormatTablet, 1)
	require.NoError(t, err)

	result, err := f.register.Checkout(context.Background(), PaymentCard, decimal.Zero)
	require.ErrorIs(t, err, ErrPartialCommit)
	require.True(t, result.ReconcileQueued)
	require.Equal(t, result.Sale.ID, f.enqueuer.saleID)
	require.Len(t, f.enqueuer.updates, 1)
	require.Equal(t, "G1", f.enqueuer.updates[0].LotID)
	require.Equal(t, 3, f.enqueuer.updates[0].NewStock)
	require.Empty(t, f.register.Cart().Lines)
}

func newCancellingRegister(t *testing.T, cancel context.CancelFunc) (*Register, *cancellingSink, *recordingEnqueuer) {
	t.Helper()
	svc := inventory.NewService(inventory.SourceFunc(func(ctx context.Context) ([]inventory.Lot, error) {
		return fixtureLots(), nil
	}), nil, inventory.ServiceConfig{Now: func() time.Time { return fixedNow }})
	sink := &cancellingSink{fakeSink: newFakeSink(), cancel: cancel}
	enq := &recordingEnqueuer{}
	reg, err := NewRegister(context.Background(), RegisterDeps{
		Inventory: svc,
		Committer: NewCommitter(sink, nil, nil, nil),
		Reconcile: enq,
		Session:   SessionConfig{SurchargePercent: DefaultSurchargePercent, NewID: sequentialIDs("c")},
	})
	require.NoError(t, err)
	return reg, sink, enq
}

func TestRegisterCheckoutSurvivesCancelAfterRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg, sink, _ := newCancellingRegister(t, cancel)
	_, err := reg.AddLine("Amoxicilina 500mg", units.FormatBox, 1)
	require.NoError(t, err)

	result, err := reg.Checkout(ctx, PaymentCash, money("20"))
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.False(t, result.ReconcileQueued)
	require.Equal(t, []string{"L1"}, result.Report.Succeeded)
	require.Equal(t, 8, sink.levels["L1"].Stock)
}

func TestRegisterCheckoutQueuesReconcileAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg, sink, enq := newCancellingRegister(t, cancel)
	sink.lotErrs["G1"] = errors.New("timeout")
	_, err := reg.AddLine("Alcohol gel", units.FormatTablet, 2)
	require.NoError(t, err)

	result, err := reg.Checkout(ctx, PaymentCard, decimal.Zero)
	require.ErrorIs(t, err, ErrPartialCommit)
	require.Error(t, ctx.Err())
	require.True(t, result.ReconcileQueued)
	require.Equal(t, result.Sale.ID, enq.saleID)
	require.Len(t, enq.updates, 1)
	require.Equal(t, "G1", enq.updates[0].LotID)
}

func TestRegisterCheckoutCleanFailureRestoresCart(t *testing.T) {
	f := newRegisterFixture(t)
	f.sink.recordErr = errors.New("primary unavailable")
	_, err := f.register.AddLine("Paracetamol 500mg", units.FormatBlister, 1)
	require.NoError(t, err)

	_, err = f.register.Checkout(context.Background(), PaymentCard, decimal.Zero)
	require.ErrorIs(t, err, ErrWriteFailed)
	cart := f.register.Cart()
	require.Equal(t, "building", cart.State)
	require.Len(t, cart.Lines, 1)
	require.Nil(t, f.enqueuer.updates)

	f.sink.recordErr = nil
	_, err = f.register.Checkout(context.Background(), PaymentCard, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, f.sink.sales, 1)
}

func TestRegisterReload(t *testing.T) {
	f := newRegisterFixture(t)
	require.Equal(t, 1, *f.loads)

	line, err := f.register.AddLine("Alcohol gel", units.FormatTablet, 1)
	require.NoError(t, err)
	require.ErrorIs(t, f.register.Reload(context.Background()), ErrPendingLines)
	require.Equal(t, 1, *f.loads)

	require.NoError(t, f.register.RemoveLine(line.ID))
	require.NoError(t, f.register.Reload(context.Background()))
	require.Equal(t, 2, *f.loads)

	products := f.register.Products()
	require.Len(t, products, 4)
	require.Equal(t, "alcohol gel", products[0].Key)
	require.Equal(t, 5, products[0].TotalStock)
}
