package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

type countingSource struct {
	lots  []Lot
	err   error
	calls int
}

func (s *countingSource) LoadAll(ctx context.Context) ([]Lot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Lot, len(s.lots))
	copy(out, s.lots)
	return out, nil
}

func newTestSnapshot(t *testing.T, src Source) *SnapshotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotCache(src, client, time.Minute, nil)
}

func TestSnapshotCacheServesFromRedis(t *testing.T) {
	src := &countingSource{lots: []Lot{
		{ID: "L1", Name: "Omeprazol", Stock: 28, Kind: KindPharmaceutical, Controlled: true,
			Packaging:  units.Packaging{UnitsPerBlister: 14, BlistersPerBox: 2},
			Prices:     Prices{Tablet: price("0.80"), Blister: price("10.5"), Box: price("20")},
			Expiration: date(2026, 2, 1)},
		{ID: "L2", Name: "Omeprazol", Stock: 3, Kind: KindPharmaceutical,
			Packaging: units.Packaging{UnitsPerBlister: 1, BlistersPerBox: 1},
			Prices:    Prices{Tablet: price("0.9"), Blister: price("0"), Box: price("0")}},
	}}
	cache := newTestSnapshot(t, src)
	ctx := context.Background()

	first, err := cache.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	second, err := cache.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
	require.Len(t, second, 2)
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
		require.Equal(t, first[i].Stock, second[i].Stock)
		require.Equal(t, first[i].Packaging, second[i].Packaging)
		require.True(t, first[i].Expiration.Equal(second[i].Expiration))
		require.True(t, first[i].Prices.Blister.Equal(second[i].Prices.Blister))
		require.Equal(t, first[i].Controlled, second[i].Controlled)
	}
	require.False(t, second[1].HasExpiration())

	require.NoError(t, cache.Bump(ctx))
	_, err = cache.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestSnapshotCachePropagatesSourceError(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	cache := newTestSnapshot(t, src)
	_, err := cache.LoadAll(context.Background())
	require.Error(t, err)
}

func TestSnapshotCacheWithoutRedis(t *testing.T) {
	src := &countingSource{lots: []Lot{{ID: "x", Name: "x", Stock: 1}}}
	cache := NewSnapshotCache(src, nil, time.Minute, nil)
	_, err := cache.LoadAll(context.Background())
	require.NoError(t, err)
	_, err = cache.LoadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
	require.NoError(t, cache.Bump(context.Background()))
}
