package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

const (
	snapshotVersionKey = "inventory:snapshot:version"
	snapshotKeyPrefix  = "inventory:snapshot"
)

// SnapshotCache is a Source decorator keeping the last lot snapshot in Redis.
// Bump invalidates it after stock is written back.
type SnapshotCache struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewSnapshotCache wraps source. A nil client disables caching.
func NewSnapshotCache(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{source: source, client: client, ttl: ttl, logger: logger}
}

type snapshotLot struct {
	ID              string `msgpack:"id"`
	Name            string `msgpack:"name"`
	Stock           int    `msgpack:"stock"`
	UnitsPerBlister int    `msgpack:"upb"`
	BlistersPerBox  int    `msgpack:"bpb"`
	ExpirationMs    int64  `msgpack:"exp,omitempty"`
	PriceTablet     string `msgpack:"pt"`
	PriceBlister    string `msgpack:"pbl"`
	PriceBox        string `msgpack:"pbx"`
	Controlled      bool   `msgpack:"ctl,omitempty"`
	Kind            string `msgpack:"kind"`
}

// LoadAll returns the cached snapshot or loads and stores a fresh one.
func (c *SnapshotCache) LoadAll(ctx context.Context) ([]Lot, error) {
	if c.client == nil {
		return c.source.LoadAll(ctx)
	}
	key, err := c.key(ctx)
	if err != nil {
		c.logger.Warn("inventory snapshot version", slog.Any("error", err))
		return c.source.LoadAll(ctx)
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Lot), nil
}

func (c *SnapshotCache) fetch(ctx context.Context, key string) ([]Lot, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		lots, decodeErr := decodeSnapshot(payload)
		if decodeErr == nil {
			return lots, nil
		}
		c.logger.Warn("inventory snapshot decode", slog.Any("error", decodeErr))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("inventory snapshot get", slog.Any("error", err))
	}
	lots, err := c.source.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := encodeSnapshot(lots)
	if err != nil {
		return nil, fmt.Errorf("inventory: encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("inventory snapshot set", slog.Any("error", err))
	}
	return lots, nil
}

// Bump invalidates the cached snapshot by moving to a new version.
func (c *SnapshotCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, snapshotVersionKey).Err()
}

func (c *SnapshotCache) key(ctx context.Context) (string, error) {
	ver, err := c.client.Get(ctx, snapshotVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 1
		if err := c.client.SetNX(ctx, snapshotVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return snapshotKeyPrefix + ":" + strconv.FormatInt(ver, 10), nil
}

func encodeSnapshot(lots []Lot) ([]byte, error) {
	out := make([]snapshotLot, 0, len(lots))
	for _, lot := range lots {
		s := snapshotLot{
			ID:              lot.ID,
			Name:            lot.Name,
			Stock:           lot.Stock,
			UnitsPerBlister: lot.Packaging.UnitsPerBlister,
			BlistersPerBox:  lot.Packaging.BlistersPerBox,
			PriceTablet:     lot.Prices.Tablet.String(),
			PriceBlister:    lot.Prices.Blister.String(),
			PriceBox:        lot.Prices.Box.String(),
			Controlled:      lot.Controlled,
			Kind:            string(lot.Kind),
		}
		if lot.HasExpiration() {
			s.ExpirationMs = lot.Expiration.UnixMilli()
		}
		out = append(out, s)
	}
	return msgpack.Marshal(out)
}

func decodeSnapshot(payload []byte) ([]Lot, error) {
	var in []snapshotLot
	if err := msgpack.Unmarshal(payload, &in); err != nil {
		return nil, err
	}
	lots := make([]Lot, 0, len(in))
	for _, s := range in {
		lot := Lot{
			ID:         s.ID,
			Name:       s.Name,
			Stock:      s.Stock,
			Packaging:  units.Packaging{UnitsPerBlister: s.UnitsPerBlister, BlistersPerBox: s.BlistersPerBox},
			Controlled: s.Controlled,
			Kind:       ProductKind(s.Kind),
		}
		var err error
		if lot.Prices.Tablet, err = decimal.NewFromString(s.PriceTablet); err != nil {
			return nil, err
		}
		if lot.Prices.Blister, err = decimal.NewFromString(s.PriceBlister); err != nil {
			return nil, err
		}
		if lot.Prices.Box, err = decimal.NewFromString(s.PriceBox); err != nil {
			return nil, err
		}
		if s.ExpirationMs != 0 {
			lot.Expiration = time.UnixMilli(s.ExpirationMs).UTC()
		}
		lots = append(lots, lot)
	}
	return lots, nil
}
