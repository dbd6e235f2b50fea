package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Source loads every inventory lot.
type Source interface {
	LoadAll(ctx context.Context) ([]Lot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Lot, error)

// LoadAll calls f.
func (f SourceFunc) LoadAll(ctx context.Context) ([]Lot, error) {
	return f(ctx)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	PricePolicy  PricePolicy
	ExpiryWindow time.Duration
	Now          func() time.Time
}

// Service builds inventory snapshots and reports from a Source.
type Service struct {
	source Source
	logger *slog.Logger
	policy PricePolicy
	window time.Duration
	now    func() time.Time
}

// NewService builds Service.
func NewService(source Source, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.PricePolicy == nil {
		cfg.PricePolicy = LastSeenPrice
	}
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = 90 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger, policy: cfg.PricePolicy, window: cfg.ExpiryWindow, now: cfg.Now}
}

// Load reads the source and builds a fresh Cache.
func (s *Service) Load(ctx context.Context) (*Cache, error) {
	lots, err := s.loadLots(ctx)
	if err != nil {
		return nil, err
	}
	cache := NewCache(lots, s.policy, s.now().UTC())
	s.logger.Info("inventory loaded", slog.Int("lots", len(lots)), slog.Int("products", len(cache.Products())))
	return cache, nil
}

// ExpiryWindow returns the default window used by Expiring.
func (s *Service) ExpiryWindow() time.Duration {
	return s.window
}

// Expiring reports lots expiring within window; a non-positive window uses
// the configured default.
func (s *Service) Expiring(ctx context.Context, window time.Duration) ([]ExpiryEntry, error) {
	if window <= 0 {
		window = s.window
	}
	lots, err := s.loadLots(ctx)
	if err != nil {
		return nil, err
	}
	return ExpiringLots(lots, s.now(), window), nil
}

func (s *Service) loadLots(ctx context.Context) ([]Lot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrSourceUnavailable)
	}
	lots, err := s.source.LoadAll(ctx)
	if err != nil {
		s.logger.Error("inventory load failed", slog.Any("error", err))
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return lots, nil
}
