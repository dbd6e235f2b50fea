package inventory

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Cache is the in-memory inventory snapshot owned by one sale session.
// Reloading builds a new Cache; nothing is shared between snapshots.
type Cache struct {
	products map[string]*Product
	loadedAt time.Time
}

// NewCache groups lots into products using policy (nil means LastSeenPrice).
func NewCache(lots []Lot, policy PricePolicy, loadedAt time.Time) *Cache {
	return &Cache{products: GroupLots(lots, policy), loadedAt: loadedAt}
}

// LoadedAt reports when the snapshot was read from the source.
func (c *Cache) LoadedAt() time.Time {
	return c.loadedAt
}

// Product finds a product by name; matching is case and whitespace insensitive.
func (c *Cache) Product(name string) (*Product, error) {
	if c == nil {
		return nil, ErrProductNotFound
	}
	p, ok := c.products[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProductNotFound, name)
	}
	return p, nil
}

// Products returns all products ordered by key.
func (c *Cache) Products() []*Product {
	if c == nil {
		return nil
	}
	out := make([]*Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lots flattens the lots of every product.
func (c *Cache) Lots() []Lot {
	var lots []Lot
	for _, p := range c.Products() {
		lots = append(lots, p.Lots()...)
	}
	return lots
}

// CheckConsistency verifies the stock invariant of every product.
func (c *Cache) CheckConsistency() error {
	var errs []error
	for _, p := range c.Products() {
		if err := p.CheckConsistency(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
