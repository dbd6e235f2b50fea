package inventory

import (
	"sort"
	"time"

	"github.com/odyssey-erp/pharmapos/internal/units"
)

// ExpiryEntry is one lot in the expiration report.
type ExpiryEntry struct {
	LotID      string          `json:"lot_id"`
	Name       string          `json:"name"`
	Expiration time.Time       `json:"expiration"`
	DaysLeft   int             `json:"days_left"`
	Expired    bool            `json:"expired"`
	Stock      int             `json:"stock"`
	Breakdown  units.Breakdown `json:"breakdown"`
	Controlled bool            `json:"controlled"`
}

// ExpiringLots lists lots with stock that expire on or before asOf+window,
// soonest first. Lots without expiration are never reported.
func ExpiringLots(lots []Lot, asOf time.Time, window time.Duration) []ExpiryEntry {
	today := truncateDay(asOf)
	limit := today.Add(window)
	entries := []ExpiryEntry{}
	for _, lot := range lots {
		if lot.Stock <= 0 || !lot.HasExpiration() {
			continue
		}
		exp := truncateDay(lot.Expiration)
		if exp.After(limit) {
			continue
		}
		days := int(exp.Sub(today).Hours() / 24)
		entries = append(entries, ExpiryEntry{
			LotID:      lot.ID,
			Name:       lot.Name,
			Expiration: exp,
			DaysLeft:   days,
			Expired:    days < 0,
			Stock:      lot.Stock,
			Breakdown:  units.ToPhysical(lot.Stock, lot.Packaging),
			Controlled: lot.Controlled,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Expiration.Equal(entries[j].Expiration) {
			return entries[i].Expiration.Before(entries[j].Expiration)
		}
		return entries[i].LotID < entries[j].LotID
	})
	return entries
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
