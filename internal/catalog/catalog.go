// Package catalog caches the out-of-band pushes that sit beside a match
// view: purchasable upgrades, modifiers and pieces, plus the card game's
// blind schedule. Entries are replaced wholesale, never merged.
package catalog

import (
	"sync"
	"time"

	"github.com/DoyleJ11/matchsync/internal/protocol"
)

type Blinds struct {
	Level  int                   `json:"level"`
	Amount protocol.BlindAmounts `json:"amounts"`
}

type Snapshot struct {
	Upgrades  []protocol.Upgrade          `json:"upgrades"`
	Modifiers []protocol.Modifier         `json:"modifiers"`
	Pieces    []protocol.PurchasablePiece `json:"pieces"`
	Blinds    *Blinds                     `json:"blinds,omitempty"`
	Stale     bool                        `json:"stale"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

type Cache struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func New() *Cache {
	return &Cache{now: time.Now}
}

// Apply stores a catalog push. It reports whether ev was a catalog event.
func (c *Cache) Apply(ev protocol.Inbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := ev.(type) {
	case protocol.AvailableUpgrades:
		c.snap.Upgrades = e.Upgrades
	case protocol.AvailableModifiers:
		c.snap.Modifiers = e.Modifiers
	case protocol.PurchasablePieces:
		c.snap.Pieces = e.Pieces
	case protocol.BlindLevelChanged:
		c.snap.Blinds = &Blinds{Level: e.BlindLevel, Amount: e.BlindAmounts}
		c.snap.UpdatedAt = c.now()
		return true
	default:
		return false
	}
	c.snap.Stale = false
	c.snap.UpdatedAt = c.now()
	return true
}

// Invalidate marks the affordability data stale until the next push.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap.Stale = true
	c.mu.Unlock()
}

func (c *Cache) Reset() {
	c.mu.Lock()
	c.snap = Snapshot{}
	c.mu.Unlock()
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.snap
	out.Upgrades = append([]protocol.Upgrade(nil), c.snap.Upgrades...)
	out.Modifiers = append([]protocol.Modifier(nil), c.snap.Modifiers...)
	out.Pieces = append([]protocol.PurchasablePiece(nil), c.snap.Pieces...)
	if c.snap.Blinds != nil {
		b := *c.snap.Blinds
		out.Blinds = &b
	}
	return out
}

// Cost looks up the advertised price of a purchasable item.
func (s Snapshot) Cost(kind, id string) (int, bool) {
	switch kind {
	case "upgrade":
		for _, u := range s.Upgrades {
			if u.ID == id {
				return u.Cost, true
			}
		}
	case "modifier":
		for _, m := range s.Modifiers {
			if m.ID == id {
				return m.Cost, true
			}
		}
	case "piece":
		for _, p := range s.Pieces {
			if p.Type == id {
				return p.Cost, true
			}
		}
	}
	return 0, false
}
