// Package billing holds the catalog of purchasable credit packs.
package billing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prepwise/creditcore/internal/config"
)

// ErrUnknownPack is returned for pack ids absent from the catalog.
var ErrUnknownPack = errors.New("unknown pack")

// Pack is one purchasable bundle of credits.
type Pack struct {
	ID         string `json:"id"`
	Credits    int64  `json:"credits"`
	PriceMinor int64  `json:"price_minor"`
	Currency   string `json:"currency"`
}

// Catalog is an immutable set of packs keyed by id.
type Catalog struct {
	packs map[string]Pack
	order []string
}

// NewCatalog builds a catalog from configured packs.
func NewCatalog(packs []config.PackConfig) (*Catalog, error) {
	c := &Catalog{packs: make(map[string]Pack, len(packs))}
	for _, p := range packs {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("billing: pack id is required")
		}
		if _, dup := c.packs[id]; dup {
			return nil, fmt.Errorf("billing: duplicate pack %q", id)
		}
		if p.Credits <= 0 {
			return nil, fmt.Errorf("billing: pack %q must grant positive credits", id)
		}
		if p.PriceMinor < 0 {
			return nil, fmt.Errorf("billing: pack %q has a negative price", id)
		}
		currency := NormalizeCurrency(p.Currency)
		if currency == "" {
			return nil, fmt.Errorf("billing: pack %q requires a currency", id)
		}
		c.packs[id] = Pack{ID: id, Credits: p.Credits, PriceMinor: p.PriceMinor, Currency: currency}
		c.order = append(c.order, id)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.packs[c.order[i]].Credits < c.packs[c.order[j]].Credits
	})
	return c, nil
}

// Lookup returns the pack with id.
func (c *Catalog) Lookup(id string) (Pack, error) {
	if c == nil {
		return Pack{}, ErrUnknownPack
	}
	p, ok := c.packs[strings.TrimSpace(id)]
	if !ok {
		return Pack{}, fmt.Errorf("%w: %s", ErrUnknownPack, id)
	}
	return p, nil
}

// List returns packs ordered by credits ascending.
func (c *Catalog) List() []Pack {
	if c == nil {
		return nil
	}
	out := make([]Pack, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.packs[id])
	}
	return out
}

// NormalizeCurrency lower-cases an ISO currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}
