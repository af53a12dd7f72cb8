package interco

import (
	"context"
	"errors"

	"github.com/odyssey-erp/interco/internal/accounting/shared"
)

// PartnerLookup resolves the interco partner entity configured on a subsidiary.
type PartnerLookup interface {
	InterEntityPartner(ctx context.Context, subsidiaryID ID) (ID, error)
}

// PeriodSelector validates a requested posting period against the open set.
type PeriodSelector interface {
	SelectOpenPeriod(ctx context.Context, requested int64) (int64, error)
}

// Lookup answers the reference questions the posting builder depends on.
type Lookup struct {
	partners PartnerLookup
	periods  PeriodSelector
}

// NewLookup wires the partner and period sources.
func NewLookup(partners PartnerLookup, periods PeriodSelector) *Lookup {
	return &Lookup{partners: partners, periods: periods}
}

// ResolveInterEntityPartner returns the subsidiary's interco partner, or an
// absent id when none is configured. Store failures are returned as errors.
func (l *Lookup) ResolveInterEntityPartner(ctx context.Context, subsidiaryID ID) (ID, error) {
	if !subsidiaryID.Valid() || l == nil || l.partners == nil {
		return 0, nil
	}
	partner, err := l.partners.InterEntityPartner(ctx, subsidiaryID)
	if err != nil {
		if errors.Is(err, shared.ErrSubsidiaryNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if !partner.Valid() {
		return 0, nil
	}
	return partner, nil
}

// SelectOpenPeriod returns requested when it is open, otherwise an absent id.
func (l *Lookup) SelectOpenPeriod(ctx context.Context, requested ID) (ID, error) {
	if !requested.Valid() || l == nil || l.periods == nil {
		return 0, nil
	}
	id, err := l.periods.SelectOpenPeriod(ctx, requested.Int64())
	if err != nil {
		return 0, err
	}
	return ID(id), nil
}

// partnerCache memoises partner lookups for a single build.
type partnerCache struct {
	lookup *Lookup
	seen   map[ID]ID
}

func (l *Lookup) newPartnerCache() *partnerCache {
	return &partnerCache{lookup: l, seen: make(map[ID]ID)}
}

func (c *partnerCache) resolve(ctx context.Context, subsidiaryID ID) (ID, error) {
	if partner, ok := c.seen[subsidiaryID]; ok {
		return partner, nil
	}
	partner, err := c.lookup.ResolveInterEntityPartner(ctx, subsidiaryID)
	if err != nil {
		return 0, err
	}
	c.seen[subsidiaryID] = partner
	return partner, nil
}
