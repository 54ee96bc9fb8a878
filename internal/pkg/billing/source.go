package billing

import (
	"context"
	"time"
)

// EntitlementSource is the authoritative vendor for subscriber entitlements.
type EntitlementSource interface {
	Fetch(ctx context.Context, externalID string) (*Subscriber, error)
}

// Subscriber is the vendor's current view of one external identity.
type Subscriber struct {
	OriginalID   string
	Aliases      []string
	Entitlements []Entitlement
}

// Entitlement is one vendor entitlement joined with its backing subscription.
type Entitlement struct {
	Identifier           string
	ProductID            string
	ExpiresAt            *time.Time
	PurchaseDate         *time.Time
	OriginalPurchaseDate *time.Time
	PeriodType           string
	Store                string
	IsSandbox            bool
	IsCanceled           bool
	WillRenew            bool
}

// ActiveAt reports whether the entitlement grants access at asOf. Entitlements
// without an expiration (lifetime purchases) are always active.
func (e Entitlement) ActiveAt(asOf time.Time) bool {
	return e.ExpiresAt == nil || asOf.Before(*e.ExpiresAt)
}

// pickEntitlement chooses the entitlement that drives the ledger: the active
// one with the latest expiration, else the most recently expired one.
func pickEntitlement(ents []Entitlement, asOf time.Time) (Entitlement, bool, bool) {
	var (
		best      Entitlement
		found     bool
		bestAlive bool
	)
	for _, e := range ents {
		alive := e.ActiveAt(asOf)
		switch {
		case !found:
		case alive && !bestAlive:
		case alive == bestAlive && laterExpiry(e.ExpiresAt, best.ExpiresAt):
		default:
			continue
		}
		best, found, bestAlive = e, true, alive
	}
	return best, found, bestAlive
}

// laterExpiry orders expirations with nil (never expires) last.
func laterExpiry(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return a.After(*b)
	}
}
