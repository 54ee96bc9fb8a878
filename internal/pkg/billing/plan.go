package billing

import (
	"strings"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/entitlements"
)

type transition int

const (
	transitionNone transition = iota
	transitionActivate
	transitionDeactivate
)

// NormalizeEventKind lower-cases vendor event types ("RENEWAL" -> "renewal").
func NormalizeEventKind(kind string) EventKind {
	return EventKind(strings.ToLower(strings.TrimSpace(kind)))
}

func transitionFor(kind EventKind) transition {
	switch kind {
	case EventInitialPurchase, EventRenewal, EventProductChange, EventTrialStarted:
		return transitionActivate
	case EventCancellation, EventExpiration, EventBillingIssue:
		return transitionDeactivate
	default:
		return transitionNone
	}
}

// metricKind bounds the kind label: vendor types outside the transition
// table are counted as "other".
func metricKind(kind EventKind) string {
	if transitionFor(kind) == transitionNone {
		return "other"
	}
	return string(kind)
}

func planFor(productID string) models.PlanLevel {
	return entitlements.ClassifyProduct(productID)
}
