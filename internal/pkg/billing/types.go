package billing

import (
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
)

// SnapshotView is the vendor snapshot as returned to callers: booleans default
// to false, everything else to null.
type SnapshotView struct {
	IsCanceled           bool       `json:"is_canceled"`
	ExpirationDate       *time.Time `json:"expiration_date"`
	ProductIdentifier    *string    `json:"product_identifier"`
	PeriodType           *string    `json:"period_type"`
	LatestPurchaseDate   *time.Time `json:"latest_purchase_date"`
	OriginalPurchaseDate *time.Time `json:"original_purchase_date"`
	Store                *string    `json:"store"`
	IsSandbox            bool       `json:"is_sandbox"`
	WillRenew            bool       `json:"will_renew"`
}

func newSnapshotView(s models.VendorSnapshot) SnapshotView {
	return SnapshotView{
		IsCanceled:           boolValue(s.IsCanceled),
		ExpirationDate:       s.ExpirationDate,
		ProductIdentifier:    s.ProductIdentifier,
		PeriodType:           s.PeriodType,
		LatestPurchaseDate:   s.LatestPurchaseDate,
		OriginalPurchaseDate: s.OriginalPurchaseDate,
		Store:                s.Store,
		IsSandbox:            boolValue(s.IsSandbox),
		WillRenew:            boolValue(s.WillRenew),
	}
}

// CanonicalStatus is the verified subscription view of one account.
type CanonicalStatus struct {
	AccountID      string           `json:"account_id"`
	ExternalID     *string          `json:"external_id"`
	ProductID      *string          `json:"product_id"`
	IsSubscribed   bool             `json:"is_subscribed"`
	PlanLevel      models.PlanLevel `json:"plan_level"`
	ExpirationDate *time.Time       `json:"expiration_date"`
	ValidFlag      bool             `json:"valid_flag"`
	FromCache      bool             `json:"from_cache"`
	VendorSnapshot SnapshotView     `json:"vendor_snapshot"`
}

// EventKind is a normalized vendor lifecycle event type.
type EventKind string

const (
	EventInitialPurchase EventKind = "initial_purchase"
	EventRenewal         EventKind = "renewal"
	EventProductChange   EventKind = "product_change"
	EventTrialStarted    EventKind = "trial_started"
	EventCancellation    EventKind = "cancellation"
	EventExpiration      EventKind = "expiration"
	EventBillingIssue    EventKind = "billing_issue"
)

// WebhookEvent is the normalized input of the webhook processor.
type WebhookEvent struct {
	ID             string
	Kind           EventKind
	ExternalID     string
	Aliases        []string
	ProductID      string
	ExpirationAt   *time.Time
	PurchasedAt    *time.Time
	TransactionID  string
	Price          *float64
	Currency       string
	PeriodType     string
	Store          string
	Environment    string
	EventTimestamp *time.Time
}

// IngestResult reports the outcome of a webhook ingestion. A failed result is
// not an error: the webhook ingress still acknowledges the delivery.
type IngestResult struct {
	Success      bool             `json:"success"`
	Reason       string           `json:"reason,omitempty"`
	AccountID    string           `json:"account_id,omitempty"`
	Applied      bool             `json:"applied"`
	IsSubscribed bool             `json:"is_subscribed"`
	PlanLevel    models.PlanLevel `json:"plan_level,omitempty"`
}

// BindInfo carries the identity and purchase details reported by a client
// when registering a subscription.
type BindInfo struct {
	ExternalID     string
	ProductID      string
	IsSubscribed   *bool
	ExpirationDate *time.Time
	Snapshot       models.VendorSnapshot
	TransactionID  string
	Price          *float64
	Currency       string
}

// BindResult is the ledger state after a successful bind.
type BindResult struct {
	AccountID      string           `json:"account_id"`
	ExternalID     string           `json:"external_id"`
	Aliases        []string         `json:"aliases"`
	IsSubscribed   bool             `json:"is_subscribed"`
	PlanLevel      models.PlanLevel `json:"plan_level"`
	VendorSnapshot SnapshotView     `json:"vendor_snapshot"`
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
