package models

import (
	"strings"
	"time"
)

// PlanLevel is the coarse subscription tier stored on a ledger.
type PlanLevel string

const (
	PlanNone    PlanLevel = "none"
	PlanTrial   PlanLevel = "trial"
	PlanWeekly  PlanLevel = "weekly"
	PlanMonthly PlanLevel = "monthly"
	PlanAnnual  PlanLevel = "annual"
)

// Valid reports whether p is one of the known plan levels.
func (p PlanLevel) Valid() bool {
	switch p {
	case PlanNone, PlanTrial, PlanWeekly, PlanMonthly, PlanAnnual:
		return true
	default:
		return false
	}
}

// OrNone maps the empty/unknown value to PlanNone.
func (p PlanLevel) OrNone() PlanLevel {
	if !p.Valid() {
		return PlanNone
	}
	return p
}

// LedgerField names a persisted ledger column. Merge-updates list the fields
// they write so concurrent writers only overwrite what they touched.
type LedgerField string

const (
	FieldExternalID     LedgerField = "sub_external_id"
	FieldAliases        LedgerField = "sub_aliases"
	FieldProductID      LedgerField = "sub_product_id"
	FieldPlanLevel      LedgerField = "sub_plan_level"
	FieldIsSubscribed   LedgerField = "sub_is_subscribed"
	FieldExpirationDate LedgerField = "sub_expiration_date"
	FieldLastVerifiedAt LedgerField = "sub_last_verified_at"
	FieldValidFlag      LedgerField = "sub_valid_flag"
	FieldTransactionID  LedgerField = "sub_transaction_id"
	FieldPrice          LedgerField = "sub_price"
	FieldCurrency       LedgerField = "sub_currency"

	FieldSnapshotIsCanceled           LedgerField = "sub_vendor_is_canceled"
	FieldSnapshotExpirationDate       LedgerField = "sub_vendor_expiration_date"
	FieldSnapshotProductIdentifier    LedgerField = "sub_vendor_product_identifier"
	FieldSnapshotPeriodType           LedgerField = "sub_vendor_period_type"
	FieldSnapshotLatestPurchaseDate   LedgerField = "sub_vendor_latest_purchase_date"
	FieldSnapshotOriginalPurchaseDate LedgerField = "sub_vendor_original_purchase_date"
	FieldSnapshotStore                LedgerField = "sub_vendor_store"
	FieldSnapshotIsSandbox            LedgerField = "sub_vendor_is_sandbox"
	FieldSnapshotWillRenew            LedgerField = "sub_vendor_will_renew"
)

// LedgerFields lists every persisted ledger column outside the snapshot.
var LedgerFields = []LedgerField{
	FieldExternalID,
	FieldAliases,
	FieldProductID,
	FieldPlanLevel,
	FieldIsSubscribed,
	FieldExpirationDate,
	FieldLastVerifiedAt,
	FieldValidFlag,
	FieldTransactionID,
	FieldPrice,
	FieldCurrency,
}

// SnapshotFields lists every vendor snapshot column.
var SnapshotFields = []LedgerField{
	FieldSnapshotIsCanceled,
	FieldSnapshotExpirationDate,
	FieldSnapshotProductIdentifier,
	FieldSnapshotPeriodType,
	FieldSnapshotLatestPurchaseDate,
	FieldSnapshotOriginalPurchaseDate,
	FieldSnapshotStore,
	FieldSnapshotIsSandbox,
	FieldSnapshotWillRenew,
}

// VendorSnapshot is the last entitlement record received from the
// subscription vendor. Every field is independently nullable.
type VendorSnapshot struct {
	IsCanceled           *bool      `gorm:"default:null" json:"is_canceled,omitempty"`
	ExpirationDate       *time.Time `gorm:"type:datetime(3);default:null" json:"expiration_date,omitempty"`
	ProductIdentifier    *string    `gorm:"type:varchar(191);default:null" json:"product_identifier,omitempty"`
	PeriodType           *string    `gorm:"type:varchar(32);default:null" json:"period_type,omitempty"`
	LatestPurchaseDate   *time.Time `gorm:"type:datetime(3);default:null" json:"latest_purchase_date,omitempty"`
	OriginalPurchaseDate *time.Time `gorm:"type:datetime(3);default:null" json:"original_purchase_date,omitempty"`
	Store                *string    `gorm:"type:varchar(32);default:null" json:"store,omitempty"`
	IsSandbox            *bool      `gorm:"default:null" json:"is_sandbox,omitempty"`
	WillRenew            *bool      `gorm:"default:null" json:"will_renew,omitempty"`
}

// SubscriptionLedger is the per-account subscription state. It only exists
// embedded in an Account row.
type SubscriptionLedger struct {
	ExternalID     *string        `gorm:"type:varchar(191);default:null;index" json:"external_id,omitempty"`
	Aliases        []string       `gorm:"serializer:json;type:json" json:"aliases"`
	ProductID      *string        `gorm:"type:varchar(191);default:null" json:"product_id,omitempty"`
	PlanLevel      PlanLevel      `gorm:"type:varchar(16);not null;default:'none'" json:"plan_level"`
	IsSubscribed   bool           `gorm:"not null;default:false" json:"is_subscribed"`
	ExpirationDate *time.Time     `gorm:"type:datetime(3);default:null" json:"expiration_date,omitempty"`
	LastVerifiedAt *time.Time     `gorm:"type:datetime(3);default:null" json:"last_verified_at,omitempty"`
	ValidFlag      bool           `gorm:"not null;default:false" json:"valid_flag"`
	TransactionID  *string        `gorm:"type:varchar(191);default:null" json:"transaction_id,omitempty"`
	Price          *float64       `gorm:"default:null" json:"price,omitempty"`
	Currency       *string        `gorm:"type:varchar(8);default:null" json:"currency,omitempty"`
	VendorSnapshot VendorSnapshot `gorm:"embedded;embeddedPrefix:vendor_" json:"vendor_snapshot"`
}

// BoundID returns the bound external identity, or "" when unbound.
func (l *SubscriptionLedger) BoundID() string {
	if l.ExternalID == nil {
		return ""
	}
	return strings.TrimSpace(*l.ExternalID)
}

// IsBound reports whether a vendor identity has been bound to the ledger.
func (l *SubscriptionLedger) IsBound() bool {
	return l.BoundID() != ""
}

// HasIdentity reports whether id is the bound identity or a known alias.
func (l *SubscriptionLedger) HasIdentity(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if l.BoundID() == id {
		return true
	}
	for _, a := range l.Aliases {
		if a == id {
			return true
		}
	}
	return false
}

// AddAlias appends id to the alias set unless it is already present.
// Returns true when the set grew.
func (l *SubscriptionLedger) AddAlias(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for _, a := range l.Aliases {
		if a == id {
			return false
		}
	}
	l.Aliases = append(l.Aliases, id)
	return true
}

// IsValidAt computes the derived validity flag: asOf strictly before the
// expiration date. No expiration date means not valid.
func IsValidAt(expiration *time.Time, asOf time.Time) bool {
	if expiration == nil {
		return false
	}
	return asOf.Before(*expiration)
}
