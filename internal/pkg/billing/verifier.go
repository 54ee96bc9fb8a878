package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/app/repository"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	DefaultFreshnessWindow = time.Hour
	DefaultFetchTimeout    = 10 * time.Second
)

// VerifierConfig tunes the verification policy.
type VerifierConfig struct {
	FreshnessWindow time.Duration
	FetchTimeout    time.Duration
}

// Verifier serves subscription status reads, re-verifying against the
// entitlement source when the cached ledger is older than the freshness window.
type Verifier struct {
	accounts repository.AccountRepository
	source   EntitlementSource
	cfg      VerifierConfig
	metrics  *metrics.Recorder
	now      func() time.Time
}

func NewVerifier(accounts repository.AccountRepository, source EntitlementSource, cfg VerifierConfig, rec *metrics.Recorder) *Verifier {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Verifier{
		accounts: accounts,
		source:   source,
		cfg:      cfg,
		metrics:  rec,
		now:      time.Now,
	}
}

// Verify returns the canonical subscription status of accountID evaluated at
// asOf. A zero asOf means the current time.
func (v *Verifier) Verify(ctx context.Context, accountID string, asOf time.Time) (*CanonicalStatus, error) {
	return v.verify(ctx, accountID, asOf, false)
}

// Refresh is Verify without the freshness window: a bound ledger is always
// re-read from the entitlement source. Unbound ledgers answer as in Verify.
func (v *Verifier) Refresh(ctx context.Context, accountID string, asOf time.Time) (*CanonicalStatus, error) {
	return v.verify(ctx, accountID, asOf, true)
}

func (v *Verifier) verify(ctx context.Context, accountID string, asOf time.Time, force bool) (*CanonicalStatus, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidArgument)
	}
	now := v.now().UTC()
	if asOf.IsZero() {
		asOf = now
	}

	account, err := v.accounts.GetByID(ctx, id)
	if err != nil {
		v.metrics.Verify(metrics.PathError)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: load account %s: %v", ErrInternal, id, err)
	}
	ledger := account.Ledger

	if !ledger.IsBound() {
		if ledger.VendorSnapshot.ExpirationDate != nil {
			v.metrics.Verify(metrics.PathLegacy)
			return v.legacyStatus(account, asOf), nil
		}
		v.metrics.Verify(metrics.PathUnbound)
		return &CanonicalStatus{
			AccountID:      account.ID,
			IsSubscribed:   false,
			PlanLevel:      models.PlanNone,
			ValidFlag:      false,
			VendorSnapshot: newSnapshotView(ledger.VendorSnapshot),
		}, nil
	}

	if !force && ledger.LastVerifiedAt != nil && now.Sub(*ledger.LastVerifiedAt) < v.cfg.FreshnessWindow {
		ledger.ValidFlag = models.IsValidAt(ledger.ExpirationDate, asOf)
		if err := v.accounts.UpdateLedger(ctx, account.ID, ledger, models.FieldValidFlag); err != nil {
			v.metrics.Verify(metrics.PathError)
			return nil, persistError("valid flag", account.ID, err)
		}
		v.metrics.Verify(metrics.PathCache)
		status := statusFromLedger(account.ID, ledger)
		status.FromCache = true
		return status, nil
	}

	return v.refresh(ctx, account.ID, ledger, asOf, now)
}

// legacyStatus answers for ledgers that carry a vendor expiration from before
// identities were bound. The vendor is never contacted for these.
func (v *Verifier) legacyStatus(account *models.Account, asOf time.Time) *CanonicalStatus {
	ledger := account.Ledger
	status := statusFromLedger(account.ID, ledger)
	status.ValidFlag = models.IsValidAt(ledger.VendorSnapshot.ExpirationDate, asOf)
	if status.ExpirationDate == nil {
		status.ExpirationDate = ledger.VendorSnapshot.ExpirationDate
	}
	return status
}

func (v *Verifier) refresh(ctx context.Context, accountID string, ledger models.SubscriptionLedger, asOf, now time.Time) (*CanonicalStatus, error) {
	externalID := ledger.BoundID()

	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()

	started := time.Now()
	sub, err := v.source.Fetch(fetchCtx, externalID)
	v.metrics.VendorFetch(started, err)
	if err != nil {
		v.metrics.Verify(metrics.PathError)
		log.Errorf("[Billing] Entitlement fetch for account %s (%s) failed: %v", accountID, externalID, err)
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if sub == nil {
		v.metrics.Verify(metrics.PathError)
		return nil, fmt.Errorf("%w: empty subscriber response", ErrServiceUnavailable)
	}

	applySubscriber(&ledger, sub, asOf)
	verifiedAt := now
	ledger.LastVerifiedAt = &verifiedAt

	fields := append([]models.LedgerField{
		models.FieldProductID,
		models.FieldPlanLevel,
		models.FieldIsSubscribed,
		models.FieldExpirationDate,
		models.FieldValidFlag,
		models.FieldLastVerifiedAt,
	}, models.SnapshotFields...)
	if err := v.accounts.UpdateLedger(ctx, accountID, ledger, fields...); err != nil {
		v.metrics.Verify(metrics.PathError)
		return nil, persistError("refreshed ledger", accountID, err)
	}

	v.metrics.Verify(metrics.PathRefresh)
	log.Infof("[Billing] Refreshed account %s from entitlement source: subscribed=%t plan=%s", accountID, ledger.IsSubscribed, ledger.PlanLevel)
	status := statusFromLedger(accountID, ledger)
	status.FromCache = false
	return status, nil
}

// applySubscriber recomputes the vendor-derived ledger fields from a fetched
// subscriber. Aliases are left untouched.
func applySubscriber(ledger *models.SubscriptionLedger, sub *Subscriber, asOf time.Time) {
	ent, found, active := pickEntitlement(sub.Entitlements, asOf)
	if !found {
		ledger.IsSubscribed = false
		ledger.PlanLevel = models.PlanNone
		ledger.ExpirationDate = nil
		ledger.ValidFlag = false
		ledger.VendorSnapshot = models.VendorSnapshot{}
		return
	}

	ledger.ProductID = stringPtr(ent.ProductID)
	ledger.ExpirationDate = ent.ExpiresAt
	ledger.IsSubscribed = active
	ledger.PlanLevel = models.PlanNone
	if active {
		ledger.PlanLevel = planFor(ent.ProductID)
	}
	ledger.ValidFlag = models.IsValidAt(ent.ExpiresAt, asOf)
	ledger.VendorSnapshot = models.VendorSnapshot{
		IsCanceled:           boolPtr(ent.IsCanceled),
		ExpirationDate:       ent.ExpiresAt,
		ProductIdentifier:    stringPtr(ent.ProductID),
		PeriodType:           stringPtr(ent.PeriodType),
		LatestPurchaseDate:   ent.PurchaseDate,
		OriginalPurchaseDate: ent.OriginalPurchaseDate,
		Store:                stringPtr(ent.Store),
		IsSandbox:            boolPtr(ent.IsSandbox),
		WillRenew:            boolPtr(ent.WillRenew),
	}
}

func statusFromLedger(accountID string, ledger models.SubscriptionLedger) *CanonicalStatus {
	return &CanonicalStatus{
		AccountID:      accountID,
		ExternalID:     ledger.ExternalID,
		ProductID:      ledger.ProductID,
		IsSubscribed:   ledger.IsSubscribed,
		PlanLevel:      ledger.PlanLevel.OrNone(),
		ExpirationDate: ledger.ExpirationDate,
		ValidFlag:      ledger.ValidFlag,
		VendorSnapshot: newSnapshotView(ledger.VendorSnapshot),
	}
}
