package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/app/repository"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Registrar binds vendor identities to accounts.
type Registrar struct {
	accounts repository.AccountRepository
	metrics  *metrics.Recorder
}

func NewRegistrar(accounts repository.AccountRepository, rec *metrics.Recorder) *Registrar {
	return &Registrar{accounts: accounts, metrics: rec}
}

// Bind records a client-reported purchase on the account's ledger.
//
// With isUpdate the ledger must already be bound. Without it, an unbound ledger
// is bound to info.ExternalID, and a bound ledger accepts only its current id
// or a known alias (reconciliation); any other id is a Conflict.
func (r *Registrar) Bind(ctx context.Context, accountID string, info BindInfo, isUpdate bool) (*BindResult, error) {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return nil, r.fail("invalid", fmt.Errorf("%w: account id is required", ErrInvalidArgument))
	}
	if strings.TrimSpace(info.ProductID) == "" {
		return nil, r.fail("invalid", fmt.Errorf("%w: product id is required", ErrInvalidArgument))
	}
	externalID := strings.TrimSpace(info.ExternalID)

	account, err := r.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, r.fail("not_found", fmt.Errorf("%w: %s", ErrNotFound, id))
		}
		return nil, r.fail("error", fmt.Errorf("%w: load account %s: %v", ErrInternal, id, err))
	}
	ledger := account.Ledger

	fields := []models.LedgerField{}
	switch {
	case isUpdate:
		if !ledger.IsBound() {
			return nil, r.fail("invalid_state", fmt.Errorf("%w: account %s has no bound external id", ErrInvalidState, id))
		}
	case !ledger.IsBound() && externalID != "":
		ledger.ExternalID = stringPtr(externalID)
		fields = append(fields, models.FieldExternalID)
	case ledger.IsBound() && externalID != "":
		if !ledger.HasIdentity(externalID) {
			return nil, r.fail("conflict", fmt.Errorf("%w: account %s is bound to another subscriber", ErrConflict, id))
		}
	default:
		return nil, r.fail("invalid", fmt.Errorf("%w: external id is required", ErrInvalidArgument))
	}

	grewBound := ledger.AddAlias(ledger.BoundID())
	grewInfo := ledger.AddAlias(externalID)
	if grewBound || grewInfo {
		fields = append(fields, models.FieldAliases)
	}
	fields = append(fields, overwriteFromBind(&ledger, info)...)

	if err := r.accounts.UpdateLedger(ctx, account.ID, ledger, fields...); err != nil {
		return nil, r.fail("error", persistError("bind", account.ID, err))
	}

	r.metrics.Bind("ok")
	log.Infof("[Billing] Bound account %s to %s (update=%t): subscribed=%t plan=%s", account.ID, ledger.BoundID(), isUpdate, ledger.IsSubscribed, ledger.PlanLevel)
	return &BindResult{
		AccountID:      account.ID,
		ExternalID:     ledger.BoundID(),
		Aliases:        ledger.Aliases,
		IsSubscribed:   ledger.IsSubscribed,
		PlanLevel:      ledger.PlanLevel,
		VendorSnapshot: newSnapshotView(ledger.VendorSnapshot),
	}, nil
}

// overwriteFromBind replaces the purchase fields and snapshot with the
// client-reported values. lastVerifiedAt is not touched: a bind is not a
// vendor-backed refresh.
func overwriteFromBind(ledger *models.SubscriptionLedger, info BindInfo) []models.LedgerField {
	productID := strings.TrimSpace(info.ProductID)
	plan := planFor(productID)
	subscribed := plan != models.PlanNone
	if info.IsSubscribed != nil && !*info.IsSubscribed {
		subscribed = false
	}

	ledger.ProductID = stringPtr(productID)
	ledger.PlanLevel = plan
	ledger.IsSubscribed = subscribed
	ledger.ExpirationDate = info.ExpirationDate
	ledger.TransactionID = stringPtr(strings.TrimSpace(info.TransactionID))
	ledger.Price = info.Price
	ledger.Currency = stringPtr(strings.ToUpper(strings.TrimSpace(info.Currency)))
	ledger.VendorSnapshot = info.Snapshot

	return append([]models.LedgerField{
		models.FieldProductID,
		models.FieldPlanLevel,
		models.FieldIsSubscribed,
		models.FieldExpirationDate,
		models.FieldTransactionID,
		models.FieldPrice,
		models.FieldCurrency,
	}, models.SnapshotFields...)
}

func (r *Registrar) fail(outcome string, err error) error {
	r.metrics.Bind(outcome)
	return err
}
