package repository

import (
	"context"

	"github.com/ManuelReschke/entitlement-sync/app/models"
)

// AccountRepository is the account store holding one subscription ledger per
// account. Lookups return gorm.ErrRecordNotFound when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// FindByIdentity returns the account whose bound external id or alias set
	// contains one of ids. Earlier ids take precedence.
	FindByIdentity(ctx context.Context, ids []string) (*models.Account, error)
	// UpdateLedger merges the listed ledger fields into the stored record.
	// Fields that are not listed are left untouched (last write wins per field).
	UpdateLedger(ctx context.Context, accountID string, ledger models.SubscriptionLedger, fields ...models.LedgerField) error
}
