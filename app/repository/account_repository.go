package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"gorm.io/gorm"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create inserts a new account with an empty ledger
func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByIdentity(ctx context.Context, ids []string) (*models.Account, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	for _, id := range cleaned {
		var account models.Account
		err := r.db.WithContext(ctx).
			Where("sub_external_id = ? OR JSON_CONTAINS(sub_aliases, JSON_QUOTE(?))", id, id).
			Order("created_at ASC").
			First(&account).Error
		if err == nil {
			return &account, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// UpdateLedger writes only the listed columns. It returns
// gorm.ErrRecordNotFound when no account row matched.
func (r *accountRepository) UpdateLedger(ctx context.Context, accountID string, ledger models.SubscriptionLedger, fields ...models.LedgerField) error {
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, string(f))
	}
	cols = append(cols, "updated_at")

	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Select(cols).
		Updates(&models.Account{Ledger: ledger, UpdatedAt: time.Now()})
	if res.Error != nil {
		return res.Error
	}
	// The DSN sets clientFoundRows, so a matched but unchanged row still counts.
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
