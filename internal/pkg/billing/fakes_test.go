package billing

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"gorm.io/gorm"
)

// memoryAccounts is an in-memory AccountRepository for service tests.
type memoryAccounts struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	updates   int
	getErr    error
	updateErr error
}

func newMemoryAccounts(accounts ...*models.Account) *memoryAccounts {
	m := &memoryAccounts{accounts: make(map[string]*models.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memoryAccounts) Create(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memoryAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	cp.Ledger.Aliases = append([]string(nil), a.Ledger.Aliases...)
	return &cp, nil
}

func (m *memoryAccounts) FindByIdentity(ctx context.Context, ids []string) (*models.Account, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return nil, m.getErr
	}
	var match string
	for _, id := range ids {
		for accID, a := range m.accounts {
			if a.Ledger.HasIdentity(id) {
				match = accID
				break
			}
		}
		if match != "" {
			break
		}
	}
	m.mu.Unlock()
	if match == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return m.GetByID(ctx, match)
}

func (m *memoryAccounts) UpdateLedger(_ context.Context, accountID string, ledger models.SubscriptionLedger, fields ...models.LedgerField) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	a, ok := m.accounts[accountID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	dst := &a.Ledger
	for _, f := range fields {
		switch f {
		case models.FieldExternalID:
			dst.ExternalID = ledger.ExternalID
		case models.FieldAliases:
			dst.Aliases = append([]string(nil), ledger.Aliases...)
		case models.FieldProductID:
			dst.ProductID = ledger.ProductID
		case models.FieldPlanLevel:
			dst.PlanLevel = ledger.PlanLevel
		case models.FieldIsSubscribed:
			dst.IsSubscribed = ledger.IsSubscribed
		case models.FieldExpirationDate:
			dst.ExpirationDate = ledger.ExpirationDate
		case models.FieldLastVerifiedAt:
			dst.LastVerifiedAt = ledger.LastVerifiedAt
		case models.FieldValidFlag:
			dst.ValidFlag = ledger.ValidFlag
		case models.FieldTransactionID:
			dst.TransactionID = ledger.TransactionID
		case models.FieldPrice:
			dst.Price = ledger.Price
		case models.FieldCurrency:
			dst.Currency = ledger.Currency
		case models.FieldSnapshotIsCanceled:
			dst.VendorSnapshot.IsCanceled = ledger.VendorSnapshot.IsCanceled
		case models.FieldSnapshotExpirationDate:
			dst.VendorSnapshot.ExpirationDate = ledger.VendorSnapshot.ExpirationDate
		case models.FieldSnapshotProductIdentifier:
			dst.VendorSnapshot.ProductIdentifier = ledger.VendorSnapshot.ProductIdentifier
		case models.FieldSnapshotPeriodType:
			dst.VendorSnapshot.PeriodType = ledger.VendorSnapshot.PeriodType
		case models.FieldSnapshotLatestPurchaseDate:
			dst.VendorSnapshot.LatestPurchaseDate = ledger.VendorSnapshot.LatestPurchaseDate
		case models.FieldSnapshotOriginalPurchaseDate:
			dst.VendorSnapshot.OriginalPurchaseDate = ledger.VendorSnapshot.OriginalPurchaseDate
		case models.FieldSnapshotStore:
			dst.VendorSnapshot.Store = ledger.VendorSnapshot.Store
		case models.FieldSnapshotIsSandbox:
			dst.VendorSnapshot.IsSandbox = ledger.VendorSnapshot.IsSandbox
		case models.FieldSnapshotWillRenew:
			dst.VendorSnapshot.WillRenew = ledger.VendorSnapshot.WillRenew
		}
	}
	m.updates++
	return nil
}

func (m *memoryAccounts) ledger(id string) models.SubscriptionLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Ledger
}

// fakeSource is a scripted EntitlementSource.
type fakeSource struct {
	mu    sync.Mutex
	sub   *Subscriber
	err   error
	calls int
	ids   []string
}

func (f *fakeSource) Fetch(ctx context.Context, externalID string) (*Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = append(f.ids, externalID)
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func boundAccount(id, externalID string) *models.Account {
	return &models.Account{
		ID: id,
		Ledger: models.SubscriptionLedger{
			ExternalID: strPtr(externalID),
			Aliases:    []string{externalID},
			PlanLevel:  models.PlanNone,
		},
	}
}
