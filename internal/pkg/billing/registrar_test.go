package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func unboundAccount(id string) *models.Account {
	return &models.Account{ID: id, Ledger: models.SubscriptionLedger{PlanLevel: models.PlanNone}}
}

func TestBind_FirstBindOnUnboundAccount(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	r := NewRegistrar(store, nil)
	exp := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	res, err := r.Bind(context.Background(), "acc-1", BindInfo{
		ExternalID:     "rc123",
		ProductID:      "monthly_plan",
		ExpirationDate: &exp,
		TransactionID:  "txn-1",
		Currency:       "eur",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "rc123", res.ExternalID)
	assert.True(t, res.IsSubscribed)
	assert.Equal(t, models.PlanMonthly, res.PlanLevel)
	assert.Contains(t, res.Aliases, "rc123")

	l := store.ledger("acc-1")
	assert.Equal(t, "rc123", l.BoundID())
	assert.Contains(t, l.Aliases, "rc123")
	assert.Equal(t, models.PlanMonthly, l.PlanLevel)
	assert.True(t, l.IsSubscribed)
	assert.Equal(t, "EUR", *l.Currency)
	assert.True(t, l.ExpirationDate.Equal(exp))
	assert.Nil(t, l.LastVerifiedAt, "a bind is not a vendor-backed refresh")
}

func TestBind_SnapshotDefaultsInResult(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	res, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "rc123", ProductID: "weekly_basic"}, false)
	require.NoError(t, err)

	assert.False(t, res.VendorSnapshot.IsCanceled)
	assert.False(t, res.VendorSnapshot.IsSandbox)
	assert.False(t, res.VendorSnapshot.WillRenew)
	assert.Nil(t, res.VendorSnapshot.ExpirationDate)
}

func TestBind_ExplicitUnsubscribed(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	res, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{
		ExternalID:   "rc123",
		ProductID:    "annual_premium",
		IsSubscribed: boolPtr(false),
	}, false)
	require.NoError(t, err)
	assert.False(t, res.IsSubscribed)
	assert.Equal(t, models.PlanAnnual, res.PlanLevel)
}

func TestBind_UnclassifiedProductIsNotSubscribed(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	res, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{
		ExternalID:   "rc123",
		ProductID:    "lifetime_unlock",
		IsSubscribed: boolPtr(true),
	}, false)
	require.NoError(t, err)
	assert.False(t, res.IsSubscribed)
	assert.Equal(t, models.PlanNone, res.PlanLevel)
}

func TestBind_Errors(t *testing.T) {
	tests := []struct {
		name     string
		account  *models.Account
		info     BindInfo
		isUpdate bool
		want     error
	}{
		{
			name:    "missing product",
			account: unboundAccount("acc-1"),
			info:    BindInfo{ExternalID: "rc123"},
			want:    ErrInvalidArgument,
		},
		{
			name:     "update on unbound account",
			account:  unboundAccount("acc-1"),
			info:     BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"},
			isUpdate: true,
			want:     ErrInvalidState,
		},
		{
			name:    "bound to another subscriber",
			account: boundAccount("acc-1", "rc123"),
			info:    BindInfo{ExternalID: "rc999", ProductID: "monthly_plan"},
			want:    ErrConflict,
		},
		{
			name:    "bound without external id",
			account: boundAccount("acc-1", "rc123"),
			info:    BindInfo{ProductID: "monthly_plan"},
			want:    ErrInvalidArgument,
		},
		{
			name:    "unbound without external id",
			account: unboundAccount("acc-1"),
			info:    BindInfo{ProductID: "monthly_plan"},
			want:    ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryAccounts(tt.account)
			before := store.ledger("acc-1")

			_, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", tt.info, tt.isUpdate)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, store.updates)
			assert.Equal(t, before, store.ledger("acc-1"))
		})
	}
}

func TestBind_AccountNotFound(t *testing.T) {
	_, err := NewRegistrar(newMemoryAccounts(), nil).Bind(context.Background(), "missing", BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"}, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBind_ReconcilesKnownAlias(t *testing.T) {
	acc := boundAccount("acc-1", "rc123")
	acc.Ledger.Aliases = []string{"rc123", "$anon_1"}
	store := newMemoryAccounts(acc)

	res, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "$anon_1", ProductID: "annual_premium"}, false)
	require.NoError(t, err)

	assert.Equal(t, "rc123", res.ExternalID)
	assert.Equal(t, models.PlanAnnual, res.PlanLevel)
	assert.Equal(t, []string{"rc123", "$anon_1"}, store.ledger("acc-1").Aliases)
}

func TestBind_UpdateAddsAlias(t *testing.T) {
	store := newMemoryAccounts(boundAccount("acc-1", "rc123"))

	res, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{
		ExternalID: "rc456",
		ProductID:  "weekly_basic",
		Snapshot:   models.VendorSnapshot{Store: strPtr("app_store"), WillRenew: boolPtr(true)},
	}, true)
	require.NoError(t, err)

	l := store.ledger("acc-1")
	assert.Equal(t, "rc123", l.BoundID())
	assert.Equal(t, []string{"rc123", "rc456"}, l.Aliases)
	assert.Equal(t, models.PlanWeekly, l.PlanLevel)
	assert.Equal(t, "app_store", *l.VendorSnapshot.Store)
	assert.True(t, res.VendorSnapshot.WillRenew)
}

func TestBind_UpdateReplacesSnapshot(t *testing.T) {
	acc := boundAccount("acc-1", "rc123")
	acc.Ledger.VendorSnapshot = models.VendorSnapshot{Store: strPtr("play_store"), IsCanceled: boolPtr(true)}
	store := newMemoryAccounts(acc)

	_, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"}, true)
	require.NoError(t, err)
	assert.Equal(t, models.VendorSnapshot{}, store.ledger("acc-1").VendorSnapshot)
}

func TestBind_PersistFailureIsInternal(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	store.updateErr = errors.New("disk full")

	_, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"}, false)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestBind_AccountDeletedBeforeWriteIsNotFound(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	store.updateErr = gorm.ErrRecordNotFound

	_, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"}, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestBind_ThenWebhookKeepsBinding(t *testing.T) {
	store := newMemoryAccounts(unboundAccount("acc-1"))
	_, err := NewRegistrar(store, nil).Bind(context.Background(), "acc-1", BindInfo{ExternalID: "rc123", ProductID: "monthly_plan"}, false)
	require.NoError(t, err)

	res := newTestProcessor(store).Ingest(context.Background(), WebhookEvent{Kind: EventCancellation, ExternalID: "rc123"})
	require.True(t, res.Success)
	assert.Equal(t, "acc-1", res.AccountID)
	l := store.ledger("acc-1")
	assert.False(t, l.IsSubscribed)
	assert.Equal(t, "rc123", l.BoundID())
}
