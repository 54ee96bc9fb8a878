package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the minimal account record owning exactly one subscription ledger.
type Account struct {
	ID        string             `gorm:"type:varchar(36);primaryKey" json:"id" validate:"required,uuid"`
	Email     string             `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email,max=200"`
	Ledger    SubscriptionLedger `gorm:"embedded;embeddedPrefix:sub_" json:"subscription"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// NewAccount returns a validated account with an empty, unbound ledger.
func NewAccount(email string) (*Account, error) {
	a := &Account{
		ID:    uuid.NewString(),
		Email: strings.TrimSpace(email),
		Ledger: SubscriptionLedger{
			Aliases:   []string{},
			PlanLevel: PlanNone,
		},
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Ledger.PlanLevel == "" {
		a.Ledger.PlanLevel = PlanNone
	}
	if a.Ledger.Aliases == nil {
		a.Ledger.Aliases = []string{}
	}
	return nil
}
