package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/usercontext"
)

type StatusVerifier interface {
	Verify(ctx context.Context, accountID string, asOf time.Time) (*billing.CanonicalStatus, error)
}

type SubscriptionBinder interface {
	Bind(ctx context.Context, accountID string, info billing.BindInfo, isUpdate bool) (*billing.BindResult, error)
}

// ReverifyEnqueuer schedules a background vendor refresh for an account.
type ReverifyEnqueuer interface {
	EnqueueReverify(ctx context.Context, accountID, reason string) error
}

type SubscriptionController struct {
	verifier StatusVerifier
	binder   SubscriptionBinder
	reverify ReverifyEnqueuer
	timeout  time.Duration
}

func NewSubscriptionController(verifier StatusVerifier, binder SubscriptionBinder, timeout time.Duration) *SubscriptionController {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SubscriptionController{verifier: verifier, binder: binder, timeout: timeout}
}

// WithReverify makes successful binds schedule a vendor refresh so the
// client-reported snapshot is replaced by the vendor's view.
func (sc *SubscriptionController) WithReverify(q ReverifyEnqueuer) *SubscriptionController {
	sc.reverify = q
	return sc
}

// RegisterSubscriptionRequest is the body of POST /api/v1/subscription/register.
type RegisterSubscriptionRequest struct {
	ExternalID     string                 `json:"external_id" validate:"omitempty,max=191"`
	ProductID      string                 `json:"product_id" validate:"required,max=191"`
	IsSubscribed   *bool                  `json:"is_subscribed"`
	ExpirationDate *time.Time             `json:"expiration_date"`
	TransactionID  string                 `json:"transaction_id" validate:"omitempty,max=191"`
	Price          *float64               `json:"price" validate:"omitempty,gte=0"`
	Currency       string                 `json:"currency" validate:"omitempty,len=3,alpha"`
	IsUpdate       bool                   `json:"is_update"`
	VendorSnapshot *models.VendorSnapshot `json:"vendor_snapshot"`
}

func (r RegisterSubscriptionRequest) bindInfo() billing.BindInfo {
	info := billing.BindInfo{
		ExternalID:     r.ExternalID,
		ProductID:      r.ProductID,
		IsSubscribed:   r.IsSubscribed,
		ExpirationDate: r.ExpirationDate,
		TransactionID:  r.TransactionID,
		Price:          r.Price,
		Currency:       r.Currency,
	}
	if r.VendorSnapshot != nil {
		info.Snapshot = *r.VendorSnapshot
	}
	return info
}

// HandleRegister binds the caller's account to a vendor identity.
func (sc *SubscriptionController) HandleRegister(c *fiber.Ctx) error {
	var req RegisterSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), sc.timeout)
	defer cancel()

	accountID := usercontext.GetAccountID(c)
	result, err := sc.binder.Bind(ctx, accountID, req.bindInfo(), req.IsUpdate)
	if err != nil {
		return respondError(c, err)
	}

	if sc.reverify != nil {
		reason := "bind"
		if req.IsUpdate {
			reason = "update"
		}
		if err := sc.reverify.EnqueueReverify(ctx, accountID, reason); err != nil {
			log.Warnf("[Subscription] Could not schedule reverify for %s: %v", accountID, err)
		}
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleVerify returns the canonical subscription status of the caller's
// account. The optional as_of query parameter (RFC 3339) evaluates validity
// at another instant.
func (sc *SubscriptionController) HandleVerify(c *fiber.Ctx) error {
	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "as_of must be an RFC 3339 timestamp")
		}
		asOf = parsed.UTC()
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), sc.timeout)
	defer cancel()

	status, err := sc.verifier.Verify(ctx, usercontext.GetAccountID(c), asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}
