package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/billing"
)

// StatusRefresher is the part of billing.Verifier the reverify worker needs.
type StatusRefresher interface {
	Refresh(ctx context.Context, accountID string, asOf time.Time) (*billing.CanonicalStatus, error)
}

// EnqueueReverify schedules a vendor-backed refresh of accountID.
func (q *Queue) EnqueueReverify(ctx context.Context, accountID, reason string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return errors.New("account id is required")
	}
	_, err := q.EnqueueJob(ctx, JobTypeReverifyAccount, ReverifyAccountJobPayload{
		AccountID: accountID,
		Reason:    reason,
	}.ToMap())
	return err
}

// ReverifyHandler re-reads an account from the entitlement source regardless
// of how recently it was verified. Vendor outages are retried; a missing
// account or a malformed payload is not.
func ReverifyHandler(verifier StatusRefresher) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := ReverifyAccountJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("%w: invalid reverify payload: %v", ErrNoRetry, err)
		}
		if payload.AccountID == "" {
			return fmt.Errorf("%w: reverify payload without account id", ErrNoRetry)
		}

		status, err := verifier.Refresh(ctx, payload.AccountID, time.Now().UTC())
		switch {
		case err == nil:
			log.Infof("[JobQueue] Reverified account %s (%s): subscribed=%t plan=%s",
				payload.AccountID, payload.Reason, status.IsSubscribed, status.PlanLevel)
			return nil
		case errors.Is(err, billing.ErrNotFound), errors.Is(err, billing.ErrInvalidArgument):
			return fmt.Errorf("%w: %v", ErrNoRetry, err)
		default:
			return err
		}
	}
}
