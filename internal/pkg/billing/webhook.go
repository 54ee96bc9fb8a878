package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/entitlement-sync/app/models"
	"github.com/ManuelReschke/entitlement-sync/app/repository"
	"github.com/ManuelReschke/entitlement-sync/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const ReasonAccountNotFound = "account not found"

// WebhookProcessor applies vendor lifecycle events to account ledgers. Events
// are applied in arrival order; concurrent events for the same identity are
// last-applied-wins.
type WebhookProcessor struct {
	accounts repository.AccountRepository
	metrics  *metrics.Recorder
	now      func() time.Time
}

func NewWebhookProcessor(accounts repository.AccountRepository, rec *metrics.Recorder) *WebhookProcessor {
	return &WebhookProcessor{
		accounts: accounts,
		metrics:  rec,
		now:      time.Now,
	}
}

// Ingest resolves the event's identity and applies its state transition.
// It never returns an error: failures are reported in the result so the
// ingress can acknowledge the delivery.
func (p *WebhookProcessor) Ingest(ctx context.Context, ev WebhookEvent) IngestResult {
	kind := NormalizeEventKind(string(ev.Kind))
	if ev.EventTimestamp != nil {
		p.metrics.WebhookLag(p.now().Sub(*ev.EventTimestamp))
	}
	ids := identityCandidates(ev)
	if len(ids) == 0 {
		p.metrics.Webhook(metricKind(kind), "invalid")
		return IngestResult{Success: false, Reason: "event carries no subscriber identity"}
	}

	account, err := p.accounts.FindByIdentity(ctx, ids)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[Webhook] No account for %s event (ids=%v)", kind, ids)
			p.metrics.Webhook(metricKind(kind), "not_found")
			return IngestResult{Success: false, Reason: ReasonAccountNotFound}
		}
		log.Errorf("[Webhook] Identity lookup for %s event failed: %v", kind, err)
		p.metrics.Webhook(metricKind(kind), "error")
		return IngestResult{Success: false, Reason: "account lookup failed"}
	}

	ledger := account.Ledger
	tr := transitionFor(kind)
	if tr == transitionNone {
		p.metrics.Webhook(metricKind(kind), "ignored")
		return IngestResult{
			Success:      true,
			AccountID:    account.ID,
			Applied:      false,
			IsSubscribed: ledger.IsSubscribed,
			PlanLevel:    ledger.PlanLevel.OrNone(),
		}
	}

	fields := applyEvent(&ledger, kind, tr, ev, ids)
	verifiedAt := p.now().UTC()
	ledger.LastVerifiedAt = &verifiedAt
	fields = append(fields, models.FieldLastVerifiedAt)

	if tr == transitionActivate && ledger.PlanLevel == models.PlanNone {
		log.Warnf("[Webhook] Product %q on %s event for account %s matches no plan level", ev.ProductID, kind, account.ID)
	}

	if err := p.accounts.UpdateLedger(ctx, account.ID, ledger, fields...); err != nil {
		log.Errorf("[Webhook] Persisting %s event for account %s failed: %v", kind, account.ID, err)
		p.metrics.Webhook(metricKind(kind), "error")
		return IngestResult{Success: false, Reason: "ledger update failed", AccountID: account.ID}
	}

	p.metrics.Webhook(metricKind(kind), "applied")
	log.Infof("[Webhook] Applied %s to account %s: subscribed=%t plan=%s", kind, account.ID, ledger.IsSubscribed, ledger.PlanLevel)
	return IngestResult{
		Success:      true,
		AccountID:    account.ID,
		Applied:      true,
		IsSubscribed: ledger.IsSubscribed,
		PlanLevel:    ledger.PlanLevel,
	}
}

// applyEvent mutates ledger for a state-changing event and returns the fields
// it wrote. The alias set is never modified here.
func applyEvent(ledger *models.SubscriptionLedger, kind EventKind, tr transition, ev WebhookEvent, ids []string) []models.LedgerField {
	fields := []models.LedgerField{models.FieldIsSubscribed, models.FieldPlanLevel}

	// The bound id follows the event's primary id once the ledger knows it.
	// An unbound ledger matched through an alias is bound to that alias.
	if next := boundIDFor(ledger, ev, ids); next != "" && next != ledger.BoundID() {
		ledger.ExternalID = stringPtr(next)
		fields = append(fields, models.FieldExternalID)
	}

	switch tr {
	case transitionActivate:
		ledger.IsSubscribed = true
		ledger.PlanLevel = planFor(ev.ProductID)
	case transitionDeactivate:
		ledger.IsSubscribed = false
		ledger.PlanLevel = models.PlanNone
	}

	snap := &ledger.VendorSnapshot
	if pid := strings.TrimSpace(ev.ProductID); pid != "" {
		ledger.ProductID = stringPtr(pid)
		snap.ProductIdentifier = stringPtr(pid)
		fields = append(fields, models.FieldProductID, models.FieldSnapshotProductIdentifier)
	}
	if ev.ExpirationAt != nil {
		exp := ev.ExpirationAt.UTC()
		ledger.ExpirationDate = &exp
		snap.ExpirationDate = &exp
		fields = append(fields, models.FieldExpirationDate, models.FieldSnapshotExpirationDate)
	}
	if ev.PurchasedAt != nil {
		purchased := ev.PurchasedAt.UTC()
		snap.LatestPurchaseDate = &purchased
		fields = append(fields, models.FieldSnapshotLatestPurchaseDate)
	}
	if txn := strings.TrimSpace(ev.TransactionID); txn != "" {
		ledger.TransactionID = stringPtr(txn)
		fields = append(fields, models.FieldTransactionID)
	}
	if ev.Price != nil {
		price := *ev.Price
		ledger.Price = &price
		fields = append(fields, models.FieldPrice)
	}
	if cur := strings.ToUpper(strings.TrimSpace(ev.Currency)); cur != "" {
		ledger.Currency = stringPtr(cur)
		fields = append(fields, models.FieldCurrency)
	}
	if pt := strings.ToLower(strings.TrimSpace(ev.PeriodType)); pt != "" {
		snap.PeriodType = stringPtr(pt)
		fields = append(fields, models.FieldSnapshotPeriodType)
	}
	if store := strings.ToLower(strings.TrimSpace(ev.Store)); store != "" {
		snap.Store = stringPtr(store)
		fields = append(fields, models.FieldSnapshotStore)
	}
	if env := strings.ToLower(strings.TrimSpace(ev.Environment)); env != "" {
		snap.IsSandbox = boolPtr(env == "sandbox")
		fields = append(fields, models.FieldSnapshotIsSandbox)
	}

	switch kind {
	case EventCancellation:
		snap.IsCanceled = boolPtr(true)
		snap.WillRenew = boolPtr(false)
	case EventExpiration, EventBillingIssue:
		snap.WillRenew = boolPtr(false)
	default:
		snap.IsCanceled = boolPtr(false)
		snap.WillRenew = boolPtr(true)
	}
	fields = append(fields, models.FieldSnapshotIsCanceled, models.FieldSnapshotWillRenew)

	return fields
}

func boundIDFor(ledger *models.SubscriptionLedger, ev WebhookEvent, ids []string) string {
	if primary := strings.TrimSpace(ev.ExternalID); ledger.HasIdentity(primary) {
		return primary
	}
	if ledger.IsBound() {
		return ""
	}
	for _, id := range ids {
		if ledger.HasIdentity(id) {
			return id
		}
	}
	return ""
}

// identityCandidates lists the primary id first, then vendor aliases, without
// duplicates.
func identityCandidates(ev WebhookEvent) []string {
	out := make([]string, 0, len(ev.Aliases)+1)
	seen := make(map[string]struct{}, len(ev.Aliases)+1)
	for _, id := range append([]string{ev.ExternalID}, ev.Aliases...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
