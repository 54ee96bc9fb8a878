package entitlements

import (
	"strings"

	"github.com/ManuelReschke/entitlement-sync/app/models"
)

// planPriority is the fixed match order for product identifiers. A product
// such as "annual_trial" is a trial, "premium_annual_monthly_promo" is annual.
// There is no canonical product catalogue behind this; keep the order as is.
var planPriority = []struct {
	needle string
	plan   models.PlanLevel
}{
	{needle: "trial", plan: models.PlanTrial},
	{needle: "annual", plan: models.PlanAnnual},
	{needle: "monthly", plan: models.PlanMonthly},
	{needle: "weekly", plan: models.PlanWeekly},
}

// ClassifyProduct maps a vendor product id to a plan level by substring.
func ClassifyProduct(productID string) models.PlanLevel {
	p := strings.ToLower(strings.TrimSpace(productID))
	if p == "" {
		return models.PlanNone
	}
	for _, candidate := range planPriority {
		if strings.Contains(p, candidate.needle) {
			return candidate.plan
		}
	}
	return models.PlanNone
}
