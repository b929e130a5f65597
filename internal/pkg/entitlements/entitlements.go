package entitlements

import (
	"github.com/markora/shopcore/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// PlanForSubscription maps a subscription record to the effective plan.
// Only an entitled (ACTIVE) subscription grants premium; a subscription
// marked for cancellation keeps its perks until it actually expires.
func PlanForSubscription(sub *models.Subscription) Plan {
	if sub == nil || !sub.IsEntitled() {
		return PlanFree
	}
	return PlanPremium
}

// FreeShipping reports whether the plan waives shipping fees at checkout.
func FreeShipping(plan Plan) bool {
	return plan == PlanPremium
}

// ShippingCents returns the shipping fee applied at checkout for a plan.
func ShippingCents(plan Plan, flatRateCents int64) int64 {
	if FreeShipping(plan) {
		return 0
	}
	return flatRateCents
}
