package billing

import "time"

// Plan enum
type Plan string

const (
	PlanFree           Plan = "FREE"
	PlanPayPerContract Plan = "PAY_PER_CONTRACT"
	PlanProfessional   Plan = "PROFESSIONAL"
	PlanEnterprise     Plan = "ENTERPRISE"
)

// SubscriptionStatus enum
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionInactive SubscriptionStatus = "INACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
)

// Subscription links an organization to a plan. Billing lifecycle (checkout,
// webhooks) is owned by the web tier; this service only reads.
type Subscription struct {
	ID               string             `json:"id"`
	OrgID            string             `json:"org_id"`
	Plan             Plan               `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
}
