package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/verifai/verifai/internal/application"
	"github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/billing"
	"github.com/verifai/verifai/internal/domain/users"
)

// Decision is the outcome of an entitlement check. Reason is shown to the
// caller verbatim when denied.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Service implements entitlement checks against the org's subscription plan
// and current monthly usage.
type Service struct {
	Subscriptions billing.Repository
	Analyses      analysis.Repository
	Clock         application.Clock
}

// Limits resolves the effective limits for the user's default organization.
// Missing org, missing subscription, or a non-active subscription all fall
// back to the free tier.
func (s *Service) Limits(ctx context.Context, user *users.User) billing.Limits {
	org := user.DefaultOrg()
	if org == nil {
		return billing.FreeLimits()
	}
	sub, err := s.Subscriptions.GetByOrg(ctx, org.ID)
	if err != nil || sub == nil || sub.Status != billing.SubscriptionActive {
		return billing.FreeLimits()
	}
	return billing.LimitsFor(sub.Plan)
}

// CanPerformAnalysis checks the monthly analysis quota. In-flight PROCESSING
// analyses count against the quota.
func (s *Service) CanPerformAnalysis(ctx context.Context, user *users.User) (Decision, error) {
	limits := s.Limits(ctx, user)
	if limits.Unlimited() {
		return Decision{Allowed: true}, nil
	}

	org := user.DefaultOrg()
	if org == nil {
		return Decision{Allowed: false, Reason: "No organization found"}, nil
	}

	used, err := s.Analyses.CountForOrgSince(ctx, org.ID, startOfMonth(s.Clock.Now()))
	if err != nil {
		return Decision{}, err
	}
	if used >= limits.MaxAnalysesPerMonth {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("Monthly limit of %d analyses reached. Upgrade your plan for more analyses.", limits.MaxAnalysesPerMonth),
		}, nil
	}
	return Decision{Allowed: true}, nil
}

// CanExportReports gates the report generator.
func (s *Service) CanExportReports(ctx context.Context, user *users.User) Decision {
	if !s.Limits(ctx, user).HasExportAccess {
		return Decision{
			Allowed: false,
			Reason:  "Export access requires a paid plan. Please upgrade to access report exports.",
		}
	}
	return Decision{Allowed: true}
}

// IsDocumentSizeAllowed checks an upload against the plan's size ceiling.
func (s *Service) IsDocumentSizeAllowed(ctx context.Context, user *users.User, sizeBytes int64) Decision {
	limits := s.Limits(ctx, user)
	if sizeBytes > limits.MaxDocumentSize {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("File size %dMB exceeds limit of %dMB for your plan. Please upgrade for larger file support.",
				sizeBytes/(1<<20), limits.MaxDocumentSize/(1<<20)),
		}
	}
	return Decision{Allowed: true}
}

// startOfMonth is the first instant of the current calendar month.
func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
