package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/verifai/verifai/internal/domain/billing"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByOrg returns (nil, nil) when the org has no subscription; the caller
// falls back to the free tier.
func (r *SubscriptionRepository) GetByOrg(ctx context.Context, orgID string) (*domain.Subscription, error) {
	const q = `
SELECT id, org_id, plan, status, current_period_end
FROM subscriptions
WHERE org_id=$1
LIMIT 1;
`
	var s domain.Subscription
	var periodEnd sql.NullTime
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(&s.ID, &s.OrgID, &s.Plan, &s.Status, &periodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		s.CurrentPeriodEnd = &t
	}
	return &s, nil
}
