package billing

import "context"

// Repository defines read access to subscriptions. Returns (nil, nil) when
// the organization has none.
type Repository interface {
	GetByOrg(ctx context.Context, orgID string) (*Subscription, error)
}
