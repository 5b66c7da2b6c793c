package audit

import "context"

// Repository defines persistence for audit entries
type Repository interface {
	Save(ctx context.Context, e *Entry) error
}
