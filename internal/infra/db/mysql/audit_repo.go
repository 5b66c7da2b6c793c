package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	domain "github.com/verifai/verifai/internal/domain/audit"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Save appends one entry. Rows are never updated or deleted from here.
func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = b
	}
	const q = `
INSERT INTO audit_logs (id, user_id, document_id, action, details, ip_address, user_agent, created_at)
VALUES (?,?,?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, nullable(e.UserID), nullable(e.DocumentID), e.Action,
		details, nullable(e.IPAddress), nullable(e.UserAgent), e.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
