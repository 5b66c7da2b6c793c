package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/verifai/verifai/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID loads the user with org memberships preloaded, the shape the
// entitlement and access checks work against.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT id, email, COALESCE(name, '') FROM users WHERE id=$1 LIMIT 1;`
	var u domain.User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const mq = `
SELECT m.role, o.id, o.name, o.slug
FROM org_members m
JOIN orgs o ON o.id = m.org_id
WHERE m.user_id=$1
ORDER BY m.created_at ASC;
`
	rows, err := r.db.QueryContext(ctx, mq, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.OrgMembership
		if err := rows.Scan(&m.Role, &m.Org.ID, &m.Org.Name, &m.Org.Slug); err != nil {
			return nil, err
		}
		u.Memberships = append(u.Memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}
