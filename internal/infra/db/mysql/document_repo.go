package mysql

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/verifai/verifai/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, org_id, uploader_id, original_name, storage_key, size, mime_type, category, status, text, uploaded_at`

func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents (` + documentColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE status=VALUES(status);
`
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.OrgID, d.UploaderID, d.OriginalName, d.StorageKey,
		d.Size, d.MimeType, d.Category, d.Status, d.Text, d.UploadedAt,
	)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, id domain.DocumentID) (*domain.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id=? LIMIT 1;`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// FindAccessible joins through org membership. sql.ErrNoRows maps to the
// shared not-found error so missing and forbidden look identical.
func (r *DocumentRepository) FindAccessible(ctx context.Context, id domain.DocumentID, userID string) (*domain.Document, error) {
	const q = `
SELECT d.id, d.org_id, d.uploader_id, d.original_name, d.storage_key, d.size,
       d.mime_type, d.category, d.status, d.text, d.uploaded_at
FROM documents d
JOIN org_members m ON m.org_id = d.org_id
WHERE d.id=? AND m.user_id=?
LIMIT 1;
`
	return scanDocument(r.db.QueryRowContext(ctx, q, id, userID))
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var d domain.Document
	if err := row.Scan(
		&d.ID, &d.OrgID, &d.UploaderID, &d.OriginalName, &d.StorageKey,
		&d.Size, &d.MimeType, &d.Category, &d.Status, &d.Text, &d.UploadedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
