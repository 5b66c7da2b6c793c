package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	domain "github.com/verifai/verifai/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO analyses (id, document_id, status, risk_score, summary, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.DocumentID, a.Status, a.RiskScore, a.Summary, a.CreatedAt, a.CompletedAt,
	)
	return err
}

func (r *AnalysisRepository) Update(ctx context.Context, a *domain.Analysis) error {
	const q = `
UPDATE analyses
SET status=$1, risk_score=$2, summary=$3, completed_at=$4
WHERE id=$5 AND status <> 'COMPLETED';
`
	_, err := r.db.ExecContext(ctx, q, a.Status, a.RiskScore, a.Summary, a.CompletedAt, a.ID)
	return err
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	const q = `
SELECT id, document_id, status, risk_score, summary, created_at, completed_at
FROM analyses WHERE id=$1;
`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *AnalysisRepository) GetAccessible(ctx context.Context, id domain.AnalysisID, userID string) (*domain.Analysis, error) {
	const q = `
SELECT a.id, a.document_id, a.status, a.risk_score, a.summary, a.created_at, a.completed_at
FROM analyses a
JOIN documents d ON d.id = a.document_id
JOIN org_members m ON m.org_id = d.org_id
WHERE a.id=$1 AND m.user_id=$2;
`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *AnalysisRepository) LatestCompletedByDocument(ctx context.Context, documentID string) (*domain.Analysis, error) {
	const q = `
SELECT id, document_id, status, risk_score, summary, created_at, completed_at
FROM analyses
WHERE document_id=$1 AND status='COMPLETED'
ORDER BY created_at DESC
LIMIT 1;
`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AnalysisRepository) CountForOrgSince(ctx context.Context, orgID string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM analyses a
JOIN documents d ON d.id = a.document_id
WHERE d.org_id=$1 AND a.created_at >= $2 AND a.status IN ('COMPLETED','PROCESSING');
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, orgID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *AnalysisRepository) SaveFindings(ctx context.Context, id domain.AnalysisID, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO findings (analysis_id, position, type, severity, title, description, location, suggestion) VALUES `)
	args := make([]any, 0, len(findings)*8)
	for i, f := range findings {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := 0; j < 8; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(i*8 + j + 1))
		}
		b.WriteByte(')')
		args = append(args, id, i, f.Type, f.Severity, f.Title, f.Description, f.Location, f.Suggestion)
	}
	b.WriteByte(';')
	_, err := r.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (r *AnalysisRepository) FindingsByAnalysis(ctx context.Context, id domain.AnalysisID) ([]domain.Finding, error) {
	const q = `
SELECT type, severity, title, description, location, suggestion
FROM findings
WHERE analysis_id=$1
ORDER BY position ASC;
`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(&f.Type, &f.Severity, &f.Title, &f.Description, &f.Location, &f.Suggestion); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanAnalysis(row *sql.Row) (*domain.Analysis, error) {
	var a domain.Analysis
	var score sql.NullInt64
	var summary sql.NullString
	var completed sql.NullTime
	if err := row.Scan(&a.ID, &a.DocumentID, &a.Status, &score, &summary, &a.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		a.RiskScore = &v
	}
	if summary.Valid {
		a.Summary = summary.String
	}
	if completed.Valid {
		t := completed.Time
		a.CompletedAt = &t
	}
	return &a, nil
}
