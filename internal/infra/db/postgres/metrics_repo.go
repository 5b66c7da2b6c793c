package postgres

import (
	"context"
	"database/sql"
	"time"

	appmetrics "github.com/verifai/verifai/internal/application/metrics"
)

type MetricsRepository struct {
	db *sql.DB
}

func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Aggregates computes the dashboard counts for one organization. Risk bands:
// low <= 30, medium 31-70, high > 70, over completed analyses only.
func (r *MetricsRepository) Aggregates(ctx context.Context, orgID string, recentSince time.Time) (appmetrics.Aggregates, error) {
	var agg appmetrics.Aggregates

	const docsQ = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN uploaded_at >= $1 THEN 1 ELSE 0 END),0)
FROM documents
WHERE org_id=$2;
`
	if err := r.db.QueryRowContext(ctx, docsQ, recentSince, orgID).Scan(&agg.TotalDocuments, &agg.RecentDocuments); err != nil {
		return agg, err
	}

	const analysesQ = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN a.status='COMPLETED' THEN 1 ELSE 0 END),0),
       COALESCE(AVG(CASE WHEN a.status='COMPLETED' THEN a.risk_score END),0),
       COALESCE(SUM(CASE WHEN a.status='COMPLETED' AND a.risk_score <= 30 THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN a.status='COMPLETED' AND a.risk_score BETWEEN 31 AND 70 THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN a.status='COMPLETED' AND a.risk_score > 70 THEN 1 ELSE 0 END),0)
FROM analyses a
JOIN documents d ON d.id = a.document_id
WHERE d.org_id=$1;
`
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, analysesQ, orgID).Scan(
		&agg.TotalAnalyses, &agg.CompletedAnalyses, &avg,
		&agg.RiskLow, &agg.RiskMedium, &agg.RiskHigh,
	); err != nil {
		return agg, err
	}
	if avg.Valid {
		agg.AvgRiskScore = avg.Float64
	}
	return agg, nil
}
