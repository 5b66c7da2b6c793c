package metrics

import (
	"context"
	"math"
	"time"

	"github.com/verifai/verifai/internal/application"
	"github.com/verifai/verifai/internal/domain/users"
)

// Aggregates are the raw per-org counts from the repository.
type Aggregates struct {
	TotalDocuments    int
	TotalAnalyses     int
	CompletedAnalyses int
	AvgRiskScore      float64
	RecentDocuments   int
	RiskLow           int
	RiskMedium        int
	RiskHigh          int
}

// Repository computes aggregates for one organization. recentSince bounds
// the "recent documents" count.
type Repository interface {
	Aggregates(ctx context.Context, orgID string, recentSince time.Time) (Aggregates, error)
}

// Dashboard is the response shape of the metrics endpoint.
type Dashboard struct {
	TotalDocuments    int              `json:"totalDocuments"`
	TotalAnalyses     int              `json:"totalAnalyses"`
	CompletedAnalyses int              `json:"completedAnalyses"`
	AvgRiskScore      float64          `json:"avgRiskScore"`
	RecentDocuments   int              `json:"recentDocuments"`
	SuccessRate       float64          `json:"successRate"`
	RiskDistribution  RiskDistribution `json:"riskDistribution"`
}

type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Service computes the dashboard for the user's default organization.
type Service struct {
	Repo  Repository
	Clock application.Clock
}

// Dashboard aggregates the last 7 days of activity plus all-time counts.
func (s *Service) Dashboard(ctx context.Context, user *users.User) (*Dashboard, error) {
	org := user.DefaultOrg()
	if org == nil {
		return &Dashboard{}, nil
	}

	agg, err := s.Repo.Aggregates(ctx, org.ID, s.Clock.Now().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	successRate := 0.0
	if agg.TotalAnalyses > 0 {
		successRate = math.Round(float64(agg.CompletedAnalyses)/float64(agg.TotalAnalyses)*100) / 100
	}
	return &Dashboard{
		TotalDocuments:    agg.TotalDocuments,
		TotalAnalyses:     agg.TotalAnalyses,
		CompletedAnalyses: agg.CompletedAnalyses,
		AvgRiskScore:      math.Round(agg.AvgRiskScore*10) / 10,
		RecentDocuments:   agg.RecentDocuments,
		SuccessRate:       successRate,
		RiskDistribution: RiskDistribution{
			Low:    agg.RiskLow,
			Medium: agg.RiskMedium,
			High:   agg.RiskHigh,
		},
	}, nil
}
