package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	"github.com/verifai/verifai/internal/domain/audit"
)

// Service is the best-effort audit sink. Record never fails the caller:
// write errors are logged at warn and discarded.
type Service struct {
	Repo  audit.Repository
	Clock application.Clock
	Log   *zap.Logger
}

// Record persists one entry. Runs on a detached context so a disconnecting
// client cannot abort the write mid-pipeline.
func (s *Service) Record(e audit.Entry) {
	e.ID = uuid.New().String()
	e.CreatedAt = s.Clock.Now()
	if err := s.Repo.Save(context.Background(), &e); err != nil {
		s.Log.Warn("audit write failed",
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}
