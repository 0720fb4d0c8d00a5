package service

import (
	"context"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditServiceImpl records sensitive staff actions. Writes are
// best-effort: a failed audit insert is logged and never fails the
// operation it describes.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new AuditServiceImpl.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

func (s *AuditServiceImpl) Record(ctx context.Context, actorID uuid.UUID, action, entityType string, entityID uuid.UUID, detail string) {
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity_id", entityID.String()).
			Msg("failed to record audit entry")
	}
}
