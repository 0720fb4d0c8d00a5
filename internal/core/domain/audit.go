package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a sensitive staff action.
type AuditEntry struct {
	ID         uuid.UUID `json:"id"`
	ActorID    uuid.UUID `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audit action names recorded by the services.
const (
	AuditActionWithdrawalAuthorized   = "withdrawal.authorized"
	AuditActionWithdrawalRejected     = "withdrawal.rejected"
	AuditActionCancellationFirstAuth  = "cancellation.first_authorization"
	AuditActionCancellationApproved   = "cancellation.approved"
	AuditActionCancellationRejected   = "cancellation.rejected"
)
