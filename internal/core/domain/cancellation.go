package domain

import (
	"time"

	"github.com/google/uuid"
)

// CancellationStatus is the lifecycle state of a cancellation request.
type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "pending"
	CancellationStatusApproved CancellationStatus = "approved"
	CancellationStatusRejected CancellationStatus = "rejected"
)

// CancellationRequest is a one-to-one workflow over a completed
// transaction. Approval reverses the transaction's balance effect.
// When RequiresDoubleAuthorization is set, two distinct staff members
// must authorize; SecondAuthorizer must always differ from
// FirstAuthorizer.
type CancellationRequest struct {
	ID                          uuid.UUID          `json:"id"`
	TransactionID               uuid.UUID          `json:"transaction_id"`
	RequestedBy                 uuid.UUID          `json:"requested_by"`
	Reason                      string             `json:"reason"`
	RequiresDoubleAuthorization bool               `json:"requires_double_authorization"`
	FirstAuthorizer             *uuid.UUID         `json:"first_authorizer,omitempty"`
	FirstAuthorizedAt           *time.Time         `json:"first_authorized_at,omitempty"`
	SecondAuthorizer            *uuid.UUID         `json:"second_authorizer,omitempty"`
	Status                      CancellationStatus `json:"status"`
	CreatedAt                   time.Time          `json:"created_at"`
}

// FirstAuthorizationExpired reports whether a recorded first
// authorization is older than the allowed window. Expired first
// authorizations are discarded rather than completed.
func (c *CancellationRequest) FirstAuthorizationExpired(now time.Time, window time.Duration) bool {
	if c.FirstAuthorizer == nil || c.FirstAuthorizedAt == nil || window <= 0 {
		return false
	}
	return now.Sub(*c.FirstAuthorizedAt) > window
}
