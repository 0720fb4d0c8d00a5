package dto

import (
	"time"

	"casino-backend/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for player registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	LastName string `json:"last_name" binding:"required,min=1,max=100"`
	Currency string `json:"currency,omitempty" binding:"omitempty,len=3"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// MoneyRequest is the request body for deposits and withdrawals.
// Amount travels as a string so the exact decimal survives the wire.
type MoneyRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency,omitempty" binding:"omitempty,len=3"`
	Origin   string          `json:"origin,omitempty" binding:"omitempty,max=100"`
	Channel  string          `json:"channel,omitempty" binding:"omitempty,oneof=web mobile terminal api"`
}

// GameResultRequest records a win or loss from the games engine.
type GameResultRequest struct {
	PlayerID string          `json:"player_id" binding:"required,uuid"`
	Type     string          `json:"type" binding:"required,oneof=win loss"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Origin   string          `json:"origin,omitempty" binding:"omitempty,max=100"`
}

// AuthorizeWithdrawalRequest carries the staff notes for an authorization.
type AuthorizeWithdrawalRequest struct {
	Notes string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// CancellationRequest is the request body for opening a cancellation.
type CancellationRequest struct {
	TransactionID      string `json:"transaction_id" binding:"required,uuid"`
	Reason             string `json:"reason" binding:"required,min=1,max=500"`
	RequiresDoubleAuth bool   `json:"requires_double_authorization"`
}

// TransactionResponse is the response body for a recorded transaction.
type TransactionResponse struct {
	ID                    string          `json:"id"`
	PlayerID              string          `json:"player_id"`
	TransactionType       string          `json:"transaction_type"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	Origin                string          `json:"origin,omitempty"`
	Channel               string          `json:"channel"`
	RequiresAuthorization bool            `json:"requires_authorization,omitempty"`
	CreatedAt             string          `json:"created_at"`
	ProcessedAt           *string         `json:"processed_at,omitempty"`
}

// MoneyResponse is the response body for a completed money movement.
type MoneyResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	NewBalance  decimal.Decimal     `json:"new_balance"`
}

// PendingAuthorizationResponse is the 202 body for withdrawals that
// wait for staff authorization.
type PendingAuthorizationResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// SummaryResponse aggregates completed amounts per transaction type.
type SummaryResponse struct {
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalWins        decimal.Decimal `json:"total_wins"`
	TotalLosses      decimal.Decimal `json:"total_losses"`
	TransactionCount int64           `json:"transaction_count"`
}

// CancellationResponse is the response body for a cancellation request.
type CancellationResponse struct {
	ID                          string  `json:"id"`
	TransactionID               string  `json:"transaction_id"`
	Status                      string  `json:"status"`
	Reason                      string  `json:"reason"`
	RequiresDoubleAuthorization bool    `json:"requires_double_authorization"`
	FirstAuthorizer             *string `json:"first_authorizer,omitempty"`
	SecondAuthorizer            *string `json:"second_authorizer,omitempty"`
	CreatedAt                   string  `json:"created_at"`
}

// FromTransaction maps a domain transaction to its response form.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                    t.ID.String(),
		PlayerID:              t.PlayerID.String(),
		TransactionType:       string(t.TransactionType),
		Amount:                t.Amount,
		Currency:              t.Currency,
		Status:                string(t.Status),
		Origin:                t.Origin,
		Channel:               string(t.Channel),
		RequiresAuthorization: t.RequiresAuthorization,
		CreatedAt:             t.CreatedAt.Format(time.RFC3339),
	}
	if t.ProcessedAt != nil {
		s := t.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

// FromCancellation maps a domain cancellation request to its response form.
func FromCancellation(r *domain.CancellationRequest) CancellationResponse {
	resp := CancellationResponse{
		ID:                          r.ID.String(),
		TransactionID:               r.TransactionID.String(),
		Status:                      string(r.Status),
		Reason:                      r.Reason,
		RequiresDoubleAuthorization: r.RequiresDoubleAuthorization,
		CreatedAt:                   r.CreatedAt.Format(time.RFC3339),
	}
	if r.FirstAuthorizer != nil {
		s := r.FirstAuthorizer.String()
		resp.FirstAuthorizer = &s
	}
	if r.SecondAuthorizer != nil {
		s := r.SecondAuthorizer.String()
		resp.SecondAuthorizer = &s
	}
	return resp
}
