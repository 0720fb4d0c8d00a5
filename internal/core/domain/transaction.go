package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeWin        TransactionType = "win"
	TransactionTypeLoss       TransactionType = "loss"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Transitions are monotonic: pending -> completed|cancelled|rejected,
// completed -> cancelled only via an authorized cancellation.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRejected  TransactionStatus = "rejected"
)

// TransactionChannel identifies where a request originated.
type TransactionChannel string

const (
	ChannelWeb      TransactionChannel = "web"
	ChannelMobile   TransactionChannel = "mobile"
	ChannelTerminal TransactionChannel = "terminal"
	ChannelAPI      TransactionChannel = "api"
)

// Transaction records a single money movement on a player's balance.
type Transaction struct {
	ID                    uuid.UUID          `json:"id"`
	PlayerID              uuid.UUID          `json:"player_id"`
	TransactionType       TransactionType    `json:"transaction_type"`
	Amount                decimal.Decimal    `json:"amount"`
	Currency              string             `json:"currency"`
	Status                TransactionStatus  `json:"status"`
	Origin                string             `json:"origin"`
	Channel               TransactionChannel `json:"channel"`
	RequiresAuthorization bool               `json:"requires_authorization"`
	AuthorizedBy          *uuid.UUID         `json:"authorized_by,omitempty"`
	AuthorizationNotes    string             `json:"authorization_notes,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	ProcessedAt           *time.Time         `json:"processed_at,omitempty"`
	ProcessedBy           *uuid.UUID         `json:"processed_by,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCancelled ||
		t.Status == TransactionStatusRejected
}

// IsCancellable reports whether a cancellation request may be opened
// against this transaction. Only completed deposits and withdrawals are
// reversible; wins and losses belong to the games engine.
func (t *Transaction) IsCancellable() bool {
	if t.Status != TransactionStatusCompleted {
		return false
	}
	return t.TransactionType == TransactionTypeDeposit ||
		t.TransactionType == TransactionTypeWithdrawal
}

// ValidAmount reports whether the amount satisfies the amount > 0 invariant.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive()
}
