package ports

import (
	"context"
	"errors"
	"time"

	"casino-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is the repository-level signal for a failed
// conditional debit. Services translate it into the client-facing
// insufficient-funds error.
var ErrInsufficientBalance = errors.New("insufficient balance")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// PlayerRepository defines persistence operations for players,
// including the balance ledger. Credit and Debit are single conditional
// UPDATE statements returning the new balance; Debit affects zero rows
// when the balance does not cover the amount.
type PlayerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, player *domain.Player) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Player, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Player, error)
	// Credit adds amount to the balance. Amount must be positive.
	Credit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	// Debit subtracts amount from the balance only if balance >= amount.
	// Returns ErrInsufficientBalance when the condition fails.
	Debit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

// TransactionRepository defines persistence operations for transactions.
// Mutating methods take a pgx.Tx so they join the caller's transaction
// boundary.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID, processedAt time.Time) error
	MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID) error
	SetAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizedBy uuid.UUID, notes string) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Summary(ctx context.Context, playerID uuid.UUID, from, to *time.Time) (*TransactionSummary, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	PlayerID *uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TransactionSummary aggregates completed transaction amounts per type.
type TransactionSummary struct {
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	TotalWins        decimal.Decimal
	TotalLosses      decimal.Decimal
	TransactionCount int64
}

// LimitRepository defines persistence for transaction limits. Rows are
// read under FOR UPDATE inside the enclosing transaction; Accumulate is
// a conditional increment that affects zero rows when the cap would be
// breached.
type LimitRepository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, period domain.LimitPeriod, txType domain.TransactionType) (*domain.TransactionLimit, error)
	Create(ctx context.Context, tx pgx.Tx, limit *domain.TransactionLimit) error
	ResetPeriod(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error
	// Accumulate increments current_amount by amount only if the result
	// stays within max_amount. Returns false when the cap is hit.
	Accumulate(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error)
}

// CancellationRepository defines persistence for cancellation requests.
type CancellationRepository interface {
	Create(ctx context.Context, req *domain.CancellationRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CancellationRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CancellationRequest, error)
	GetByTransactionID(ctx context.Context, txID uuid.UUID) (*domain.CancellationRequest, error)
	RecordFirstAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizer uuid.UUID, at time.Time) error
	Approve(ctx context.Context, tx pgx.Tx, id uuid.UUID, firstAuthorizer uuid.UUID, secondAuthorizer *uuid.UUID) error
	Reject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// AuditRepository persists audit entries. Writes are best-effort and
// happen outside money transaction boundaries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
