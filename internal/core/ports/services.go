package ports

import (
	"context"
	"time"

	"casino-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.UserRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// --- Service Ports (Business Logic) ---

// AuthService registers players and issues tokens.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Player, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// RegisterRequest holds validated input for player registration.
type RegisterRequest struct {
	Username string
	Password string
	Name     string
	LastName string
	Currency string
}

// LimitTracker guards per-period cumulative transaction limits.
// Reserve runs inside the caller's database transaction: it rolls over
// expired windows, lazily creates missing rows and performs the
// conditional increment for both the daily and the monthly window. A
// later failure in the same transaction rolls the reservation back.
// Check evaluates the same windows without consuming them; parked
// withdrawals use it to deny over-cap requests up front while the
// actual reservation waits for staff authorization.
type LimitTracker interface {
	Reserve(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, txType domain.TransactionType, amount decimal.Decimal, now time.Time) error
	Check(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, txType domain.TransactionType, amount decimal.Decimal, now time.Time) error
}

// TransactionService is the money-movement core: deposits, withdrawals,
// game results and the queries over recorded transactions.
type TransactionService interface {
	Deposit(ctx context.Context, req MoneyRequest) (*MoneyResult, error)
	Withdraw(ctx context.Context, req MoneyRequest) (*MoneyResult, error)
	AuthorizeWithdrawal(ctx context.Context, txID, staffID uuid.UUID, notes string) (*MoneyResult, error)
	RejectWithdrawal(ctx context.Context, txID, staffID uuid.UUID) (*domain.Transaction, error)
	RecordGameResult(ctx context.Context, req GameResultRequest) (*MoneyResult, error)
	GetBalance(ctx context.Context, playerID uuid.UUID) (decimal.Decimal, string, error)
	History(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Summary(ctx context.Context, playerID uuid.UUID, from, to *time.Time) (*TransactionSummary, error)
}

// MoneyRequest holds validated input for a deposit or withdrawal.
type MoneyRequest struct {
	PlayerID    uuid.UUID
	RequestedBy uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Origin      string
	Channel     domain.TransactionChannel
}

// MoneyResult is the outcome of a money movement.
type MoneyResult struct {
	Transaction *domain.Transaction
	NewBalance  decimal.Decimal
	// RequiresAuthorization is set for withdrawals above the threshold:
	// the transaction stays pending and the balance is untouched.
	RequiresAuthorization bool
}

// GameResultRequest records a win or loss produced by the games engine.
type GameResultRequest struct {
	PlayerID uuid.UUID
	Type     domain.TransactionType // win or loss
	Amount   decimal.Decimal
	Currency string
	Origin   string
}

// CancellationService drives the cancellation authorization workflow.
type CancellationService interface {
	Request(ctx context.Context, txID, requestedBy uuid.UUID, reason string, requiresDouble bool) (*domain.CancellationRequest, error)
	Authorize(ctx context.Context, requestID, authorizerID uuid.UUID) (*AuthorizeResult, error)
	Reject(ctx context.Context, requestID, staffID uuid.UUID) error
	Get(ctx context.Context, requestID uuid.UUID) (*domain.CancellationRequest, error)
}

// AuthorizeOutcome distinguishes the two successful authorize responses.
type AuthorizeOutcome string

const (
	// AuthorizeOutcomeFirstRecorded: first step of double authorization.
	AuthorizeOutcomeFirstRecorded AuthorizeOutcome = "first_recorded"
	// AuthorizeOutcomeProcessed: cancellation approved and reversed.
	AuthorizeOutcomeProcessed AuthorizeOutcome = "processed"
)

// AuthorizeResult is the outcome of an authorize call.
type AuthorizeResult struct {
	Outcome AuthorizeOutcome
	Request *domain.CancellationRequest
}

// AuditService records sensitive staff actions, best-effort.
type AuditService interface {
	Record(ctx context.Context, actorID uuid.UUID, action, entityType string, entityID uuid.UUID, detail string)
}

// EventPublisher emits transaction lifecycle events after commit.
type EventPublisher interface {
	PublishTransactionCompleted(ctx context.Context, t *domain.Transaction) error
}
