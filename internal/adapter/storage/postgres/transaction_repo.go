package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, player_id, transaction_type, amount, currency, status, origin, channel,
		requires_authorization, authorized_by, authorization_notes, created_at, processed_at, processed_by`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.PlayerID, t.TransactionType, t.Amount, t.Currency, t.Status,
		t.Origin, t.Channel, t.RequiresAuthorization, t.AuthorizedBy,
		t.AuthorizationNotes, t.CreatedAt, t.ProcessedAt, t.ProcessedBy,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with a row lock. This MUST be
// called within a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// MarkCompleted transitions a pending transaction to completed and
// stamps the processing audit fields. The status guard in the WHERE
// clause keeps transitions monotonic.
func (r *TransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID, processedAt time.Time) error {
	query := `UPDATE transactions SET status = $1, processed_at = $2, processed_by = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.TransactionStatusCompleted, processedAt, processedBy,
		id, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark transaction completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// MarkCancelled transitions a completed transaction to cancelled. Only
// the cancellation workflow reaches this.
func (r *TransactionRepo) MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query,
		domain.TransactionStatusCancelled, id, domain.TransactionStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark transaction cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not completed", id)
	}
	return nil
}

// MarkRejected transitions a pending transaction to rejected.
func (r *TransactionRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID) error {
	query := `UPDATE transactions SET status = $1, processed_at = NOW(), processed_by = $2
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query,
		domain.TransactionStatusRejected, processedBy, id, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark transaction rejected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// SetAuthorization stamps who authorized a pending withdrawal.
func (r *TransactionRepo) SetAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizedBy uuid.UUID, notes string) error {
	query := `UPDATE transactions SET authorized_by = $1, authorization_notes = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, authorizedBy, notes, id)
	if err != nil {
		return fmt.Errorf("set transaction authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// List fetches transactions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.PlayerID != nil {
		where = append(where, "player_id = "+arg(*params.PlayerID))
	}
	if params.Status != nil {
		where = append(where, "status = "+arg(*params.Status))
	}
	if params.Type != nil {
		where = append(where, "transaction_type = "+arg(*params.Type))
	}
	if params.From != nil {
		where = append(where, "created_at >= "+arg(*params.From))
	}
	if params.To != nil {
		where = append(where, "created_at <= "+arg(*params.To))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions` + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + whereClause +
		` ORDER BY created_at DESC LIMIT ` + arg(pageSize) + ` OFFSET ` + arg((page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, total, nil
}

// Summary aggregates completed transaction amounts per type for a player.
func (r *TransactionRepo) Summary(ctx context.Context, playerID uuid.UUID, from, to *time.Time) (*ports.TransactionSummary, error) {
	where := []string{"player_id = $1", "status = $2"}
	args := []any{playerID, domain.TransactionStatusCompleted}
	if from != nil {
		args = append(args, *from)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'deposit'), 0),
		COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'withdrawal'), 0),
		COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'win'), 0),
		COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'loss'), 0),
		COUNT(*)
		FROM transactions WHERE ` + strings.Join(where, " AND ")

	s := &ports.TransactionSummary{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.TotalDeposits, &s.TotalWithdrawals, &s.TotalWins, &s.TotalLosses,
		&s.TransactionCount,
	)
	if err != nil {
		return nil, fmt.Errorf("transaction summary: %w", err)
	}
	return s, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.PlayerID, &t.TransactionType, &t.Amount, &t.Currency,
		&t.Status, &t.Origin, &t.Channel, &t.RequiresAuthorization,
		&t.AuthorizedBy, &t.AuthorizationNotes, &t.CreatedAt,
		&t.ProcessedAt, &t.ProcessedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
