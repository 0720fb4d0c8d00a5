package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cancellationColumns = `id, transaction_id, requested_by, reason, requires_double_authorization,
		first_authorizer, first_authorized_at, second_authorizer, status, created_at`

// CancellationRepo implements ports.CancellationRepository.
type CancellationRepo struct {
	pool Pool
}

// NewCancellationRepo creates a new CancellationRepo.
func NewCancellationRepo(pool Pool) *CancellationRepo {
	return &CancellationRepo{pool: pool}
}

// Create inserts a new cancellation request. The unique index on
// transaction_id enforces the one-to-one relation.
func (r *CancellationRepo) Create(ctx context.Context, req *domain.CancellationRequest) error {
	query := `INSERT INTO cancellation_requests (` + cancellationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.TransactionID, req.RequestedBy, req.Reason,
		req.RequiresDoubleAuthorization, req.FirstAuthorizer,
		req.FirstAuthorizedAt, req.SecondAuthorizer, req.Status, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cancellation request: %w", err)
	}
	return nil
}

// GetByID fetches a cancellation request by UUID.
func (r *CancellationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`

	return scanCancellation(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a cancellation request with a row lock, so
// two concurrent authorize calls serialize. This MUST be called within
// a transaction.
func (r *CancellationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1 FOR UPDATE`

	return scanCancellation(tx.QueryRow(ctx, query, id))
}

// GetByTransactionID fetches the request attached to a transaction.
func (r *CancellationRepo) GetByTransactionID(ctx context.Context, txID uuid.UUID) (*domain.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE transaction_id = $1`

	return scanCancellation(r.pool.QueryRow(ctx, query, txID))
}

// RecordFirstAuthorization stamps the first authorizer on a pending
// double-authorization request.
func (r *CancellationRepo) RecordFirstAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizer uuid.UUID, at time.Time) error {
	query := `UPDATE cancellation_requests SET first_authorizer = $1, first_authorized_at = $2
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, authorizer, at, id, domain.CancellationStatusPending)
	if err != nil {
		return fmt.Errorf("record first authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	return nil
}

// Approve finalizes a pending request. secondAuthorizer is nil for
// single-authorization requests.
func (r *CancellationRepo) Approve(ctx context.Context, tx pgx.Tx, id uuid.UUID, firstAuthorizer uuid.UUID, secondAuthorizer *uuid.UUID) error {
	query := `UPDATE cancellation_requests
		SET first_authorizer = $1, second_authorizer = $2, status = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		firstAuthorizer, secondAuthorizer,
		domain.CancellationStatusApproved, id, domain.CancellationStatusPending,
	)
	if err != nil {
		return fmt.Errorf("approve cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	return nil
}

// Reject transitions a pending request to rejected.
func (r *CancellationRepo) Reject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE cancellation_requests SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query,
		domain.CancellationStatusRejected, id, domain.CancellationStatusPending,
	)
	if err != nil {
		return fmt.Errorf("reject cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	return nil
}

func scanCancellation(row pgx.Row) (*domain.CancellationRequest, error) {
	c := &domain.CancellationRequest{}
	err := row.Scan(
		&c.ID, &c.TransactionID, &c.RequestedBy, &c.Reason,
		&c.RequiresDoubleAuthorization, &c.FirstAuthorizer,
		&c.FirstAuthorizedAt, &c.SecondAuthorizer, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cancellation request: %w", err)
	}
	return c, nil
}
