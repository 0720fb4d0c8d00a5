package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LimitRepo implements ports.LimitRepository. The cap check is embedded
// in the UPDATE's WHERE clause so a concurrent reservation can never
// push current_amount past max_amount.
type LimitRepo struct {
	pool Pool
}

// NewLimitRepo creates a new LimitRepo.
func NewLimitRepo(pool Pool) *LimitRepo {
	return &LimitRepo{pool: pool}
}

// GetForUpdate fetches the limit row for (player, period, type) with a
// row lock, or nil when no row exists yet. This MUST be called within a
// transaction.
func (r *LimitRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, period domain.LimitPeriod, txType domain.TransactionType) (*domain.TransactionLimit, error) {
	query := `SELECT id, player_id, period, transaction_type, max_amount, current_amount, period_start, period_end
		FROM transaction_limits
		WHERE player_id = $1 AND period = $2 AND transaction_type = $3 FOR UPDATE`

	l := &domain.TransactionLimit{}
	err := tx.QueryRow(ctx, query, playerID, period, txType).Scan(
		&l.ID, &l.PlayerID, &l.Period, &l.TransactionType,
		&l.MaxAmount, &l.CurrentAmount, &l.PeriodStart, &l.PeriodEnd,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get limit for update: %w", err)
	}
	return l, nil
}

// Create inserts a fresh limit row within a database transaction.
func (r *LimitRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.TransactionLimit) error {
	query := `INSERT INTO transaction_limits (id, player_id, period, transaction_type, max_amount, current_amount, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		l.ID, l.PlayerID, l.Period, l.TransactionType,
		l.MaxAmount, l.CurrentAmount, l.PeriodStart, l.PeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("insert limit: %w", err)
	}
	return nil
}

// ResetPeriod zeroes the cumulative amount and advances window bounds
// after a rollover.
func (r *LimitRepo) ResetPeriod(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error {
	query := `UPDATE transaction_limits SET current_amount = 0, period_start = $1, period_end = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, start, end, id)
	if err != nil {
		return fmt.Errorf("reset limit period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("limit not found: %s", id)
	}
	return nil
}

// Accumulate increments current_amount by amount only while the cap
// holds. Returns false when the cap would be breached.
func (r *LimitRepo) Accumulate(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `UPDATE transaction_limits SET current_amount = current_amount + $2
		WHERE id = $1 AND current_amount + $2 <= max_amount`

	tag, err := tx.Exec(ctx, query, id, amount)
	if err != nil {
		return false, fmt.Errorf("accumulate limit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
