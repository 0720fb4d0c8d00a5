package postgres

import (
	"context"
	"errors"
	"fmt"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PlayerRepo implements ports.PlayerRepository. Balance mutations are
// single conditional UPDATE statements so concurrent operations on the
// same player never lose updates.
type PlayerRepo struct {
	pool Pool
}

// NewPlayerRepo creates a new PlayerRepo.
func NewPlayerRepo(pool Pool) *PlayerRepo {
	return &PlayerRepo{pool: pool}
}

// Create inserts a new player within a database transaction.
func (r *PlayerRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Player) error {
	query := `INSERT INTO players (id, user_id, name, last_name, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.Name, p.LastName, p.Balance, p.Currency,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// GetByID fetches a player by its UUID (non-locking read).
func (r *PlayerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	query := `SELECT id, user_id, name, last_name, balance, currency, created_at, updated_at
		FROM players WHERE id = $1`

	return scanPlayer(r.pool.QueryRow(ctx, query, id))
}

// GetByUserID fetches the player owned by the given user.
func (r *PlayerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Player, error) {
	query := `SELECT id, user_id, name, last_name, balance, currency, created_at, updated_at
		FROM players WHERE user_id = $1`

	return scanPlayer(r.pool.QueryRow(ctx, query, userID))
}

// Credit adds amount to the player's balance and returns the new value.
func (r *PlayerRepo) Credit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE players SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRow(ctx, query, playerID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("player not found: %s", playerID)
		}
		return decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// Debit subtracts amount from the player's balance only when the
// balance covers it. The guard lives in the WHERE clause, so the
// check and the mutation are one atomic statement.
func (r *PlayerRepo) Debit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE players SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2 RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRow(ctx, query, playerID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ports.ErrInsufficientBalance
		}
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}
	return balance, nil
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	p := &domain.Player{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.LastName, &p.Balance, &p.Currency,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return p, nil
}
