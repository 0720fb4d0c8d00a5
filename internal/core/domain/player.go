package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Player holds a casino player's profile and monetary balance.
// The balance is a fixed-point decimal and is only ever mutated through
// the ledger's conditional updates; it never goes below zero.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	LastName  string          `json:"last_name"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanAfford reports whether the balance covers the given amount.
func (p *Player) CanAfford(amount decimal.Decimal) bool {
	return p.Balance.GreaterThanOrEqual(amount)
}
