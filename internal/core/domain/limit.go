package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LimitPeriod is the tracking window of a transaction limit.
type LimitPeriod string

const (
	LimitPeriodDaily   LimitPeriod = "daily"
	LimitPeriodMonthly LimitPeriod = "monthly"
)

// TransactionLimit tracks cumulative amounts per player, period and
// transaction type against a configured maximum. Unique per
// (player, period, transaction_type). The invariant
// current_amount <= max_amount is enforced before any increment.
type TransactionLimit struct {
	ID              uuid.UUID       `json:"id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	Period          LimitPeriod     `json:"period"`
	TransactionType TransactionType `json:"transaction_type"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
	CurrentAmount   decimal.Decimal `json:"current_amount"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
}

// Expired reports whether the limit window has rolled over.
// PeriodEnd is exclusive.
func (l *TransactionLimit) Expired(now time.Time) bool {
	return !now.Before(l.PeriodEnd)
}

// Remaining returns the amount still available in the window.
func (l *TransactionLimit) Remaining() decimal.Decimal {
	return l.MaxAmount.Sub(l.CurrentAmount)
}

// PeriodBounds computes the [start, end) window containing now for the
// given period in the supplied location. Daily windows roll over at
// local midnight, monthly windows on the first of the month.
func PeriodBounds(period LimitPeriod, now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	switch period {
	case LimitPeriodMonthly:
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1)
	}
}
