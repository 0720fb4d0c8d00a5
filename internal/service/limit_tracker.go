package service

import (
	"context"
	"fmt"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LimitConfig holds the per-period caps and the rollover timezone.
// Caps apply per player and transaction type.
type LimitConfig struct {
	DailyMax   decimal.Decimal
	MonthlyMax decimal.Decimal
	Location   *time.Location
}

// DefaultLimitConfig returns the reference policy: daily 5000, monthly
// 50000, local-time rollover.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		DailyMax:   decimal.NewFromInt(5000),
		MonthlyMax: decimal.NewFromInt(50000),
		Location:   time.Local,
	}
}

// LimitTrackerImpl implements ports.LimitTracker. All work happens
// inside the caller's database transaction: the reservation is undone
// automatically when the caller rolls back. Any unexpected failure is
// returned as an internal error, which aborts the money operation:
// the tracker fails closed, never open.
type LimitTrackerImpl struct {
	limitRepo ports.LimitRepository
	cfg       LimitConfig
	log       zerolog.Logger
}

// NewLimitTracker creates a new LimitTrackerImpl.
func NewLimitTracker(limitRepo ports.LimitRepository, cfg LimitConfig, log zerolog.Logger) *LimitTrackerImpl {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &LimitTrackerImpl{
		limitRepo: limitRepo,
		cfg:       cfg,
		log:       log,
	}
}

// Reserve checks and accumulates the requested amount against both the
// daily and the monthly window for (player, type). Windows are created
// lazily and reset on rollover before evaluation. Denial is reported as
// apperror.ErrLimitExceeded; both windows must admit the amount.
func (t *LimitTrackerImpl) Reserve(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, txType domain.TransactionType, amount decimal.Decimal, now time.Time) error {
	periods := []struct {
		period domain.LimitPeriod
		max    decimal.Decimal
	}{
		{domain.LimitPeriodDaily, t.cfg.DailyMax},
		{domain.LimitPeriodMonthly, t.cfg.MonthlyMax},
	}

	for _, p := range periods {
		if err := t.reservePeriod(ctx, tx, playerID, txType, p.period, p.max, amount, now); err != nil {
			return err
		}
	}
	return nil
}

// Check evaluates both windows without accumulating anything. A
// missing or expired row counts as zero usage. Like Reserve, any
// unexpected failure denies.
func (t *LimitTrackerImpl) Check(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, txType domain.TransactionType, amount decimal.Decimal, now time.Time) error {
	periods := []struct {
		period domain.LimitPeriod
		max    decimal.Decimal
	}{
		{domain.LimitPeriodDaily, t.cfg.DailyMax},
		{domain.LimitPeriodMonthly, t.cfg.MonthlyMax},
	}

	for _, p := range periods {
		limit, err := t.limitRepo.GetForUpdate(ctx, tx, playerID, p.period, txType)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lookup %s limit: %w", p.period, err))
		}

		current := decimal.Zero
		max := p.max
		if limit != nil && !limit.Expired(now) {
			current = limit.CurrentAmount
			max = limit.MaxAmount
		}
		if current.Add(amount).GreaterThan(max) {
			t.log.Debug().
				Str("player_id", playerID.String()).
				Str("period", string(p.period)).
				Str("type", string(txType)).
				Str("amount", amount.String()).
				Msg("transaction limit denied")
			return apperror.ErrLimitExceeded(txType == domain.TransactionTypeDeposit)
		}
	}
	return nil
}

func (t *LimitTrackerImpl) reservePeriod(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, txType domain.TransactionType, period domain.LimitPeriod, max, amount decimal.Decimal, now time.Time) error {
	limit, err := t.limitRepo.GetForUpdate(ctx, tx, playerID, period, txType)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup %s limit: %w", period, err))
	}

	start, end := domain.PeriodBounds(period, now, t.cfg.Location)

	if limit == nil {
		limit = &domain.TransactionLimit{
			ID:              uuid.New(),
			PlayerID:        playerID,
			Period:          period,
			TransactionType: txType,
			MaxAmount:       max,
			CurrentAmount:   decimal.Zero,
			PeriodStart:     start,
			PeriodEnd:       end,
		}
		if err := t.limitRepo.Create(ctx, tx, limit); err != nil {
			return apperror.InternalError(fmt.Errorf("create %s limit: %w", period, err))
		}
	} else if limit.Expired(now) {
		if err := t.limitRepo.ResetPeriod(ctx, tx, limit.ID, start, end); err != nil {
			return apperror.InternalError(fmt.Errorf("roll over %s limit: %w", period, err))
		}
		limit.CurrentAmount = decimal.Zero
	}

	ok, err := t.limitRepo.Accumulate(ctx, tx, limit.ID, amount)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("accumulate %s limit: %w", period, err))
	}
	if !ok {
		t.log.Debug().
			Str("player_id", playerID.String()).
			Str("period", string(period)).
			Str("type", string(txType)).
			Str("amount", amount.String()).
			Msg("transaction limit denied")
		return apperror.ErrLimitExceeded(txType == domain.TransactionTypeDeposit)
	}
	return nil
}
