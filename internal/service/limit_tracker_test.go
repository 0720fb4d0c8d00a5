package service

import (
	"context"
	"testing"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports/mocks"
	"casino-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupLimitTracker(t *testing.T) (*LimitTrackerImpl, *mocks.MockLimitRepository, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockLimitRepository(ctrl)
	tracker := NewLimitTracker(repo, LimitConfig{
		DailyMax:   decimal.NewFromInt(5000),
		MonthlyMax: decimal.NewFromInt(50000),
		Location:   time.UTC,
	}, newTestLogger())
	return tracker, repo, ctrl
}

func activeLimit(playerID uuid.UUID, period domain.LimitPeriod, max, current int64, now time.Time) *domain.TransactionLimit {
	start, end := domain.PeriodBounds(period, now, time.UTC)
	return &domain.TransactionLimit{
		ID:              uuid.New(),
		PlayerID:        playerID,
		Period:          period,
		TransactionType: domain.TransactionTypeDeposit,
		MaxAmount:       decimal.NewFromInt(max),
		CurrentAmount:   decimal.NewFromInt(current),
		PeriodStart:     start,
		PeriodEnd:       end,
	}
}

func TestLimitTracker_Reserve_WithinBothWindows(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1000)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 4000, now)
	monthly := activeLimit(playerID, domain.LimitPeriodMonthly, 50000, 10000, now)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).Return(daily, nil)
	repo.EXPECT().Accumulate(ctx, tx, daily.ID, amount).Return(true, nil)
	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodMonthly, domain.TransactionTypeDeposit).Return(monthly, nil)
	repo.EXPECT().Accumulate(ctx, tx, monthly.ID, amount).Return(true, nil)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeDeposit, amount, now)
	require.NoError(t, err)
}

func TestLimitTracker_Reserve_DailyCapDenies(t *testing.T) {
	// 4000 already accumulated, 1500 requested, cap 5000.
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1500)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 4000, now)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).Return(daily, nil)
	repo.EXPECT().Accumulate(ctx, tx, daily.ID, amount).Return(false, nil)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeDeposit, amount, now)
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Límite de depósito excedido", appErr.Message)
}

func TestLimitTracker_Reserve_WithdrawalDenialMessage(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Now()
	amount := decimal.NewFromInt(9000)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 0, now)
	daily.TransactionType = domain.TransactionTypeWithdrawal

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeWithdrawal).Return(daily, nil)
	repo.EXPECT().Accumulate(ctx, tx, daily.ID, amount).Return(false, nil)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeWithdrawal, amount, now)
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Límite de retiro excedido", appErr.Message)
}

func TestLimitTracker_Reserve_CreatesMissingWindows(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(100)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).Return(nil, nil)
	repo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ interface{}, limit *domain.TransactionLimit) error {
			assert.Equal(t, domain.LimitPeriodDaily, limit.Period)
			assert.True(t, limit.MaxAmount.Equal(decimal.NewFromInt(5000)))
			assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), limit.PeriodStart)
			assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), limit.PeriodEnd)
			return nil
		},
	)
	repo.EXPECT().Accumulate(ctx, tx, gomock.Any(), amount).Return(true, nil)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodMonthly, domain.TransactionTypeDeposit).Return(nil, nil)
	repo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ interface{}, limit *domain.TransactionLimit) error {
			assert.Equal(t, domain.LimitPeriodMonthly, limit.Period)
			assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), limit.PeriodStart)
			assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), limit.PeriodEnd)
			return nil
		},
	)
	repo.EXPECT().Accumulate(ctx, tx, gomock.Any(), amount).Return(true, nil)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeDeposit, amount, now)
	require.NoError(t, err)
}

func TestLimitTracker_Reserve_RollsOverExpiredWindow(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	yesterday := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) // midnight boundary is exclusive
	amount := decimal.NewFromInt(100)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 5000, yesterday)
	monthly := activeLimit(playerID, domain.LimitPeriodMonthly, 50000, 5000, now)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).Return(daily, nil)
	repo.EXPECT().ResetPeriod(ctx, tx, daily.ID,
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	).Return(nil)
	repo.EXPECT().Accumulate(ctx, tx, daily.ID, amount).Return(true, nil)
	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodMonthly, domain.TransactionTypeDeposit).Return(monthly, nil)
	repo.EXPECT().Accumulate(ctx, tx, monthly.ID, amount).Return(true, nil)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeDeposit, amount, now)
	require.NoError(t, err)
}

func TestLimitTracker_Check_DoesNotAccumulate(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1000)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 4000, now)
	monthly := activeLimit(playerID, domain.LimitPeriodMonthly, 50000, 10000, now)

	// Only reads: no Create, ResetPeriod or Accumulate calls.
	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeWithdrawal).Return(daily, nil)
	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodMonthly, domain.TransactionTypeWithdrawal).Return(monthly, nil)

	err := tracker.Check(ctx, tx, playerID, domain.TransactionTypeWithdrawal, amount, now)
	require.NoError(t, err)
}

func TestLimitTracker_Check_DeniesOverCap(t *testing.T) {
	// 4000 already accumulated, 1500 requested, cap 5000.
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1500)

	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 4000, now)
	daily.TransactionType = domain.TransactionTypeWithdrawal

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeWithdrawal).Return(daily, nil)

	err := tracker.Check(ctx, tx, playerID, domain.TransactionTypeWithdrawal, amount, now)
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Límite de retiro excedido", appErr.Message)
}

func TestLimitTracker_Check_MissingAndExpiredWindowsCountAsZero(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	yesterday := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(4500)

	// The daily window is stale and full; the monthly row is missing.
	daily := activeLimit(playerID, domain.LimitPeriodDaily, 5000, 5000, yesterday)

	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).Return(daily, nil)
	repo.EXPECT().GetForUpdate(ctx, tx, playerID, domain.LimitPeriodMonthly, domain.TransactionTypeDeposit).Return(nil, nil)

	err := tracker.Check(ctx, tx, playerID, domain.TransactionTypeDeposit, amount, now)
	require.NoError(t, err)
}

func TestLimitTracker_Check_FailsClosedOnRepoError(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Now()

	repo.EXPECT().
		GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeWithdrawal).
		Return(nil, assert.AnError)

	err := tracker.Check(ctx, tx, playerID, domain.TransactionTypeWithdrawal, decimal.NewFromInt(1), now)
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, 500, appErr.HTTPStatus)
}

func TestLimitTracker_Reserve_FailsClosedOnRepoError(t *testing.T) {
	tracker, repo, ctrl := setupLimitTracker(t)
	defer ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	now := time.Now()

	repo.EXPECT().
		GetForUpdate(ctx, tx, playerID, domain.LimitPeriodDaily, domain.TransactionTypeDeposit).
		Return(nil, assert.AnError)

	err := tracker.Reserve(ctx, tx, playerID, domain.TransactionTypeDeposit, decimal.NewFromInt(1), now)
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, 500, appErr.HTTPStatus)
}
