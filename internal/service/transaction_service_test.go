package service

import (
	"context"
	"testing"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/internal/core/ports/mocks"
	"casino-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

type txTestDeps struct {
	svc        *TransactionServiceImpl
	playerRepo *mocks.MockPlayerRepository
	txRepo     *mocks.MockTransactionRepository
	limits     *mocks.MockLimitTracker
	transactor *mocks.MockDBTransactor
	publisher  *mocks.MockEventPublisher
	ctrl       *gomock.Controller
}

func setupTransactionService(t *testing.T) *txTestDeps {
	ctrl := gomock.NewController(t)
	d := &txTestDeps{
		playerRepo: mocks.NewMockPlayerRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		limits:     mocks.NewMockLimitTracker(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		publisher:  mocks.NewMockEventPublisher(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewTransactionService(
		d.playerRepo, d.txRepo, d.limits, d.transactor,
		d.publisher, nil, DefaultTransactionConfig(), newTestLogger(),
	)
	return d
}

func testPlayer(balance string) *domain.Player {
	b, _ := decimal.NewFromString(balance)
	return &domain.Player{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Balance:  b,
		Currency: "USD",
	}
}

// ==================== Deposit Tests ====================

func TestTransactionService_Deposit_Success(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("100.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("250.50")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.limits.EXPECT().Reserve(ctx, tx, player.ID, domain.TransactionTypeDeposit, amount, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Credit(ctx, tx, player.ID, amount).Return(decimal.RequireFromString("350.50"), nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, gomock.Any(), player.UserID, gomock.Any()).Return(nil)
	d.publisher.EXPECT().PublishTransactionCompleted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Deposit(ctx, ports.MoneyRequest{
		PlayerID:    player.ID,
		RequestedBy: player.UserID,
		Amount:      amount,
		Channel:     domain.ChannelWeb,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("350.50")))
	assert.False(t, result.RequiresAuthorization)
}

func TestTransactionService_Deposit_InvalidAmount(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	for _, amount := range []string{"0", "-5", "-0.01"} {
		_, err := d.svc.Deposit(context.Background(), ports.MoneyRequest{
			PlayerID: uuid.New(),
			Amount:   decimal.RequireFromString(amount),
		})
		require.Error(t, err)
		appErr, ok := err.(*apperror.AppError)
		require.True(t, ok)
		assert.Equal(t, "Monto inválido", appErr.Message)
	}
}

func TestTransactionService_Deposit_LimitExceeded(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("0")
	tx := &mockTx{}
	amount := decimal.NewFromInt(6000)

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.limits.EXPECT().
		Reserve(ctx, tx, player.ID, domain.TransactionTypeDeposit, amount, gomock.Any()).
		Return(apperror.ErrLimitExceeded(true))

	_, err := d.svc.Deposit(ctx, ports.MoneyRequest{PlayerID: player.ID, Amount: amount})
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Límite de depósito excedido", appErr.Message)
}

func TestTransactionService_Deposit_PlayerNotFound(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	playerID := uuid.New()
	d.playerRepo.EXPECT().GetByID(ctx, playerID).Return(nil, nil)

	_, err := d.svc.Deposit(ctx, ports.MoneyRequest{PlayerID: playerID, Amount: decimal.NewFromInt(10)})
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, 404, appErr.HTTPStatus)
}

// ==================== Withdraw Tests ====================

func TestTransactionService_Withdraw_Success(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("500.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("200.00")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.limits.EXPECT().Reserve(ctx, tx, player.ID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Debit(ctx, tx, player.ID, amount).Return(decimal.RequireFromString("300.00"), nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, gomock.Any(), player.UserID, gomock.Any()).Return(nil)
	d.publisher.EXPECT().PublishTransactionCompleted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Withdraw(ctx, ports.MoneyRequest{
		PlayerID:    player.ID,
		RequestedBy: player.UserID,
		Amount:      amount,
		Channel:     domain.ChannelMobile,
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("300.00")))
	assert.False(t, result.RequiresAuthorization)
}

func TestTransactionService_Withdraw_InsufficientFunds(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("50.00")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)

	_, err := d.svc.Withdraw(ctx, ports.MoneyRequest{
		PlayerID: player.ID,
		Amount:   decimal.NewFromInt(100),
	})
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Saldo insuficiente", appErr.Message)
}

func TestTransactionService_Withdraw_ConcurrentDebitLoses(t *testing.T) {
	// The pre-check passes but the conditional debit fails because a
	// concurrent withdrawal drained the balance first.
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("100.00")
	tx := &mockTx{}
	amount := decimal.NewFromInt(100)

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.limits.EXPECT().Reserve(ctx, tx, player.ID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Debit(ctx, tx, player.ID, amount).Return(decimal.Zero, ports.ErrInsufficientBalance)

	_, err := d.svc.Withdraw(ctx, ports.MoneyRequest{PlayerID: player.ID, Amount: amount})
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Saldo insuficiente", appErr.Message)
}

func TestTransactionService_Withdraw_AboveThresholdParks(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("5000.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("1500.00")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// The caps are checked but not reserved, and no debit happens: the
	// transaction only gets recorded.
	d.limits.EXPECT().Check(ctx, tx, player.ID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.True(t, txn.RequiresAuthorization)
			assert.Equal(t, domain.TransactionStatusPending, txn.Status)
			return nil
		},
	)

	result, err := d.svc.Withdraw(ctx, ports.MoneyRequest{PlayerID: player.ID, Amount: amount})
	require.NoError(t, err)
	assert.True(t, result.RequiresAuthorization)
	assert.Equal(t, domain.TransactionStatusPending, result.Transaction.Status)
	// Balance untouched.
	assert.True(t, result.NewBalance.Equal(player.Balance))
}

func TestTransactionService_Withdraw_AboveThresholdOverCapDenied(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("5000.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("2000.00")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// The cap is already exhausted: nothing gets parked.
	d.limits.EXPECT().
		Check(ctx, tx, player.ID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).
		Return(apperror.ErrLimitExceeded(false))

	_, err := d.svc.Withdraw(ctx, ports.MoneyRequest{PlayerID: player.ID, Amount: amount})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TXN_003", appErr.Code)
	assert.Equal(t, "Límite de retiro excedido", appErr.Message)
	assert.False(t, tx.committed)
}

func TestTransactionService_Withdraw_ExactlyThresholdProcessesDirectly(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("5000.00")
	tx := &mockTx{}
	amount := decimal.NewFromInt(1000) // not strictly greater than threshold

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.limits.EXPECT().Reserve(ctx, tx, player.ID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Debit(ctx, tx, player.ID, amount).Return(decimal.NewFromInt(4000), nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.publisher.EXPECT().PublishTransactionCompleted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Withdraw(ctx, ports.MoneyRequest{PlayerID: player.ID, Amount: amount})
	require.NoError(t, err)
	assert.False(t, result.RequiresAuthorization)
}

// ==================== AuthorizeWithdrawal Tests ====================

func TestTransactionService_AuthorizeWithdrawal_Success(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	staffID := uuid.New()
	playerID := uuid.New()
	amount := decimal.RequireFromString("2000.00")
	txn := &domain.Transaction{
		ID:                    uuid.New(),
		PlayerID:              playerID,
		TransactionType:       domain.TransactionTypeWithdrawal,
		Amount:                amount,
		Currency:              "USD",
		Status:                domain.TransactionStatusPending,
		RequiresAuthorization: true,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.limits.EXPECT().Reserve(ctx, tx, playerID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Debit(ctx, tx, playerID, amount).Return(decimal.NewFromInt(3000), nil)
	d.txRepo.EXPECT().SetAuthorization(ctx, tx, txn.ID, staffID, "ok").Return(nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, txn.ID, staffID, gomock.Any()).Return(nil)
	d.publisher.EXPECT().PublishTransactionCompleted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.AuthorizeWithdrawal(ctx, txn.ID, staffID, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	require.NotNil(t, result.Transaction.AuthorizedBy)
	assert.Equal(t, staffID, *result.Transaction.AuthorizedBy)
}

func TestTransactionService_AuthorizeWithdrawal_NotAuthorizable(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	txn := &domain.Transaction{
		ID:              uuid.New(),
		TransactionType: domain.TransactionTypeWithdrawal,
		Status:          domain.TransactionStatusCompleted,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)

	_, err := d.svc.AuthorizeWithdrawal(ctx, txn.ID, uuid.New(), "")
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "No se puede autorizar", appErr.Message)
}

func TestTransactionService_AuthorizeWithdrawal_LimitCheckedAtAuthorization(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	playerID := uuid.New()
	amount := decimal.NewFromInt(2000)
	txn := &domain.Transaction{
		ID:                    uuid.New(),
		PlayerID:              playerID,
		TransactionType:       domain.TransactionTypeWithdrawal,
		Amount:                amount,
		Status:                domain.TransactionStatusPending,
		RequiresAuthorization: true,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.limits.EXPECT().
		Reserve(ctx, tx, playerID, domain.TransactionTypeWithdrawal, amount, gomock.Any()).
		Return(apperror.ErrLimitExceeded(false))

	_, err := d.svc.AuthorizeWithdrawal(ctx, txn.ID, uuid.New(), "")
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Límite de retiro excedido", appErr.Message)
}

// ==================== RejectWithdrawal Tests ====================

func TestTransactionService_RejectWithdrawal_Success(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	staffID := uuid.New()
	txn := &domain.Transaction{
		ID:                    uuid.New(),
		TransactionType:       domain.TransactionTypeWithdrawal,
		Status:                domain.TransactionStatusPending,
		RequiresAuthorization: true,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().MarkRejected(ctx, tx, txn.ID, staffID).Return(nil)

	result, err := d.svc.RejectWithdrawal(ctx, txn.ID, staffID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusRejected, result.Status)
}

// ==================== RecordGameResult Tests ====================

func TestTransactionService_RecordGameResult_Win(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("100.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("75.25")

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Credit(ctx, tx, player.ID, amount).Return(decimal.RequireFromString("175.25"), nil)
	d.txRepo.EXPECT().MarkCompleted(ctx, tx, gomock.Any(), player.UserID, gomock.Any()).Return(nil)
	d.publisher.EXPECT().PublishTransactionCompleted(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.RecordGameResult(ctx, ports.GameResultRequest{
		PlayerID: player.ID,
		Type:     domain.TransactionTypeWin,
		Amount:   amount,
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("175.25")))
}

func TestTransactionService_RecordGameResult_LossInsufficient(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("10.00")
	tx := &mockTx{}
	amount := decimal.NewFromInt(50)

	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.playerRepo.EXPECT().Debit(ctx, tx, player.ID, amount).Return(decimal.Zero, ports.ErrInsufficientBalance)

	_, err := d.svc.RecordGameResult(ctx, ports.GameResultRequest{
		PlayerID: player.ID,
		Type:     domain.TransactionTypeLoss,
		Amount:   amount,
	})
	require.Error(t, err)
	appErr := err.(*apperror.AppError)
	assert.Equal(t, "Saldo insuficiente", appErr.Message)
}

func TestTransactionService_RecordGameResult_RejectsOtherTypes(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.RecordGameResult(context.Background(), ports.GameResultRequest{
		PlayerID: uuid.New(),
		Type:     domain.TransactionTypeDeposit,
		Amount:   decimal.NewFromInt(10),
	})
	require.Error(t, err)
}

// ==================== Query Tests ====================

func TestTransactionService_GetBalance(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	player := testPlayer("123.45")
	d.playerRepo.EXPECT().GetByID(ctx, player.ID).Return(player, nil)

	balance, currency, err := d.svc.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, "123.45", balance.StringFixed(2))
	assert.Equal(t, "USD", currency)
}

func TestTransactionService_Summary(t *testing.T) {
	d := setupTransactionService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	playerID := uuid.New()
	from := time.Now().Add(-24 * time.Hour)

	d.txRepo.EXPECT().Summary(ctx, playerID, &from, nil).Return(&ports.TransactionSummary{
		TotalDeposits:    decimal.NewFromInt(500),
		TransactionCount: 3,
	}, nil)

	summary, err := d.svc.Summary(ctx, playerID, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TransactionCount)
}
