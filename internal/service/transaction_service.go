package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionConfig holds the money-movement policy for the recorder.
type TransactionConfig struct {
	// AuthorizationThreshold is the withdrawal amount above which a
	// staff authorization is required before the debit applies.
	AuthorizationThreshold decimal.Decimal
}

// DefaultTransactionConfig returns the reference policy: withdrawals
// above 1000 wait for authorization.
func DefaultTransactionConfig() TransactionConfig {
	return TransactionConfig{AuthorizationThreshold: decimal.NewFromInt(1000)}
}

// TransactionServiceImpl implements ports.TransactionService. Every
// money operation runs inside one database transaction: limit
// reservation, balance mutation and status transitions either all
// commit or all roll back.
type TransactionServiceImpl struct {
	playerRepo ports.PlayerRepository
	txRepo     ports.TransactionRepository
	limits     ports.LimitTracker
	transactor ports.DBTransactor
	publisher  ports.EventPublisher // nil = events disabled
	audit      ports.AuditService   // nil = audit disabled
	cfg        TransactionConfig
	log        zerolog.Logger
}

// NewTransactionService creates a new TransactionServiceImpl.
func NewTransactionService(
	playerRepo ports.PlayerRepository,
	txRepo ports.TransactionRepository,
	limits ports.LimitTracker,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	audit ports.AuditService,
	cfg TransactionConfig,
	log zerolog.Logger,
) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		playerRepo: playerRepo,
		txRepo:     txRepo,
		limits:     limits,
		transactor: transactor,
		publisher:  publisher,
		audit:      audit,
		cfg:        cfg,
		log:        log,
	}
}

// Deposit credits the player's balance after the limit reservation
// admits the amount.
func (s *TransactionServiceImpl) Deposit(ctx context.Context, req ports.MoneyRequest) (*ports.MoneyResult, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	player, err := s.playerRepo.GetByID(ctx, req.PlayerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup player: %w", err))
	}
	if player == nil {
		return nil, apperror.ErrNotFound("Jugador")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	if err := s.limits.Reserve(ctx, dbTx, player.ID, domain.TransactionTypeDeposit, req.Amount, now); err != nil {
		return nil, err
	}

	txn := newTransaction(player, domain.TransactionTypeDeposit, req, now)
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	newBalance, err := s.playerRepo.Credit(ctx, dbTx, player.ID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit balance: %w", err))
	}

	if err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, req.RequestedBy, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.ProcessedAt = &now
	txn.ProcessedBy = &req.RequestedBy

	s.publishCompleted(ctx, txn)
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("player_id", player.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("deposit processed")

	return &ports.MoneyResult{Transaction: txn, NewBalance: newBalance}, nil
}

// Withdraw debits the player's balance, or parks the transaction as
// requires-authorization when the amount crosses the threshold. In the
// latter case the balance and the limits stay untouched until a staff
// member resolves it.
func (s *TransactionServiceImpl) Withdraw(ctx context.Context, req ports.MoneyRequest) (*ports.MoneyResult, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	player, err := s.playerRepo.GetByID(ctx, req.PlayerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup player: %w", err))
	}
	if player == nil {
		return nil, apperror.ErrNotFound("Jugador")
	}
	if !player.CanAfford(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	txn := newTransaction(player, domain.TransactionTypeWithdrawal, req, now)

	if req.Amount.GreaterThan(s.cfg.AuthorizationThreshold) {
		// Over-cap requests are denied up front; the reservation itself
		// waits for the authorization decision.
		if err := s.limits.Check(ctx, dbTx, player.ID, domain.TransactionTypeWithdrawal, req.Amount, now); err != nil {
			return nil, err
		}

		txn.RequiresAuthorization = true
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("player_id", player.ID.String()).
			Str("amount", req.Amount.String()).
			Msg("withdrawal parked for authorization")

		return &ports.MoneyResult{
			Transaction:           txn,
			NewBalance:            player.Balance,
			RequiresAuthorization: true,
		}, nil
	}

	if err := s.limits.Reserve(ctx, dbTx, player.ID, domain.TransactionTypeWithdrawal, req.Amount, now); err != nil {
		return nil, err
	}

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	newBalance, err := s.playerRepo.Debit(ctx, dbTx, player.ID, req.Amount)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit balance: %w", err))
	}

	if err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, req.RequestedBy, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.ProcessedAt = &now
	txn.ProcessedBy = &req.RequestedBy

	s.publishCompleted(ctx, txn)
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("player_id", player.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("withdrawal processed")

	return &ports.MoneyResult{Transaction: txn, NewBalance: newBalance}, nil
}

// AuthorizeWithdrawal resolves a parked withdrawal: limits are reserved
// at authorization time, then the debit applies and the transaction
// completes. Staff only; enforced by the HTTP layer and re-checked by
// callers passing a staff identity.
func (s *TransactionServiceImpl) AuthorizeWithdrawal(ctx context.Context, txID, staffID uuid.UUID, notes string) (*ports.MoneyResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transacción")
	}
	if txn.Status != domain.TransactionStatusPending ||
		!txn.RequiresAuthorization ||
		txn.TransactionType != domain.TransactionTypeWithdrawal {
		return nil, apperror.ErrTransactionNotAuthorizable()
	}

	now := time.Now().UTC()

	if err := s.limits.Reserve(ctx, dbTx, txn.PlayerID, domain.TransactionTypeWithdrawal, txn.Amount, now); err != nil {
		return nil, err
	}

	newBalance, err := s.playerRepo.Debit(ctx, dbTx, txn.PlayerID, txn.Amount)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit balance: %w", err))
	}

	if err := s.txRepo.SetAuthorization(ctx, dbTx, txn.ID, staffID, notes); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set authorization: %w", err))
	}
	if err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, staffID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.ProcessedAt = &now
	txn.ProcessedBy = &staffID
	txn.AuthorizedBy = &staffID
	txn.AuthorizationNotes = notes

	s.publishCompleted(ctx, txn)
	s.recordAudit(ctx, staffID, domain.AuditActionWithdrawalAuthorized, txn.ID, notes)
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("staff_id", staffID.String()).
		Str("amount", txn.Amount.String()).
		Msg("withdrawal authorized")

	return &ports.MoneyResult{Transaction: txn, NewBalance: newBalance}, nil
}

// RejectWithdrawal rejects a parked withdrawal; nothing was reserved or
// debited, so only the status flips.
func (s *TransactionServiceImpl) RejectWithdrawal(ctx context.Context, txID, staffID uuid.UUID) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transacción")
	}
	if txn.Status != domain.TransactionStatusPending || !txn.RequiresAuthorization {
		return nil, apperror.ErrTransactionNotAuthorizable()
	}

	if err := s.txRepo.MarkRejected(ctx, dbTx, txn.ID, staffID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reject transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusRejected
	s.recordAudit(ctx, staffID, domain.AuditActionWithdrawalRejected, txn.ID, "")
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("staff_id", staffID.String()).
		Msg("withdrawal rejected")

	return txn, nil
}

// RecordGameResult records a win (credit) or loss (debit) produced by
// the games engine. Game results bypass deposit/withdrawal limits.
func (s *TransactionServiceImpl) RecordGameResult(ctx context.Context, req ports.GameResultRequest) (*ports.MoneyResult, error) {
	if req.Type != domain.TransactionTypeWin && req.Type != domain.TransactionTypeLoss {
		return nil, apperror.Validation("Tipo de transacción inválido")
	}
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	player, err := s.playerRepo.GetByID(ctx, req.PlayerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup player: %w", err))
	}
	if player == nil {
		return nil, apperror.ErrNotFound("Jugador")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:              uuid.New(),
		PlayerID:        player.ID,
		TransactionType: req.Type,
		Amount:          req.Amount,
		Currency:        player.Currency,
		Status:          domain.TransactionStatusPending,
		Origin:          req.Origin,
		Channel:         domain.ChannelAPI,
		CreatedAt:       now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	var newBalance decimal.Decimal
	if req.Type == domain.TransactionTypeWin {
		newBalance, err = s.playerRepo.Credit(ctx, dbTx, player.ID, req.Amount)
	} else {
		newBalance, err = s.playerRepo.Debit(ctx, dbTx, player.ID, req.Amount)
	}
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("apply game result: %w", err))
	}

	if err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, player.UserID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.ProcessedAt = &now

	s.publishCompleted(ctx, txn)
	return &ports.MoneyResult{Transaction: txn, NewBalance: newBalance}, nil
}

// GetBalance returns the player's balance and currency.
func (s *TransactionServiceImpl) GetBalance(ctx context.Context, playerID uuid.UUID) (decimal.Decimal, string, error) {
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return decimal.Zero, "", apperror.InternalError(fmt.Errorf("lookup player: %w", err))
	}
	if player == nil {
		return decimal.Zero, "", apperror.ErrNotFound("Jugador")
	}
	return player.Balance, player.Currency, nil
}

// History lists recorded transactions with filters, newest first.
func (s *TransactionServiceImpl) History(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	items, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return items, total, nil
}

// Summary aggregates completed amounts per type over a date range.
func (s *TransactionServiceImpl) Summary(ctx context.Context, playerID uuid.UUID, from, to *time.Time) (*ports.TransactionSummary, error) {
	summary, err := s.txRepo.Summary(ctx, playerID, from, to)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transaction summary: %w", err))
	}
	return summary, nil
}

func newTransaction(player *domain.Player, txType domain.TransactionType, req ports.MoneyRequest, now time.Time) *domain.Transaction {
	currency := req.Currency
	if currency == "" {
		currency = player.Currency
	}
	return &domain.Transaction{
		ID:              uuid.New(),
		PlayerID:        player.ID,
		TransactionType: txType,
		Amount:          req.Amount,
		Currency:        currency,
		Status:          domain.TransactionStatusPending,
		Origin:          req.Origin,
		Channel:         req.Channel,
		CreatedAt:       now,
	}
}

// publishCompleted emits the post-commit event, best-effort.
func (s *TransactionServiceImpl) publishCompleted(ctx context.Context, txn *domain.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionCompleted(ctx, txn); err != nil {
		s.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to publish transaction event")
	}
}

func (s *TransactionServiceImpl) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, actorID, action, "transaction", entityID, detail)
}
