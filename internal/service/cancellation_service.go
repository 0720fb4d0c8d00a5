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
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// CancellationConfig holds the authorization-workflow policy.
type CancellationConfig struct {
	// DoubleAuthWindow bounds how long a first authorization stays
	// valid. An expired first authorization is discarded and the next
	// authorizer starts the pair over.
	DoubleAuthWindow time.Duration
}

// DefaultCancellationConfig returns the reference policy.
func DefaultCancellationConfig() CancellationConfig {
	return CancellationConfig{DoubleAuthWindow: 24 * time.Hour}
}

// CancellationServiceImpl implements ports.CancellationService. The
// approve path reverses the original transaction in the same database
// transaction that flips the request state, so the reversal and the
// bookkeeping can never diverge.
type CancellationServiceImpl struct {
	cancelRepo ports.CancellationRepository
	txRepo     ports.TransactionRepository
	playerRepo ports.PlayerRepository
	transactor ports.DBTransactor
	audit      ports.AuditService // nil = audit disabled
	cfg        CancellationConfig
	log        zerolog.Logger
}

// NewCancellationService creates a new CancellationServiceImpl.
func NewCancellationService(
	cancelRepo ports.CancellationRepository,
	txRepo ports.TransactionRepository,
	playerRepo ports.PlayerRepository,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	cfg CancellationConfig,
	log zerolog.Logger,
) *CancellationServiceImpl {
	return &CancellationServiceImpl{
		cancelRepo: cancelRepo,
		txRepo:     txRepo,
		playerRepo: playerRepo,
		transactor: transactor,
		audit:      audit,
		cfg:        cfg,
		log:        log,
	}
}

// Request opens a cancellation request for a completed deposit or
// withdrawal. A transaction admits at most one request.
func (s *CancellationServiceImpl) Request(ctx context.Context, txID, requestedBy uuid.UUID, reason string, requiresDouble bool) (*domain.CancellationRequest, error) {
	txn, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transacción")
	}
	if !txn.IsCancellable() {
		return nil, apperror.ErrNotAuthorizable()
	}

	existing, err := s.cancelRepo.GetByTransactionID(ctx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup cancellation: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrCancellationExists()
	}

	req := &domain.CancellationRequest{
		ID:                          uuid.New(),
		TransactionID:               txID,
		RequestedBy:                 requestedBy,
		Reason:                      reason,
		RequiresDoubleAuthorization: requiresDouble,
		Status:                      domain.CancellationStatusPending,
		CreatedAt:                   time.Now().UTC(),
	}
	if err := s.cancelRepo.Create(ctx, req); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create cancellation: %w", err))
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("tx_id", txID.String()).
		Bool("double_auth", requiresDouble).
		Msg("cancellation requested")

	return req, nil
}

// Authorize advances the request. For single authorization it approves
// and reverses immediately. For double authorization the first call
// records the authorizer and the second call, from a different user,
// completes the pair and reverses. The request row is locked for the
// whole decision, so concurrent authorizers serialize.
func (s *CancellationServiceImpl) Authorize(ctx context.Context, requestID, authorizerID uuid.UUID) (*ports.AuthorizeResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	req, err := s.cancelRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock cancellation: %w", err))
	}
	if req == nil {
		return nil, apperror.ErrNotFound("Solicitud de cancelación")
	}
	if req.Status != domain.CancellationStatusPending {
		return nil, apperror.ErrNotAuthorizable()
	}

	now := time.Now().UTC()

	if req.RequiresDoubleAuthorization {
		if req.FirstAuthorizer == nil || req.FirstAuthorizationExpired(now, s.cfg.DoubleAuthWindow) {
			if err := s.cancelRepo.RecordFirstAuthorization(ctx, dbTx, req.ID, authorizerID, now); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("record first authorization: %w", err))
			}
			if err := dbTx.Commit(ctx); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
			}

			req.FirstAuthorizer = &authorizerID
			req.FirstAuthorizedAt = &now
			s.recordAudit(ctx, authorizerID, domain.AuditActionCancellationFirstAuth, req.ID, "")
			s.log.Info().
				Str("request_id", req.ID.String()).
				Str("authorizer_id", authorizerID.String()).
				Msg("first cancellation authorization recorded")

			return &ports.AuthorizeResult{Outcome: ports.AuthorizeOutcomeFirstRecorded, Request: req}, nil
		}
		if *req.FirstAuthorizer == authorizerID {
			return nil, apperror.ErrSameAuthorizerNotAllowed()
		}
	}

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil || !txn.IsCancellable() {
		return nil, apperror.ErrNotAuthorizable()
	}

	if err := s.reverse(ctx, dbTx, txn); err != nil {
		return nil, err
	}
	if err := s.txRepo.MarkCancelled(ctx, dbTx, txn.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel transaction: %w", err))
	}

	first := authorizerID
	var second *uuid.UUID
	if req.RequiresDoubleAuthorization {
		first = *req.FirstAuthorizer
		second = &authorizerID
	}
	if err := s.cancelRepo.Approve(ctx, dbTx, req.ID, first, second); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("approve cancellation: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	req.Status = domain.CancellationStatusApproved
	req.FirstAuthorizer = &first
	req.SecondAuthorizer = second

	s.recordAudit(ctx, authorizerID, domain.AuditActionCancellationApproved, req.ID, "")
	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("tx_id", txn.ID.String()).
		Str("authorizer_id", authorizerID.String()).
		Msg("cancellation approved and processed")

	return &ports.AuthorizeResult{Outcome: ports.AuthorizeOutcomeProcessed, Request: req}, nil
}

// Reject closes a pending request without touching balances.
func (s *CancellationServiceImpl) Reject(ctx context.Context, requestID, staffID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	req, err := s.cancelRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock cancellation: %w", err))
	}
	if req == nil {
		return apperror.ErrNotFound("Solicitud de cancelación")
	}
	if req.Status != domain.CancellationStatusPending {
		return apperror.ErrNotAuthorizable()
	}

	if err := s.cancelRepo.Reject(ctx, dbTx, req.ID); err != nil {
		return apperror.InternalError(fmt.Errorf("reject cancellation: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.recordAudit(ctx, staffID, domain.AuditActionCancellationRejected, req.ID, "")
	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("staff_id", staffID.String()).
		Msg("cancellation rejected")

	return nil
}

// Get returns a cancellation request by id.
func (s *CancellationServiceImpl) Get(ctx context.Context, requestID uuid.UUID) (*domain.CancellationRequest, error) {
	req, err := s.cancelRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup cancellation: %w", err))
	}
	if req == nil {
		return nil, apperror.ErrNotFound("Solicitud de cancelación")
	}
	return req, nil
}

// reverse undoes the money movement of a completed transaction. A
// cancelled deposit debits the funds back; if the player already spent
// them the reversal fails with insufficient funds and the request stays
// pending. A cancelled withdrawal returns the funds.
func (s *CancellationServiceImpl) reverse(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction) error {
	var err error
	switch txn.TransactionType {
	case domain.TransactionTypeDeposit:
		_, err = s.playerRepo.Debit(ctx, dbTx, txn.PlayerID, txn.Amount)
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return apperror.ErrInsufficientFunds()
		}
	case domain.TransactionTypeWithdrawal:
		_, err = s.playerRepo.Credit(ctx, dbTx, txn.PlayerID, txn.Amount)
	default:
		return apperror.ErrNotAuthorizable()
	}
	if err != nil {
		return apperror.InternalError(fmt.Errorf("reverse %s: %w", txn.TransactionType, err))
	}
	return nil
}

func (s *CancellationServiceImpl) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, actorID, action, "cancellation_request", entityID, detail)
}
