package service

import (
	"context"
	"fmt"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService. Registration creates
// the user and its player wallet in one database transaction.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	playerRepo ports.PlayerRepository
	transactor ports.DBTransactor
	hasher     ports.HashService
	tokens     ports.TokenService
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	playerRepo ports.PlayerRepository,
	transactor ports.DBTransactor,
	hasher ports.HashService,
	tokens ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		playerRepo: playerRepo,
		transactor: transactor,
		hasher:     hasher,
		tokens:     tokens,
		log:        log,
	}
}

// Register creates a user with the player role and an empty wallet.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.Player, error) {
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         domain.RolePlayer,
		CreatedAt:    now,
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	player := &domain.Player{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      req.Name,
		LastName:  req.LastName,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	if err := s.playerRepo.Create(ctx, dbTx, player); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create player: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("player_id", player.ID.String()).
		Msg("player registered")

	return player, nil
}

// Login verifies the credentials and issues a JWT.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("lookup user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiresAt, nil
}
