package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"casino-backend/internal/adapter/http/dto"
	"casino-backend/internal/adapter/http/middleware"
	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/internal/core/ports/mocks"
	"casino-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ==================== Auth Handler Tests ====================

func TestAuthHandler_Register_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	playerID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username: "juan",
		Password: "password123",
		Name:     "Juan",
		LastName: "Pérez",
	}).Return(&domain.Player{
		ID:       playerID,
		Name:     "Juan",
		LastName: "Pérez",
		Balance:  decimal.Zero,
		Currency: "USD",
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "juan",
		Password: "password123",
		Name:     "Juan",
		LastName: "Pérez",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, playerID.String(), resp["id"])
}

func TestAuthHandler_Register_DuplicateUsername(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrUsernameExists())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "juan",
		Password: "password123",
		Name:     "Juan",
		LastName: "Pérez",
	})

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "El nombre de usuario ya existe")
}

func TestAuthHandler_Login_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiresAt := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "juan", "password123").
		Return("jwt-token", expiresAt, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "juan",
		Password: "password123",
	})

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "jwt-token", resp.Token)
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "juan", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "juan",
		Password: "wrong",
	})

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== Transaction Handler Tests ====================

type txHandlerDeps struct {
	txSvc      *mocks.MockTransactionService
	playerRepo *mocks.MockPlayerRepository
}

func setupTransactionHandler(t *testing.T) (*TransactionHandler, *txHandlerDeps) {
	ctrl := gomock.NewController(t)
	deps := &txHandlerDeps{
		txSvc:      mocks.NewMockTransactionService(ctrl),
		playerRepo: mocks.NewMockPlayerRepository(ctrl),
	}
	return NewTransactionHandler(deps.txSvc, deps.playerRepo), deps
}

func handlerPlayer(userID uuid.UUID) *domain.Player {
	return &domain.Player{
		ID:       uuid.New(),
		UserID:   userID,
		Balance:  decimal.NewFromInt(500),
		Currency: "USD",
	}
}

func completedTxn(playerID uuid.UUID, txType domain.TransactionType, amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:              uuid.New(),
		PlayerID:        playerID,
		TransactionType: txType,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		Status:          domain.TransactionStatusCompleted,
		Channel:         domain.ChannelWeb,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestTransactionHandler_Deposit_Success(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)
	txn := completedTxn(player.ID, domain.TransactionTypeDeposit, "100")

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.MoneyRequest) (*ports.MoneyResult, error) {
			assert.Equal(t, player.ID, req.PlayerID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(100)))
			assert.Equal(t, domain.ChannelWeb, req.Channel)
			return &ports.MoneyResult{
				Transaction: txn,
				NewBalance:  decimal.NewFromInt(600),
			}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/deposit", dto.MoneyRequest{
		Amount:  decimal.NewFromInt(100),
		Channel: "web",
	})

	h.Deposit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.MoneyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "600", resp.NewBalance.String())
	assert.Equal(t, txn.ID.String(), resp.Transaction.ID)
}

func TestTransactionHandler_Deposit_LimitExceeded(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrLimitExceeded(true))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/deposit", dto.MoneyRequest{
		Amount: decimal.NewFromInt(6000),
	})

	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Límite de depósito excedido")
}

func TestTransactionHandler_Deposit_UnknownPlayer(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/deposit", dto.MoneyRequest{
		Amount: decimal.NewFromInt(100),
	})

	h.Deposit(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransactionHandler_Withdraw_Direct(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)
	txn := completedTxn(player.ID, domain.TransactionTypeWithdrawal, "200")

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(&ports.MoneyResult{
		Transaction: txn,
		NewBalance:  decimal.NewFromInt(300),
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/withdraw", dto.MoneyRequest{
		Amount: decimal.NewFromInt(200),
	})

	h.Withdraw(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionHandler_Withdraw_RequiresAuthorization(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)
	txn := completedTxn(player.ID, domain.TransactionTypeWithdrawal, "2000")
	txn.Status = domain.TransactionStatusPending
	txn.RequiresAuthorization = true

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(&ports.MoneyResult{
		Transaction:           txn,
		NewBalance:            player.Balance,
		RequiresAuthorization: true,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/withdraw", dto.MoneyRequest{
		Amount: decimal.NewFromInt(2000),
	})

	h.Withdraw(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp dto.PendingAuthorizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Retiro requiere autorización", resp.Message)
	assert.Equal(t, txn.ID.String(), resp.TransactionID)
}

func TestTransactionHandler_Authorize_EmptyBody(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	staffID := uuid.New()
	txn := completedTxn(uuid.New(), domain.TransactionTypeWithdrawal, "2000")

	deps.txSvc.EXPECT().AuthorizeWithdrawal(gomock.Any(), txn.ID, staffID, "").
		Return(&ports.MoneyResult{Transaction: txn, NewBalance: decimal.NewFromInt(100)}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: txn.ID.String()}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+txn.ID.String()+"/authorize", nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionHandler_Authorize_InvalidID(t *testing.T) {
	h, _ := setupTransactionHandler(t)
	staffID := uuid.New()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/transactions/not-a-uuid/authorize", nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionHandler_GameResult_Success(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	playerID := uuid.New()
	txn := completedTxn(playerID, domain.TransactionTypeWin, "75")

	deps.txSvc.EXPECT().RecordGameResult(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.GameResultRequest) (*ports.MoneyResult, error) {
			assert.Equal(t, playerID, req.PlayerID)
			assert.Equal(t, domain.TransactionTypeWin, req.Type)
			return &ports.MoneyResult{Transaction: txn, NewBalance: decimal.NewFromInt(575)}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, uuid.New())
	c.Request = jsonRequest(http.MethodPost, "/api/v1/transactions/game-result", dto.GameResultRequest{
		PlayerID: playerID.String(),
		Type:     "win",
		Amount:   decimal.NewFromInt(75),
	})

	h.GameResult(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionHandler_Balance(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().GetBalance(gomock.Any(), player.ID).
		Return(decimal.NewFromInt(500), "USD", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/players/balance", nil)

	h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "500", resp.Balance.String())
	assert.Equal(t, "USD", resp.Currency)
}

func TestTransactionHandler_History_Pagination(t *testing.T) {
	h, deps := setupTransactionHandler(t)
	userID := uuid.New()
	player := handlerPlayer(userID)
	txn := completedTxn(player.ID, domain.TransactionTypeDeposit, "50")

	deps.playerRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(player, nil)
	deps.txSvc.EXPECT().History(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, &player.ID, params.PlayerID)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			require.NotNil(t, params.Type)
			assert.Equal(t, domain.TransactionTypeDeposit, *params.Type)
			return []domain.Transaction{*txn}, int64(25), nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, userID)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/transactions?type=deposit&page=2&page_size=10", nil)

	h.History(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.TransactionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(25), resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Len(t, resp.Items, 1)
}

// ==================== Cancellation Handler Tests ====================

func setupCancellationHandler(t *testing.T) (*CancellationHandler, *mocks.MockCancellationService) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCancellationService(ctrl)
	return NewCancellationHandler(svc), svc
}

func TestCancellationHandler_Request_Success(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	txID := uuid.New()

	svc.EXPECT().Request(gomock.Any(), txID, staffID, "customer dispute", true).
		Return(&domain.CancellationRequest{
			ID:                          uuid.New(),
			TransactionID:               txID,
			RequestedBy:                 staffID,
			Reason:                      "customer dispute",
			RequiresDoubleAuthorization: true,
			Status:                      domain.CancellationStatusPending,
			CreatedAt:                   time.Now().UTC(),
		}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/cancellations", dto.CancellationRequest{
		TransactionID:      txID.String(),
		Reason:             "customer dispute",
		RequiresDoubleAuth: true,
	})

	h.Request(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp dto.CancellationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.CancellationStatusPending), resp.Status)
}

func TestCancellationHandler_Request_AlreadyExists(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	txID := uuid.New()

	svc.EXPECT().Request(gomock.Any(), txID, staffID, "dup", false).
		Return(nil, apperror.ErrCancellationExists())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Request = jsonRequest(http.MethodPost, "/api/v1/cancellations", dto.CancellationRequest{
		TransactionID: txID.String(),
		Reason:        "dup",
	})

	h.Request(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancellationHandler_Authorize_FirstRecorded(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	reqID := uuid.New()

	svc.EXPECT().Authorize(gomock.Any(), reqID, staffID).Return(&ports.AuthorizeResult{
		Outcome: ports.AuthorizeOutcomeFirstRecorded,
		Request: &domain.CancellationRequest{
			ID:                          reqID,
			RequiresDoubleAuthorization: true,
			FirstAuthorizer:             &staffID,
			Status:                      domain.CancellationStatusPending,
		},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: reqID.String()}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/cancellations/"+reqID.String()+"/authorize", nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Primera autorización registrada")
}

func TestCancellationHandler_Authorize_Processed(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	reqID := uuid.New()

	svc.EXPECT().Authorize(gomock.Any(), reqID, staffID).Return(&ports.AuthorizeResult{
		Outcome: ports.AuthorizeOutcomeProcessed,
		Request: &domain.CancellationRequest{
			ID:     reqID,
			Status: domain.CancellationStatusApproved,
		},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: reqID.String()}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/cancellations/"+reqID.String()+"/authorize", nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cancelación autorizada y procesada")
}

func TestCancellationHandler_Authorize_SameAuthorizer(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	reqID := uuid.New()

	svc.EXPECT().Authorize(gomock.Any(), reqID, staffID).
		Return(nil, apperror.ErrSameAuthorizerNotAllowed())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: reqID.String()}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/cancellations/"+reqID.String()+"/authorize", nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "El mismo autorizador no puede registrar ambas autorizaciones")
}

func TestCancellationHandler_Reject(t *testing.T) {
	h, svc := setupCancellationHandler(t)
	staffID := uuid.New()
	reqID := uuid.New()

	svc.EXPECT().Reject(gomock.Any(), reqID, staffID).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxUserID, staffID)
	c.Params = gin.Params{{Key: "id", Value: reqID.String()}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/cancellations/"+reqID.String()+"/reject", nil)

	h.Reject(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Solicitud de cancelación rechazada")
}
