package handler

import (
	"strconv"
	"time"

	"casino-backend/internal/adapter/http/dto"
	"casino-backend/internal/adapter/http/middleware"
	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"
	"casino-backend/pkg/apperror"
	"casino-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler handles money-movement and query endpoints.
type TransactionHandler struct {
	txSvc      ports.TransactionService
	playerRepo ports.PlayerRepository
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txSvc ports.TransactionService, playerRepo ports.PlayerRepository) *TransactionHandler {
	return &TransactionHandler{txSvc: txSvc, playerRepo: playerRepo}
}

// callerPlayer resolves the authenticated user's player row.
func (h *TransactionHandler) callerPlayer(c *gin.Context) (*domain.Player, bool) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}
	player, err := h.playerRepo.GetByUserID(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return nil, false
	}
	if player == nil {
		response.Error(c, apperror.ErrNotFound("Jugador"))
		return nil, false
	}
	return player, true
}

// Deposit handles POST /api/v1/transactions/deposit.
func (h *TransactionHandler) Deposit(c *gin.Context) {
	player, ok := h.callerPlayer(c)
	if !ok {
		return
	}

	var req dto.MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.txSvc.Deposit(c.Request.Context(), ports.MoneyRequest{
		PlayerID:    player.ID,
		RequestedBy: player.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Origin:      req.Origin,
		Channel:     channelOrDefault(req.Channel),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MoneyResponse{
		Transaction: dto.FromTransaction(result.Transaction),
		NewBalance:  result.NewBalance,
	})
}

// Withdraw handles POST /api/v1/transactions/withdraw.
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	player, ok := h.callerPlayer(c)
	if !ok {
		return
	}

	var req dto.MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.txSvc.Withdraw(c.Request.Context(), ports.MoneyRequest{
		PlayerID:    player.ID,
		RequestedBy: player.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Origin:      req.Origin,
		Channel:     channelOrDefault(req.Channel),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.RequiresAuthorization {
		response.Accepted(c, dto.PendingAuthorizationResponse{
			Message:       "Retiro requiere autorización",
			TransactionID: result.Transaction.ID.String(),
		})
		return
	}

	response.OK(c, dto.MoneyResponse{
		Transaction: dto.FromTransaction(result.Transaction),
		NewBalance:  result.NewBalance,
	})
}

// GameResult handles POST /api/v1/transactions/game-result. Staff only:
// the games engine reports through a service account.
func (h *TransactionHandler) GameResult(c *gin.Context) {
	var req dto.GameResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		response.Error(c, apperror.Validation("player_id inválido"))
		return
	}

	result, err := h.txSvc.RecordGameResult(c.Request.Context(), ports.GameResultRequest{
		PlayerID: playerID,
		Type:     domain.TransactionType(req.Type),
		Amount:   req.Amount,
		Origin:   req.Origin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MoneyResponse{
		Transaction: dto.FromTransaction(result.Transaction),
		NewBalance:  result.NewBalance,
	})
}

// Authorize handles POST /api/v1/transactions/:id/authorize. Staff only.
func (h *TransactionHandler) Authorize(c *gin.Context) {
	staffID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id inválido"))
		return
	}

	// Notes body is optional.
	var req dto.AuthorizeWithdrawalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	result, err := h.txSvc.AuthorizeWithdrawal(c.Request.Context(), txID, staffID.(uuid.UUID), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MoneyResponse{
		Transaction: dto.FromTransaction(result.Transaction),
		NewBalance:  result.NewBalance,
	})
}

// Reject handles POST /api/v1/transactions/:id/reject. Staff only.
func (h *TransactionHandler) Reject(c *gin.Context) {
	staffID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id inválido"))
		return
	}

	txn, err := h.txSvc.RejectWithdrawal(c.Request.Context(), txID, staffID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTransaction(txn))
}

// Balance handles GET /api/v1/players/balance.
func (h *TransactionHandler) Balance(c *gin.Context) {
	player, ok := h.callerPlayer(c)
	if !ok {
		return
	}

	balance, currency, err := h.txSvc.GetBalance(c.Request.Context(), player.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance, Currency: currency})
}

// History handles GET /api/v1/transactions.
func (h *TransactionHandler) History(c *gin.Context) {
	player, ok := h.callerPlayer(c)
	if !ok {
		return
	}

	params := ports.TransactionListParams{PlayerID: &player.ID}
	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if from, ok := parseTimeQuery(c, "from"); ok {
		params.From = from
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		params.To = to
	}
	params.Page = intQuery(c, "page", 1)
	params.PageSize = intQuery(c, "page_size", 20)

	items, total, err := h.txSvc.History(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TransactionListResponse{
		Items:    make([]dto.TransactionResponse, 0, len(items)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range items {
		resp.Items = append(resp.Items, dto.FromTransaction(&items[i]))
	}
	if params.PageSize > 0 {
		resp.TotalPages = int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	}

	response.OK(c, resp)
}

// Summary handles GET /api/v1/transactions/summary.
func (h *TransactionHandler) Summary(c *gin.Context) {
	player, ok := h.callerPlayer(c)
	if !ok {
		return
	}

	var from, to *time.Time
	if f, ok := parseTimeQuery(c, "from"); ok {
		from = f
	}
	if t, ok := parseTimeQuery(c, "to"); ok {
		to = t
	}

	summary, err := h.txSvc.Summary(c.Request.Context(), player.ID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SummaryResponse{
		TotalDeposits:    summary.TotalDeposits,
		TotalWithdrawals: summary.TotalWithdrawals,
		TotalWins:        summary.TotalWins,
		TotalLosses:      summary.TotalLosses,
		TransactionCount: summary.TransactionCount,
	})
}

func channelOrDefault(ch string) domain.TransactionChannel {
	if ch == "" {
		return domain.ChannelAPI
	}
	return domain.TransactionChannel(ch)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
