package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"casino-backend/internal/core/domain"
	"casino-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// The in-memory repositories mirror the conditional-update semantics of
// the postgres adapter: debits and limit accumulations check their
// guard and mutate under one lock, so concurrent operations cannot
// overdraw a balance or overshoot a cap.

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// --- In-Memory Player Repo ---

type inMemoryPlayerRepo struct {
	mu      sync.RWMutex
	players map[uuid.UUID]domain.Player
}

func newInMemoryPlayerRepo() *inMemoryPlayerRepo {
	return &inMemoryPlayerRepo{players: make(map[uuid.UUID]domain.Player)}
}

func (r *inMemoryPlayerRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = *p
	return nil
}

func (r *inMemoryPlayerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *inMemoryPlayerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.UserID == userID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPlayerRepo) Credit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return decimal.Zero, fmt.Errorf("player not found: %s", playerID)
	}
	p.Balance = p.Balance.Add(amount)
	r.players[playerID] = p
	return p.Balance, nil
}

func (r *inMemoryPlayerRepo) Debit(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return decimal.Zero, fmt.Errorf("player not found: %s", playerID)
	}
	if p.Balance.LessThan(amount) {
		return decimal.Zero, ports.ErrInsufficientBalance
	}
	p.Balance = p.Balance.Sub(amount)
	r.players[playerID] = p
	return p.Balance, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[t.ID] = *t
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.TransactionStatusPending {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	t.Status = domain.TransactionStatusCompleted
	t.ProcessedAt = &processedAt
	t.ProcessedBy = &processedBy
	r.transactions[id] = t
	return nil
}

func (r *inMemoryTransactionRepo) MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.TransactionStatusCompleted {
		return fmt.Errorf("transaction %s is not completed", id)
	}
	t.Status = domain.TransactionStatusCancelled
	r.transactions[id] = t
	return nil
}

func (r *inMemoryTransactionRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, processedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != domain.TransactionStatusPending {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	now := time.Now().UTC()
	t.Status = domain.TransactionStatusRejected
	t.ProcessedAt = &now
	t.ProcessedBy = &processedBy
	r.transactions[id] = t
	return nil
}

func (r *inMemoryTransactionRepo) SetAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizedBy uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found: %s", id)
	}
	t.AuthorizedBy = &authorizedBy
	t.AuthorizationNotes = notes
	r.transactions[id] = t
	return nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if params.PlayerID != nil && t.PlayerID != *params.PlayerID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.TransactionType != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryTransactionRepo) Summary(ctx context.Context, playerID uuid.UUID, from, to *time.Time) (*ports.TransactionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := &ports.TransactionSummary{
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		TotalWins:        decimal.Zero,
		TotalLosses:      decimal.Zero,
	}
	for _, t := range r.transactions {
		if t.PlayerID != playerID || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if from != nil && t.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && t.CreatedAt.After(*to) {
			continue
		}
		s.TransactionCount++
		switch t.TransactionType {
		case domain.TransactionTypeDeposit:
			s.TotalDeposits = s.TotalDeposits.Add(t.Amount)
		case domain.TransactionTypeWithdrawal:
			s.TotalWithdrawals = s.TotalWithdrawals.Add(t.Amount)
		case domain.TransactionTypeWin:
			s.TotalWins = s.TotalWins.Add(t.Amount)
		case domain.TransactionTypeLoss:
			s.TotalLosses = s.TotalLosses.Add(t.Amount)
		}
	}
	return s, nil
}

// --- In-Memory Limit Repo ---

type limitKey struct {
	playerID uuid.UUID
	period   domain.LimitPeriod
	txType   domain.TransactionType
}

type inMemoryLimitRepo struct {
	mu     sync.Mutex
	limits map[limitKey]domain.TransactionLimit
}

func newInMemoryLimitRepo() *inMemoryLimitRepo {
	return &inMemoryLimitRepo{limits: make(map[limitKey]domain.TransactionLimit)}
}

func (r *inMemoryLimitRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, period domain.LimitPeriod, txType domain.TransactionType) (*domain.TransactionLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limits[limitKey{playerID, period, txType}]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *inMemoryLimitRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.TransactionLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := limitKey{l.PlayerID, l.Period, l.TransactionType}
	if _, exists := r.limits[key]; exists {
		return fmt.Errorf("limit already exists")
	}
	r.limits[key] = *l
	return nil
}

func (r *inMemoryLimitRepo) ResetPeriod(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.limits {
		if l.ID == id {
			l.CurrentAmount = decimal.Zero
			l.PeriodStart = start
			l.PeriodEnd = end
			r.limits[key] = l
			return nil
		}
	}
	return fmt.Errorf("limit not found: %s", id)
}

func (r *inMemoryLimitRepo) Accumulate(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.limits {
		if l.ID == id {
			if l.CurrentAmount.Add(amount).GreaterThan(l.MaxAmount) {
				return false, nil
			}
			l.CurrentAmount = l.CurrentAmount.Add(amount)
			r.limits[key] = l
			return true, nil
		}
	}
	return false, fmt.Errorf("limit not found: %s", id)
}

// --- In-Memory Cancellation Repo ---

type inMemoryCancellationRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]domain.CancellationRequest
}

func newInMemoryCancellationRepo() *inMemoryCancellationRepo {
	return &inMemoryCancellationRepo{requests: make(map[uuid.UUID]domain.CancellationRequest)}
}

func (r *inMemoryCancellationRepo) Create(ctx context.Context, req *domain.CancellationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.TransactionID == req.TransactionID {
			return fmt.Errorf("cancellation request already exists")
		}
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *inMemoryCancellationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CancellationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r *inMemoryCancellationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CancellationRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCancellationRepo) GetByTransactionID(ctx context.Context, txID uuid.UUID) (*domain.CancellationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.TransactionID == txID {
			req := req
			return &req, nil
		}
	}
	return nil, nil
}

func (r *inMemoryCancellationRepo) RecordFirstAuthorization(ctx context.Context, tx pgx.Tx, id uuid.UUID, authorizer uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.CancellationStatusPending {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	req.FirstAuthorizer = &authorizer
	req.FirstAuthorizedAt = &at
	r.requests[id] = req
	return nil
}

func (r *inMemoryCancellationRepo) Approve(ctx context.Context, tx pgx.Tx, id uuid.UUID, firstAuthorizer uuid.UUID, secondAuthorizer *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.CancellationStatusPending {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	req.FirstAuthorizer = &firstAuthorizer
	req.SecondAuthorizer = secondAuthorizer
	req.Status = domain.CancellationStatusApproved
	r.requests[id] = req
	return nil
}

func (r *inMemoryCancellationRepo) Reject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.CancellationStatusPending {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}
	req.Status = domain.CancellationStatusRejected
	r.requests[id] = req
	return nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
