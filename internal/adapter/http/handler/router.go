package handler

import (
	"casino-backend/internal/adapter/http/middleware"
	redisStore "casino-backend/internal/adapter/storage/redis"
	"casino-backend/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TxSvc          ports.TransactionService
	CancelSvc      ports.CancellationService
	PlayerRepo     ports.PlayerRepository
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	staffOnly := middleware.RequireStaff()

	txHandler := NewTransactionHandler(deps.TxSvc, deps.PlayerRepo)
	cancelHandler := NewCancellationHandler(deps.CancelSvc)

	// --- Player routes ---
	players := v1.Group("/players", jwtAuth)
	{
		players.GET("/balance", rl("queries"), txHandler.Balance)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("/deposit", rl("money"), txHandler.Deposit)
		transactions.POST("/withdraw", rl("money"), txHandler.Withdraw)
		transactions.GET("", rl("queries"), txHandler.History)
		transactions.GET("/summary", rl("queries"), txHandler.Summary)

		// Staff-only money administration
		transactions.POST("/game-result", staffOnly, rl("staff"), txHandler.GameResult)
		transactions.POST("/:id/authorize", staffOnly, rl("staff"), txHandler.Authorize)
		transactions.POST("/:id/reject", staffOnly, rl("staff"), txHandler.Reject)
	}

	// --- Cancellation workflow (staff only) ---
	cancellations := v1.Group("/cancellations", jwtAuth, staffOnly)
	{
		cancellations.POST("", rl("staff"), cancelHandler.Request)
		cancellations.GET("/:id", rl("staff"), cancelHandler.Get)
		cancellations.POST("/:id/authorize", rl("staff"), cancelHandler.Authorize)
		cancellations.POST("/:id/reject", rl("staff"), cancelHandler.Reject)
	}

	return r
}
