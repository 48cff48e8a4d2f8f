package server

import (
	"context"
	"net/http"
	"time"

	"prepa/internal/auth"
	"prepa/internal/catalog"
	"prepa/internal/config"
	"prepa/internal/email"
	"prepa/internal/ledger"
	"prepa/internal/subscription"
	"prepa/internal/ticket"
	"prepa/internal/unlock"
	"prepa/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	email  *email.Service
}

func New(db *sqlx.DB, cfg *config.Config, emailService *email.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	ledgerRepo := ledger.NewRepository(db)
	userRepo := user.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	subRepo := subscription.NewRepository(db)
	unlockRepo := unlock.NewRepository(db, ledgerRepo)
	ticketRepo := ticket.NewRepository(db, ledgerRepo)

	userService := user.NewService(userRepo, ledgerRepo, emailService, cfg.JWTSecret, cfg.SignupBonusCredits)
	unlockService := unlock.NewService(unlockRepo, newUnlockNotifier(userRepo, catalogRepo, emailService))
	ticketService := ticket.NewService(
		ticketRepo,
		newTicketNotifier(userRepo, catalogRepo, emailService),
		newAccessGranter(unlockRepo),
		cfg.TicketHoldCredits,
	)

	ticketValidity := time.Duration(cfg.TicketValidityDays) * 24 * time.Hour

	userHandler := user.NewHandler(userService)
	catalogHandler := catalog.NewHandler(catalogRepo)
	ledgerHandler := ledger.NewHandler(ledgerRepo)
	subHandler := subscription.NewHandler(subRepo)
	unlockHandler := unlock.NewHandler(unlockService, catalogRepo, subRepo)
	ticketHandler := ticket.NewHandler(ticketService, catalogRepo, ticketValidity)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)

		protected.GET("/papers", catalogHandler.ListPapers)
		protected.GET("/papers/:paperID", catalogHandler.GetPaper)
		protected.POST("/papers/:paperID/unlock", unlockHandler.UnlockPaper)
		protected.GET("/unlocks", unlockHandler.ListMyUnlocks)

		protected.GET("/balance", ledgerHandler.GetBalance)
		protected.POST("/balance/topup", ledgerHandler.TopUp)
		protected.GET("/transactions", ledgerHandler.ListTransactions)

		protected.POST("/tickets", ticketHandler.CreateTicket)
		protected.GET("/tickets", ticketHandler.ListMyTickets)
		protected.GET("/tickets/:ticketID", ticketHandler.GetMyTicket)

		protected.GET("/subscription", subHandler.GetMySubscription)
	}

	adminMiddleware := auth.RequireRole(auth.RoleAdmin)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/papers", catalogHandler.CreatePaper)

		admin.GET("/tickets", ticketHandler.ListTickets)
		admin.POST("/tickets/:ticketID/fulfill", ticketHandler.FulfillTicket)
		admin.POST("/tickets/:ticketID/refund", ticketHandler.RefundTicket)
		admin.POST("/tickets/sweep", ticketHandler.SweepTickets)

		admin.POST("/users/:userID/bonus", ledgerHandler.GrantBonus)
		admin.GET("/users/:userID/audit", ledgerHandler.Audit)
		admin.POST("/users/:userID/subscription", subHandler.Grant)
		admin.GET("/users/:userID/subscriptions", subHandler.ListUserSubscriptions)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-email", TestEmail(emailService))

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		email:  emailService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
