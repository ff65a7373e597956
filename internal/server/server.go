package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dukerupert/allowance/internal/allowance"
	"github.com/dukerupert/allowance/internal/analytics"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/budget"
	"github.com/dukerupert/allowance/internal/events"
	"github.com/dukerupert/allowance/internal/family"
	"github.com/dukerupert/allowance/internal/handler"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/notify"
	"github.com/dukerupert/allowance/internal/savings"
	"github.com/dukerupert/allowance/internal/task"
	ws "github.com/dukerupert/allowance/internal/websocket"
	"github.com/dukerupert/allowance/internal/wishlist"
)

// Login and registration share one per-IP budget.
const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Options struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AllowedOrigins    []string
	CacheMaxCost      int64
	AllowanceInterval time.Duration
	// Publisher receives notification events; nil disables publishing.
	Publisher events.Publisher
}

type Server struct {
	db          *sql.DB
	tokens      *auth.Tokens
	hub         *ws.Hub
	origins     []string
	rateLimiter *middleware.RateLimiter
	analytics   *analytics.Service
	allowance   *allowance.Service
	scheduler   *allowance.Scheduler
	publisher   events.Publisher

	authH         *handler.AuthHandler
	childH        *handler.ChildHandler
	transactionH  *handler.TransactionHandler
	allowanceH    *handler.AllowanceHandler
	savingsH      *handler.SavingsHandler
	taskH         *handler.TaskHandler
	budgetH       *handler.BudgetHandler
	notificationH *handler.NotificationHandler
	wishListH     *handler.WishListHandler

	logger *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewTokens(opts.JWTSecret, opts.TokenTTL)

	notifier := notify.NewService(db, hub, publisher, logger)
	ledgerSvc := ledger.NewService(db, notifier, logger)
	analyticsSvc, err := analytics.NewService(db, opts.CacheMaxCost, logger)
	if err != nil {
		return nil, err
	}
	ledgerSvc.OnChange(analyticsSvc.Invalidate)

	familySvc := family.NewService(db, tokens, logger)
	savingsSvc := savings.NewService(db, ledgerSvc, notifier, logger)
	taskSvc := task.NewService(db, ledgerSvc, notifier, logger)
	allowanceSvc := allowance.NewService(db, ledgerSvc, notifier, logger)
	budgetSvc := budget.NewService(db, logger)
	wishListSvc := wishlist.NewService(db, savingsSvc, logger)

	return &Server{
		db:          db,
		tokens:      tokens,
		hub:         hub,
		origins:     opts.AllowedOrigins,
		rateLimiter: middleware.NewRateLimiter(),
		analytics:   analyticsSvc,
		allowance:   allowanceSvc,
		scheduler:   allowance.NewScheduler(allowanceSvc, opts.AllowanceInterval, logger),
		publisher:   publisher,

		authH:         handler.NewAuthHandler(familySvc, logger.With("component", "auth_handler")),
		childH:        handler.NewChildHandler(familySvc, analyticsSvc, logger.With("component", "child_handler")),
		transactionH:  handler.NewTransactionHandler(ledgerSvc, logger.With("component", "transaction_handler")),
		allowanceH:    handler.NewAllowanceHandler(allowanceSvc, logger.With("component", "allowance_handler")),
		savingsH:      handler.NewSavingsHandler(savingsSvc, logger.With("component", "savings_handler")),
		taskH:         handler.NewTaskHandler(taskSvc, logger.With("component", "task_handler")),
		budgetH:       handler.NewBudgetHandler(budgetSvc, logger.With("component", "budget_handler")),
		notificationH: handler.NewNotificationHandler(notifier, logger.With("component", "notification_handler")),
		wishListH:     handler.NewWishListHandler(wishListSvc, logger.With("component", "wishlist_handler")),

		logger: logger,
	}, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Scheduler returns the allowance payout scheduler.
func (s *Server) Scheduler() *allowance.Scheduler {
	return s.scheduler
}

// Allowance returns the allowance service for one-off payout runs.
func (s *Server) Allowance() *allowance.Service {
	return s.allowance
}

// Close releases the analytics cache and the event publisher.
func (s *Server) Close() error {
	s.analytics.Close()
	return s.publisher.Close()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(chimw.Recoverer)

	r.Get("/health", s.healthHandler)

	requireAuth := middleware.RequireAuth(s.tokens)
	r.With(requireAuth).Get("/ws", ws.HandleWebSocket(s.hub, s.origins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.rateLimiter, middleware.RealIP, authRateLimit, authRateWindow))
			r.Post("/auth/register", s.authH.Register)
			r.Post("/auth/login", s.authH.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			s.registerRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireParent)
				s.registerParentRoutes(r)
			})
		})
	})

	return r
}

// registerRoutes mounts routes open to parents and children. Services
// still enforce per-record access.
func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/children", s.childH.List)
	r.Get("/children/{id}", s.childH.Get)
	r.Get("/children/{id}/summary", s.childH.Summary)

	r.Post("/transactions", s.transactionH.Create)
	r.Get("/transactions/{id}", s.transactionH.Get)
	r.Get("/children/{id}/transactions", s.transactionH.ListByChild)

	r.Get("/children/{id}/allowance/adjustments", s.allowanceH.ListAdjustments)

	r.Get("/children/{id}/savings-goals", s.savingsH.List)
	r.Post("/children/{id}/savings-goals", s.savingsH.Create)
	r.Get("/savings-goals/{id}", s.savingsH.Get)
	r.Post("/savings-goals/{id}/contribute", s.savingsH.Contribute)
	r.Post("/savings-goals/{id}/pause", s.savingsH.Pause())
	r.Post("/savings-goals/{id}/resume", s.savingsH.Resume())
	r.Get("/savings-goals/{id}/transactions", s.savingsH.ListTransactions)

	r.Get("/tasks", s.taskH.List)
	r.Get("/tasks/{id}", s.taskH.Get)
	r.Post("/tasks/{id}/complete", s.taskH.Complete)
	r.Get("/tasks/{id}/completions", s.taskH.ListCompletions)

	r.Get("/children/{id}/budgets", s.budgetH.List)
	r.Get("/children/{id}/budgets/status", s.budgetH.Status)

	r.Get("/notifications", s.notificationH.List)
	r.Get("/notifications/unread-count", s.notificationH.UnreadCount)
	r.Post("/notifications/{id}/read", s.notificationH.MarkRead)
	r.Post("/notifications/read-all", s.notificationH.MarkAllRead)

	r.Get("/children/{id}/wish-list", s.wishListH.List)
	r.Post("/children/{id}/wish-list", s.wishListH.Create)
	r.Put("/wish-list/{id}", s.wishListH.Update)
	r.Delete("/wish-list/{id}", s.wishListH.Delete)
	r.Post("/wish-list/{id}/purchase", s.wishListH.Purchase)
	r.Post("/wish-list/{id}/convert", s.wishListH.Convert)
}

func (s *Server) registerParentRoutes(r chi.Router) {
	r.Post("/children", s.childH.Create)
	r.Put("/children/{id}", s.childH.Update)

	r.Post("/children/{id}/allowance/pause", s.allowanceH.Pause)
	r.Post("/children/{id}/allowance/resume", s.allowanceH.Resume)
	r.Post("/children/{id}/allowance/adjust", s.allowanceH.Adjust)

	r.Put("/savings-goals/{id}", s.savingsH.Update)
	r.Post("/savings-goals/{id}/withdraw", s.savingsH.Withdraw)
	r.Post("/savings-goals/{id}/cancel", s.savingsH.Cancel())
	r.Post("/savings-goals/{id}/purchase", s.savingsH.Purchase())
	r.Put("/savings-goals/{id}/matching-rule", s.savingsH.SetMatchingRule)
	r.Delete("/savings-goals/{id}/matching-rule", s.savingsH.RemoveMatchingRule)
	r.Post("/savings-goals/{id}/challenge", s.savingsH.CreateChallenge)
	r.Delete("/savings-goals/{id}/challenge", s.savingsH.CancelChallenge)

	r.Post("/tasks", s.taskH.Create)
	r.Put("/tasks/{id}", s.taskH.Update)
	r.Delete("/tasks/{id}", s.taskH.Archive)
	r.Get("/task-completions/pending", s.taskH.ListPending)
	r.Post("/task-completions/{id}/approve", s.taskH.Approve)
	r.Post("/task-completions/{id}/reject", s.taskH.Reject)

	r.Put("/children/{id}/budgets", s.budgetH.Set)
	r.Delete("/budgets/{id}", s.budgetH.Delete)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}
