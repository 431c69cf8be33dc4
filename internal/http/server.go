// Package http exposes the ledger as a JSON API over chi.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tripledger/internal/core"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/storage"
)

// AccountStore covers the user, session and group operations the handlers
// need. *storage.Repository satisfies it.
type AccountStore interface {
	RegisterUser(ctx context.Context, name, email, password string) (core.User, error)
	Authenticate(ctx context.Context, email, password string) (core.User, error)
	FindUser(ctx context.Context, id uuid.UUID) (core.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*storage.Session, error)
	SessionUser(ctx context.Context, token string) (uuid.UUID, error)
	DeleteSession(ctx context.Context, token string) error
	CreateGroup(ctx context.Context, name, destination, currency string, createdBy uuid.UUID) (core.Group, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role core.Role) error
	FindGroup(ctx context.Context, id uuid.UUID) (core.Group, error)
}

type transitionFunc func(ctx context.Context, actor, id uuid.UUID, note string) (core.Expense, error)

type Server struct {
	http.Server

	expenses   *services.ExpenseService
	accounts   AccountStore
	sessionTTL time.Duration

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, accounts AccountStore, sessionTTL time.Duration, logger *applog.Logger) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		expenses:    expenses,
		accounts:    accounts,
		sessionTTL:  sessionTTL,
		rateLimiter: newRateLimiter(),
	}

	r := chi.NewRouter()
	r.Use(applog.Middleware(logger))
	r.Use(s.rateLimiter.middleware)
	r.Use(authMiddleware(accounts))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(requireAuth).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", s.handleCreateGroup)
				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", s.handleGetGroup)
					r.Post("/members", s.handleAddMember)
					r.Post("/expenses", s.handleCreateExpense)
					r.Get("/expenses", s.handleListExpenses)
					r.Get("/summary", s.handleSummary)
				})
			})

			r.Route("/expenses/{expenseID}", func(r chi.Router) {
				r.Get("/", s.handleGetExpense)
				r.Patch("/", s.handleUpdateExpense)
				r.Delete("/", s.handleDeleteExpense)
				r.Post("/request-settlement", s.handleRequestSettlement)
				r.Post("/settle", s.handleSettleExpense)
				r.Post("/dispute", s.handleDisputeExpense)
			})
		})
	})

	s.Handler = r
	return s
}

// Shutdown stops the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
