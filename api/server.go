/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*        User management
  /api/accounts/*     Account state and movement history
  /api/actions        Balance adjustments
  /api/transactions   Merchant debits
  /api/transfers      Account-to-account transfers
  /api/deposits/*     Deposit lifecycle
  /api/credits/*      Credit lifecycle
  /api/admin/*        Settlement operations
  /api/reset          Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/actions", h.ListAccountActions)
			r.Get("/{id}/transactions", h.ListAccountTransactions)
			r.Get("/{id}/transfers", h.ListAccountTransfers)
			r.Get("/{id}/deposits", h.ListAccountDeposits)
			r.Get("/{id}/credits", h.ListAccountCredits)
		})

		// Movement routes
		r.Post("/actions", h.CreateAction)
		r.Post("/transactions", h.CreateTransaction)
		r.Post("/transfers", h.CreateTransfer)

		// Deposit routes
		r.Route("/deposits", func(r chi.Router) {
			r.Post("/", h.OpenDeposit)
			r.Post("/{id}/withdraw", h.WithdrawDeposit)
			r.Delete("/{id}", h.CloseDeposit)
		})

		// Credit routes
		r.Route("/credits", func(r chi.Router) {
			r.Post("/", h.OpenCredit)
			r.Post("/{id}/repay", h.RepayCredit)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/settlement/run", h.RunSettlement)
			r.Get("/settlement/runs", h.ListSettlementRuns)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
