package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/models"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}

	// Operational endpoints, outside the request timeout
	r.Get("/healthz", h.handleHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}
	if h.WS != nil {
		r.Get("/ws", h.WS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Accounts (public)
		r.Post("/api/signup", h.handleSignup)
		r.Post("/api/login", h.handleLogin)

		// Elections (public)
		r.Get("/api/elections", h.handleListElections)
		r.Get("/api/elections/active", h.handleListActiveElections)
		r.Get("/api/elections/current", h.handleCurrentElection)
		r.Get("/api/elections/{id}", h.handleGetElection)
		r.Get("/api/elections/{id}/candidates", h.handleListCandidates)
		r.Get("/api/elections/{id}/phase", h.handleGetPhase)
		r.Get("/api/elections/{id}/qr", h.handleBallotQR)
		r.Get("/vote/{id}", h.handleVoteLink)

		// Any signed-in user
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			r.Get("/api/me", h.handleMe)
			r.Get("/api/notifications", h.handleGetNotifications)
			r.Post("/api/notifications/{id}/read", h.handleMarkNotificationRead)

			// Voters and candidates
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleVoter, models.RoleCandidate))

				r.Get("/api/voter/panel", h.handleVoterPanel)
				r.Post("/api/elections/{id}/applications", h.handleSubmitApplication)
				r.With(h.rateLimit).Post("/api/elections/{id}/ballots", h.handleCastVote)
			})

			// Admins
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(models.RoleAdmin))

				r.Get("/api/admin/elections", h.handleAdminElections)
				r.Post("/api/admin/elections", h.handleScheduleElection)
				r.Post("/api/admin/elections/{id}/cancel", h.handleCancelElection)
				r.Post("/api/admin/elections/{id}/candidates", h.handleAddCandidate)
				r.Get("/api/admin/elections/current/tally", h.handleCurrentTally)
				r.Get("/api/admin/elections/{id}/tally", h.handleTally)
				r.Get("/api/admin/applications", h.handleListApplications)
				r.Post("/api/admin/applications/{id}/resolve", h.handleResolveApplication)
			})
		})
	})

	return r
}
