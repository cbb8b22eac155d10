package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/metrics"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/services"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Elections    services.ElectionServicer
	Applications services.ApplicationServicer
	Ballots      services.BallotServicer
	Tally        services.TallyServicer
	Users        services.UserServicer
	Auth         *auth.Auth
	Log          logger.Logger

	// Optional collaborators; nil disables the matching route or middleware
	WS      http.HandlerFunc
	Metrics *metrics.Metrics
	Limiter Limiter
	Health  Pinger

	// BaseURL is used for links embedded in QR codes. When empty the
	// request's own scheme and host are used.
	BaseURL string
}

// New creates a new Handlers instance with the required dependencies
func New(
	elections services.ElectionServicer,
	applications services.ApplicationServicer,
	ballots services.BallotServicer,
	tally services.TallyServicer,
	users services.UserServicer,
	tokens *auth.Auth,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Elections:    elections,
		Applications: applications,
		Ballots:      ballots,
		Tally:        tally,
		Users:        users,
		Auth:         tokens,
		Log:          log,
	}
}

// fail writes err as an API error, logging it when it is not an
// expected client-facing outcome
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = ToAPIError(err)
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.Log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// actor returns the authenticated actor. Routes using it sit behind
// RequireAuthAPI, so a missing actor is a wiring bug.
func (h *Handlers) actor(r *http.Request) (models.Actor, error) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		return models.Actor{}, Unauthorized("Unauthorized - please log in")
	}
	return actor, nil
}

// baseURL returns the configured base URL or one derived from the request
func (h *Handlers) baseURL(r *http.Request) string {
	if h.BaseURL != "" {
		return strings.TrimRight(h.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

// handleHealth reports store reachability
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Warn("Health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, NewAPIError(http.StatusServiceUnavailable, ErrCodeUnavailable, "database unreachable"))
			return
		}
	}
	respondOK(w, map[string]string{"status": "ok"})
}
