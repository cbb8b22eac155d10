package handlers

import (
	"net/http"

	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/services"
)

// handleSignup creates a voter account
func (h *Handlers) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.Users.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		IDNumber: req.IDNumber,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, user)
}

// handleLogin exchanges credentials for a bearer token
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.KindOf(err) == errors.ErrUnauthorized {
			h.fail(w, r, Unauthorized("Invalid username or password"))
			return
		}
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleMe returns the authenticated user's account
func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.Users.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, user)
}

// handleGetNotifications lists the actor's notifications, newest first
func (h *Handlers) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Users.ListNotifications(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, list)
}

// handleMarkNotificationRead flags one of the actor's notifications as read
func (h *Handlers) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Users.MarkNotificationRead(r.Context(), actor.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Notification marked as read")
}
