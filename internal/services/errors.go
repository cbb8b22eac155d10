package services

import (
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
)

// storeError converts a repository failure into an application error.
// Not-found becomes a NotFound naming what was looked up; anything the
// caller did not translate already is an Internal fault.
func storeError(err error, what string, id int64) error {
	if err == repository.ErrNotFound {
		return errors.NotFoundf("%s %d not found", what, id)
	}
	return errors.Internal(err)
}

func requireAdmin(actor models.Actor, action string) error {
	if !actor.IsAdmin() {
		return errors.Unauthorized("only administrators can " + action)
	}
	return nil
}

func requireOwner(actor models.Actor, e *models.Election) error {
	if !e.OwnedBy(actor.ID) {
		return errors.Unauthorized("you can only manage your own elections")
	}
	return nil
}
