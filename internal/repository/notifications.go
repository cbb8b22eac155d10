package repository

import (
	"context"

	"github.com/electvote/electvote/internal/models"
)

// CreateNotification stores an unread in-app message
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO notifications (user_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), n.UserID, n.Message, false, n.CreatedAt).Scan(&id)
	return id, err
}

// ListNotifications returns a user's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, user_id, message, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read.
// Another user's notification is reported as ErrNotFound.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?
	`), true, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
