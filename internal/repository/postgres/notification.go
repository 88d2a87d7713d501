package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const notificationColumns = `id, user_id, title, message, link_to_module, is_read, created_at`

// NotificationStore persists in-app notifications inside the tenant schema
// and doubles as the Notifier used by the record store. Delivery acquires
// its own session because it may run after the triggering request released
// its connection.
type NotificationStore struct {
	router *db.Router
	logger *zap.Logger
}

func NewNotificationStore(router *db.Router, logger *zap.Logger) *NotificationStore {
	return &NotificationStore{router: router, logger: logger}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationStore) NotifyUser(ctx context.Context, schema string, userID uuid.UUID, title, message string, link *string) error {
	return s.NotifyUsers(ctx, schema, []uuid.UUID{userID}, title, message, link)
}

func (s *NotificationStore) NotifyUsers(ctx context.Context, schema string, userIDs []uuid.UUID, title, message string, link *string) error {
	if len(userIDs) == 0 {
		return nil
	}
	sess, err := s.router.Acquire(ctx, schema)
	if err != nil {
		return err
	}
	defer sess.Release()

	for _, userID := range userIDs {
		_, err := sess.Exec(ctx, `
			INSERT INTO notifications (user_id, title, message, link_to_module)
			VALUES ($1, $2, $3, $4)`, userID, title, message, link)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID) ([]models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := sess.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, sess *db.Session, userID uuid.UUID, id int64) error {
	tag, err := sess.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, sess *db.Session, userID uuid.UUID) error {
	if _, err := sess.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *NotificationStore) Delete(ctx context.Context, sess *db.Session, userID uuid.UUID, id int64) error {
	tag, err := sess.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *NotificationStore) DeleteAll(ctx context.Context, sess *db.Session, userID uuid.UUID) error {
	if _, err := sess.Exec(ctx,
		`DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, sess *db.Session, userID uuid.UUID) (int64, error) {
	var count int64
	err := sess.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

var _ repository.Notifier = (*NotificationStore)(nil)
var _ repository.NotificationRepository = (*NotificationStore)(nil)
