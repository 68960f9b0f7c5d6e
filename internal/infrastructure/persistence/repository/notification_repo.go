package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
	"github.com/garyjia/docflow/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `id, user_id, type, title, message, request_id, priority, read, delivered, created_at, expires_at`

// Create inserts a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var requestID sql.NullString
	if n.RequestID != "" {
		requestID = sql.NullString{String: n.RequestID, Valid: true}
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		requestID,
		n.Priority,
		n.Read,
		n.Delivered,
		formatTime(n.CreatedAt),
		formatTime(n.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: notification %s already exists", entity.ErrConflict, n.ID)
		}
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err, "notification", id)
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.String("notification_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// MarkRead sets the read flag. Marking an already read notification is not an error.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.setFlag(ctx, "read", id)
}

// MarkDelivered records a successful push
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string) error {
	return r.setFlag(ctx, "delivered", id)
}

// setFlag matches on id alone so a repeated call still counts the row
func (r *NotificationRepository) setFlag(ctx context.Context, column, id string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE notifications SET `+column+` = 1 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to update notification",
			zap.String("notification_id", id),
			zap.String("column", column),
			zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: notification %s", entity.ErrNotFound, id)
	}
	return nil
}

// MarkAllRead flips every unread notification of the user
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		r.logger.Error("Failed to mark notifications read", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return rowsAffected(result)
}

// ListByUser returns the user's notifications newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, page port.Page) ([]*entity.Notification, int, error) {
	where := ` WHERE user_id = ?`
	if unreadOnly {
		where += ` AND read = 0`
	}
	exec := r.getExecutor(ctx)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, userID).Scan(&total); err != nil {
		r.logger.Error("Failed to count notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	page = page.Normalize()
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	rows, err := exec.QueryContext(ctx, query, userID, page.Limit, page.Offset())
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, total, nil
}

// CountUnread returns the number of unread notifications of the user
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Delete removes a single notification
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: notification %s", entity.ErrNotFound, id)
	}
	return nil
}

// DeleteByUser removes every notification of the user
func (r *NotificationRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID)
	if err != nil {
		r.logger.Error("Failed to clear notifications", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	return rowsAffected(result)
}

// Archive deletes all but the keep newest notifications of the user.
// rowid breaks ties between notifications created in the same instant.
func (r *NotificationRepository) Archive(ctx context.Context, userID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM notifications
		WHERE user_id = ? AND rowid NOT IN (
			SELECT rowid FROM notifications
			WHERE user_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, userID, userID, keep)
	if err != nil {
		r.logger.Error("Failed to archive notifications",
			zap.String("user_id", userID),
			zap.Int("keep", keep),
			zap.Error(err))
		return 0, fmt.Errorf("failed to archive notifications: %w", err)
	}
	return rowsAffected(result)
}

// DeleteExpired removes notifications whose expiry is at or before now
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		r.logger.Error("Failed to delete expired notifications", zap.Error(err))
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	return rowsAffected(result)
}

func scanNotification(s rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var typ string
	var requestID sql.NullString
	var createdAt, expiresAt string

	err := s.Scan(
		&n.ID,
		&n.UserID,
		&typ,
		&n.Title,
		&n.Message,
		&requestID,
		&n.Priority,
		&n.Read,
		&n.Delivered,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = entity.NotificationType(typ)
	n.RequestID = requestID.String
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// getExecutor returns appropriate executor based on context
func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
