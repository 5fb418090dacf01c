package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/esports-booking/models"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInboxEntryNotFound   = errors.New("inbox entry not found")
)

type NotificationRepository interface {
	// CreateBatch пишет уведомления одной пачкой; внутри транзакции это все-или-ничего.
	CreateBatch(ctx context.Context, exec SQLExecutor, items []*models.Notification) error
	CreateInboxBatch(ctx context.Context, exec SQLExecutor, items []*models.InboxEntry) error
	ListByUser(ctx context.Context, userID int, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int) error
	ListInbox(ctx context.Context, userID int, limit int) ([]models.InboxEntry, error)
	MarkInboxRead(ctx context.Context, userID, id int) error
	CountUnreadInbox(ctx context.Context, userID int) (int, error)
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateBatch(ctx context.Context, exec SQLExecutor, items []*models.Notification) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO notifications (user_id, tournament_id, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for _, n := range items {
		if err := executor.QueryRowContext(ctx, query, n.UserID, n.TournamentID, n.Title, n.Message).
			Scan(&n.ID, &n.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert notification for user %d: %w", n.UserID, err)
		}
	}
	return nil
}

func (r *postgresNotificationRepository) CreateInboxBatch(ctx context.Context, exec SQLExecutor, items []*models.InboxEntry) error {
	executor := getExecutor(r.db, exec)
	query := `
		INSERT INTO user_inbox (user_id, tournament_id, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	for _, e := range items {
		if err := executor.QueryRowContext(ctx, query, e.UserID, e.TournamentID, e.Title, e.Message).
			Scan(&e.ID, &e.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert inbox entry for user %d: %w", e.UserID, err)
		}
	}
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID int, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, tournament_id, title, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TournamentID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}

func (r *postgresNotificationRepository) ListInbox(ctx context.Context, userID int, limit int) ([]models.InboxEntry, error) {
	query := `
		SELECT id, user_id, tournament_id, title, message, read, created_at
		FROM user_inbox
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.InboxEntry, 0)
	for rows.Next() {
		var e models.InboxEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TournamentID, &e.Title, &e.Message, &e.Read, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *postgresNotificationRepository) MarkInboxRead(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE user_inbox SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrInboxEntryNotFound)
}

func (r *postgresNotificationRepository) CountUnreadInbox(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_inbox WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	return count, err
}

func (r *postgresNotificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE read AND created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
