package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/esports-booking/models"
)

var ErrContactMessageNotFound = errors.New("contact message not found")

type ListContactFilter struct {
	UserID *int
	Status *models.ContactStatus
	Limit  int
}

type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	GetByID(ctx context.Context, id int) (*models.ContactMessage, error)
	List(ctx context.Context, filter ListContactFilter) ([]models.ContactMessage, error)
	SetReply(ctx context.Context, exec SQLExecutor, id int, reply string, at time.Time) error
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context, status models.ContactStatus) (int, error)
}

type postgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) ContactRepository {
	return &postgresContactRepository{db: db}
}

const contactColumns = `id, user_id, name, email, message, status, admin_reply, created_at, replied_at`

func scanContact(s scanner) (*models.ContactMessage, error) {
	m := &models.ContactMessage{}
	var userID sql.NullInt64
	if err := s.Scan(&m.ID, &userID, &m.Name, &m.Email, &m.Message, &m.Status, &m.AdminReply, &m.CreatedAt, &m.RepliedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := int(userID.Int64)
		m.UserID = &id
	}
	return m, nil
}

func (r *postgresContactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO contact_messages (user_id, name, email, message, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		msg.UserID, msg.Name, msg.Email, msg.Message, msg.Status,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *postgresContactRepository) GetByID(ctx context.Context, id int) (*models.ContactMessage, error) {
	m, err := scanContact(r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contact_messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresContactRepository) List(ctx context.Context, filter ListContactFilter) ([]models.ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argID)
		args = append(args, *filter.UserID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.ContactMessage, 0)
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func (r *postgresContactRepository) SetReply(ctx context.Context, exec SQLExecutor, id int, reply string, at time.Time) error {
	result, err := getExecutor(r.db, exec).ExecContext(ctx,
		`UPDATE contact_messages SET admin_reply = $2, status = $3, replied_at = $4 WHERE id = $1`,
		id, reply, models.ContactReplied, at,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrContactMessageNotFound)
}

func (r *postgresContactRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrContactMessageNotFound)
}

func (r *postgresContactRepository) CountByStatus(ctx context.Context, status models.ContactStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages WHERE status = $1`, status).Scan(&count)
	return count, err
}
