package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Dosada05/esports-booking/models"
)

var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrAdminEmailConflict = errors.New("admin with this email already exists")
)

type AdminRepository interface {
	Create(ctx context.Context, exec SQLExecutor, admin *models.Admin) error
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	List(ctx context.Context) ([]models.Admin, error)
	Delete(ctx context.Context, id int) error

	CreateLog(ctx context.Context, entry *models.AdminLog) error
	ListLogs(ctx context.Context, limit int) ([]models.AdminLog, error)
}

type postgresAdminRepository struct {
	db *sql.DB
}

func NewPostgresAdminRepository(db *sql.DB) AdminRepository {
	return &postgresAdminRepository{db: db}
}

func (r *postgresAdminRepository) Create(ctx context.Context, exec SQLExecutor, admin *models.Admin) error {
	query := `
		INSERT INTO admins (name, email, role, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	err := getExecutor(r.db, exec).QueryRowContext(ctx, query,
		admin.Name, admin.Email, admin.Role, admin.CreatedBy,
	).Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqUniqueViolation {
			return ErrAdminEmailConflict
		}
		return err
	}
	return nil
}

func (r *postgresAdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `SELECT id, name, email, role, created_by, created_at FROM admins WHERE email = $1`
	a := &models.Admin{}
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresAdminRepository) List(ctx context.Context) ([]models.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, role, created_by, created_at FROM admins ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := make([]models.Admin, 0)
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (r *postgresAdminRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrAdminNotFound)
}

func (r *postgresAdminRepository) CreateLog(ctx context.Context, entry *models.AdminLog) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO admin_logs (admin_email, action) VALUES ($1, $2) RETURNING id, created_at`,
		entry.AdminEmail, entry.Action,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *postgresAdminRepository) ListLogs(ctx context.Context, limit int) ([]models.AdminLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin_email, action, created_at FROM admin_logs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.AdminLog, 0)
	for rows.Next() {
		var l models.AdminLog
		if err := rows.Scan(&l.ID, &l.AdminEmail, &l.Action, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
