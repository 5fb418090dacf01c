package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/esports-booking/models"
	"github.com/lib/pq"
)

var (
	ErrBookingNotFound          = errors.New("booking not found")
	ErrBookingInvalidReference  = errors.New("booking references a missing tournament or user")
	ErrTransitionKeyAlreadyUsed = errors.New("transition key already used")
	ErrTransitionKeyReused      = errors.New("idempotency key was already used for a different operation")
)

type ListBookingsFilter struct {
	TournamentID *int
	UserID       *int
	Statuses     []models.BookingStatus
	Limit        int
	Offset       int
}

// BookingUpdate - поля, которые меняет переход жизненного цикла.
// nil означает "не трогать".
type BookingUpdate struct {
	Status       models.BookingStatus
	SlotLabel    *string
	AdminMessage *string
	MessageTime  *time.Time
	PrizeAmount  *int
	PrizeRank    *int
	UserQR       *string
	PaymentProof *string
	PaidAt       *time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Booking, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Booking, error)
	List(ctx context.Context, exec SQLExecutor, filter ListBookingsFilter) ([]models.Booking, error)
	Apply(ctx context.Context, exec SQLExecutor, id int, upd BookingUpdate) (*models.Booking, error)
	CountByStatus(ctx context.Context, statuses []models.BookingStatus) (int, error)
	// CountOccupyingByTournament - число заявок, занимающих слот, по каждому турниру.
	CountOccupyingByTournament(ctx context.Context) (map[int]int, error)
}

type postgresBookingRepository struct {
	db *sql.DB
}

func NewPostgresBookingRepository(db *sql.DB) BookingRepository {
	return &postgresBookingRepository{db: db}
}

const bookingColumns = `
	id, tournament_id, user_id, player_name, game_uid, whatsapp, screenshot_url, status,
	slot_label, admin_message, message_time, prize_amount, prize_rank, user_qr,
	payment_proof, created_at, updated_at, paid_at`

func scanBooking(s scanner) (*models.Booking, error) {
	b := &models.Booking{}
	var prizeRank sql.NullInt64
	err := s.Scan(
		&b.ID, &b.TournamentID, &b.UserID, &b.PlayerName, &b.GameUID, &b.Whatsapp, &b.ScreenshotURL, &b.Status,
		&b.SlotLabel, &b.AdminMessage, &b.MessageTime, &b.PrizeAmount, &prizeRank, &b.UserQR,
		&b.PaymentProof, &b.CreatedAt, &b.UpdatedAt, &b.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	if prizeRank.Valid {
		rank := int(prizeRank.Int64)
		b.PrizeRank = &rank
	}
	return b, nil
}

func (r *postgresBookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (tournament_id, user_id, player_name, game_uid, whatsapp, screenshot_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		b.TournamentID, b.UserID, b.PlayerName, b.GameUID, b.Whatsapp, b.ScreenshotURL, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return ErrBookingInvalidReference
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *postgresBookingRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Booking, error) {
	return r.getOne(ctx, exec, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *postgresBookingRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Booking, error) {
	return r.getOne(ctx, exec, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresBookingRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Booking, error) {
	b, err := scanBooking(getExecutor(r.db, exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *postgresBookingRepository) List(ctx context.Context, exec SQLExecutor, filter ListBookingsFilter) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.TournamentID != nil {
		query += fmt.Sprintf(" AND tournament_id = $%d", argID)
		args = append(args, *filter.TournamentID)
		argID++
	}
	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argID)
		args = append(args, *filter.UserID)
		argID++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argID)
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := getExecutor(r.db, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		b, scanErr := scanBooking(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		bookings = append(bookings, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *postgresBookingRepository) Apply(ctx context.Context, exec SQLExecutor, id int, upd BookingUpdate) (*models.Booking, error) {
	query := `
		UPDATE bookings SET
			status = $2,
			slot_label = COALESCE($3, slot_label),
			admin_message = COALESCE($4, admin_message),
			message_time = COALESCE($5, message_time),
			prize_amount = COALESCE($6, prize_amount),
			prize_rank = COALESCE($7, prize_rank),
			user_qr = COALESCE($8, user_qr),
			payment_proof = COALESCE($9, payment_proof),
			paid_at = COALESCE($10, paid_at),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + bookingColumns

	b, err := scanBooking(getExecutor(r.db, exec).QueryRowContext(ctx, query,
		id, upd.Status, upd.SlotLabel, upd.AdminMessage, upd.MessageTime, upd.PrizeAmount,
		upd.PrizeRank, upd.UserQR, upd.PaymentProof, upd.PaidAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *postgresBookingRepository) CountByStatus(ctx context.Context, statuses []models.BookingStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE status = ANY($1)`, pq.Array(statusStrings(statuses)),
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresBookingRepository) CountOccupyingByTournament(ctx context.Context) (map[int]int, error) {
	occupying := []models.BookingStatus{
		models.BookingApproved, models.BookingCompleted, models.BookingWon,
		models.BookingProcessing, models.BookingPaid,
	}
	query := `
		SELECT t.id, COUNT(b.id)
		FROM tournaments t
		LEFT JOIN bookings b ON b.tournament_id = t.id AND b.status = ANY($1)
		WHERE t.status <> $2
		GROUP BY t.id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(statusStrings(occupying)), models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func statusStrings(statuses []models.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
