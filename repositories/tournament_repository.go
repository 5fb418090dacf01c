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
	ErrTournamentNotFound = errors.New("tournament not found")
	// ErrTournamentNoCapacity - условное обновление не нашло свободного слота.
	ErrTournamentNoCapacity = errors.New("tournament has no free slots")
)

type ListTournamentsFilter struct {
	Status   *models.TournamentStatus
	Category *models.TournamentCategory
	Limit    int
	Offset   int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Delete(ctx context.Context, id int) error
	// ReserveSlot атомарно увеличивает filled_slots и добавляет метку в slot_list,
	// только если filled_slots < total_slots.
	ReserveSlot(ctx context.Context, exec SQLExecutor, id int, label string) (*models.Tournament, error)
	ReplaceSlotList(ctx context.Context, exec SQLExecutor, id int, entries []string) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateRoom(ctx context.Context, exec SQLExecutor, id int, roomID, password string) error
	UpdateResults(ctx context.Context, exec SQLExecutor, id int, results models.TournamentResults, winnersDeclared bool) error
	Cancel(ctx context.Context, exec SQLExecutor, id int) error
	CountByStatus(ctx context.Context, status *models.TournamentStatus) (int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, title, category, map, match_count, type, headshot_only, starts_at, fee,
	prize_pool, rank1_prize, rank2_prize, rank3_prize, per_kill, rules,
	total_slots, filled_slots, slot_list, status, room_id, room_password,
	result_points_url, result_graphic_url, winners_declared_at, created_at`

func scanTournament(s scanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var slotList pq.StringArray
	err := s.Scan(
		&t.ID, &t.Title, &t.Category, &t.Map, &t.MatchCount, &t.Type, &t.HeadshotOnly, &t.StartsAt, &t.Fee,
		&t.PrizePool, &t.Rank1Prize, &t.Rank2Prize, &t.Rank3Prize, &t.PerKill, &t.Rules,
		&t.TotalSlots, &t.FilledSlots, &slotList, &t.Status, &t.RoomID, &t.RoomPassword,
		&t.Results.PointsTableURL, &t.Results.GraphicURL, &t.WinnersDeclaredAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SlotList = []string(slotList)
	if t.SlotList == nil {
		t.SlotList = []string{}
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			title, category, map, match_count, type, headshot_only, starts_at, fee,
			prize_pool, rank1_prize, rank2_prize, rank3_prize, per_kill, rules,
			total_slots, filled_slots, slot_list, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0, '{}', $16)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Title, t.Category, t.Map, t.MatchCount, t.Type, t.HeadshotOnly, t.StartsAt, t.Fee,
		t.PrizePool, t.Rank1Prize, t.Rank2Prize, t.Rank3Prize, t.PerKill, t.Rules,
		t.TotalSlots, t.Status,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	t.FilledSlots = 0
	t.SlotList = []string{}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(getExecutor(r.db, exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	t, err := scanTournament(getExecutor(r.db, exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argID)
		args = append(args, *filter.Category)
		argID++
	}

	query += " ORDER BY starts_at DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ReserveSlot(ctx context.Context, exec SQLExecutor, id int, label string) (*models.Tournament, error) {
	query := `
		UPDATE tournaments
		SET filled_slots = filled_slots + 1,
			slot_list = array_append(slot_list, $2)
		WHERE id = $1 AND filled_slots < total_slots
		RETURNING ` + tournamentColumns

	t, err := scanTournament(getExecutor(r.db, exec).QueryRowContext(ctx, query, id, label))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Различаем "нет турнира" и "нет мест".
	if _, getErr := r.GetByID(ctx, exec, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrTournamentNoCapacity
}

func (r *postgresTournamentRepository) ReplaceSlotList(ctx context.Context, exec SQLExecutor, id int, entries []string) error {
	query := `UPDATE tournaments SET slot_list = $2, filled_slots = $3 WHERE id = $1`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, id, pq.Array(entries), len(entries))
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	result, err := getExecutor(r.db, exec).ExecContext(ctx, `UPDATE tournaments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateRoom(ctx context.Context, exec SQLExecutor, id int, roomID, password string) error {
	query := `UPDATE tournaments SET room_id = $2, room_password = $3, status = $4 WHERE id = $1`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, id, roomID, password, models.StatusIDReleased)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateResults(ctx context.Context, exec SQLExecutor, id int, results models.TournamentResults, winnersDeclared bool) error {
	query := `
		UPDATE tournaments SET
			result_points_url = CASE WHEN $2::text <> '' THEN $2::text ELSE result_points_url END,
			result_graphic_url = CASE WHEN $3::text <> '' THEN $3::text ELSE result_graphic_url END,
			status = $4,
			winners_declared_at = CASE WHEN $5::boolean THEN $6::timestamptz ELSE winners_declared_at END
		WHERE id = $1`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query,
		id, results.PointsTableURL, results.GraphicURL, models.StatusCompleted, winnersDeclared, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Cancel(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE tournaments SET status = $2, slot_list = '{}', filled_slots = 0 WHERE id = $1`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, id, models.StatusCancelled)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CountByStatus(ctx context.Context, status *models.TournamentStatus) (int, error) {
	query := `SELECT COUNT(*) FROM tournaments`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
