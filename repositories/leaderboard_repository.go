package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/esports-booking/models"
	"github.com/lib/pq"
)

var ErrLeaderboardEntryNotFound = errors.New("leaderboard entry not found")

type LeaderboardRepository interface {
	// Upsert создает или обновляет запись по team_name.
	Upsert(ctx context.Context, entry *models.LeaderboardEntry) error
	ListTop(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetByIDs(ctx context.Context, ids []int) ([]models.LeaderboardEntry, error)
	Delete(ctx context.Context, id int) error
}

type postgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &postgresLeaderboardRepository{db: db}
}

func (r *postgresLeaderboardRepository) Upsert(ctx context.Context, e *models.LeaderboardEntry) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO leaderboard (team_name, wins, kills, points, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (team_name) DO UPDATE SET
			wins = EXCLUDED.wins, kills = EXCLUDED.kills, points = EXCLUDED.points, updated_at = NOW()
		RETURNING id, updated_at`,
		e.TeamName, e.Wins, e.Kills, e.Points,
	).Scan(&e.ID, &e.UpdatedAt)
}

func (r *postgresLeaderboardRepository) ListTop(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_name, wins, kills, points, updated_at
		FROM leaderboard ORDER BY points DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanLeaderboardRows(rows)
}

func (r *postgresLeaderboardRepository) GetByIDs(ctx context.Context, ids []int) ([]models.LeaderboardEntry, error) {
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_name, wins, kills, points, updated_at
		FROM leaderboard WHERE id = ANY($1)`, pq.Array(ids64))
	if err != nil {
		return nil, err
	}
	return scanLeaderboardRows(rows)
}

func (r *postgresLeaderboardRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM leaderboard WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrLeaderboardEntryNotFound)
}

func scanLeaderboardRows(rows *sql.Rows) ([]models.LeaderboardEntry, error) {
	defer rows.Close()
	list := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.TeamName, &e.Wins, &e.Kills, &e.Points, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
