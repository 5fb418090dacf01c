package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/esports-booking/cache"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
)

const (
	leaderboardKey        = "leaderboard:points"
	leaderboardWarmSize   = 1000
	defaultLeaderboardTop = 50
)

type LeaderboardInput struct {
	TeamName string `json:"team_name"`
	Wins     int    `json:"wins"`
	Kills    int    `json:"kills"`
	Points   int    `json:"points"`
}

type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Upsert(ctx context.Context, actor models.Actor, input LeaderboardInput) (*models.LeaderboardEntry, error)
	Delete(ctx context.Context, actor models.Actor, id int) error
}

type leaderboardService struct {
	repo     repositories.LeaderboardRepository
	redis    cache.Client
	activity ActivityLogger
	logger   *slog.Logger
}

// NewLeaderboardService: redisClient может быть nil, тогда все читается из Postgres.
func NewLeaderboardService(repo repositories.LeaderboardRepository, redisClient cache.Client, activity ActivityLogger, logger *slog.Logger) LeaderboardService {
	if activity == nil {
		activity = nopActivity{}
	}
	return &leaderboardService{
		repo:     repo,
		redis:    redisClient,
		activity: activity,
		logger:   logger,
	}
}

func (s *leaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = clampLimit(limit, defaultLeaderboardTop, leaderboardWarmSize)

	var (
		entries []models.LeaderboardEntry
		err     error
	)
	if s.redis != nil {
		entries, err = s.topFromCache(ctx, limit)
		if err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache unavailable, falling back to postgres", slog.Any("error", err))
			entries = nil
		}
	}
	if entries == nil {
		entries, err = s.repo.ListTop(ctx, limit)
		if err != nil {
			return nil, err
		}
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *leaderboardService) topFromCache(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	exists, err := s.redis.Exist(ctx, leaderboardKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.warmCache(ctx); err != nil {
			return nil, err
		}
	}

	zs, err := s.redis.ZRevRangeWithScores(ctx, leaderboardKey, 0, limit)
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]int, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	entries, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *leaderboardService) warmCache(ctx context.Context) error {
	entries, err := s.repo.ListTop(ctx, leaderboardWarmSize)
	if err != nil {
		return err
	}
	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		members = append(members, redis.Z{Score: float64(e.Points), Member: strconv.Itoa(e.ID)})
	}
	return s.redis.ZAdd(ctx, leaderboardKey, members...)
}

func (s *leaderboardService) Upsert(ctx context.Context, actor models.Actor, input LeaderboardInput) (*models.LeaderboardEntry, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	name := strings.TrimSpace(input.TeamName)
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	if input.Wins < 0 || input.Kills < 0 {
		return nil, fmt.Errorf("%w: wins and kills must not be negative", ErrValidationFailed)
	}

	entry := &models.LeaderboardEntry{TeamName: name, Wins: input.Wins, Kills: input.Kills, Points: input.Points}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save leaderboard entry: %w", err)
	}

	if s.redis != nil {
		// Пустой кеш заполнится при следующем чтении целиком.
		if exists, err := s.redis.Exist(ctx, leaderboardKey); err == nil && exists {
			err = s.redis.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(entry.Points), Member: strconv.Itoa(entry.ID)})
			if err != nil {
				s.invalidate(ctx, err)
			}
		} else if err != nil {
			s.invalidate(ctx, err)
		}
	}

	s.activity.Record(ctx, actor, fmt.Sprintf("Updated leaderboard: %s (%d pts)", entry.TeamName, entry.Points))
	return entry, nil
}

func (s *leaderboardService) Delete(ctx context.Context, actor models.Actor, id int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.ZRem(ctx, leaderboardKey, strconv.Itoa(id)); err != nil {
			s.invalidate(ctx, err)
		}
	}
	s.activity.Record(ctx, actor, fmt.Sprintf("Deleted leaderboard entry #%d", id))
	return nil
}

// invalidate сбрасывает кеш, если точечное обновление не удалось.
func (s *leaderboardService) invalidate(ctx context.Context, cause error) {
	s.logger.WarnContext(ctx, "leaderboard cache update failed", slog.Any("error", cause))
	if err := s.redis.Del(ctx, leaderboardKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop leaderboard cache", slog.Any("error", err))
	}
}
