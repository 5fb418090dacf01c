package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
)

const (
	tickerField         = "messages"
	maxTickerMessageLen = 200
)

type SettingsService interface {
	GetTicker(ctx context.Context) (*models.Ticker, error)
	AddTickerMessage(ctx context.Context, actor models.Actor, message string) (*models.Ticker, error)
	RemoveTickerMessage(ctx context.Context, actor models.Actor, message string) (*models.Ticker, error)
	GetFooterStats(ctx context.Context) (*models.FooterStats, error)
	UpdateFooterStats(ctx context.Context, actor models.Actor, stats models.FooterStats) (*models.FooterStats, error)
}

type settingsService struct {
	settingsRepo repositories.SettingsRepository
	activity     ActivityLogger
	publisher    EventPublisher
}

func NewSettingsService(settingsRepo repositories.SettingsRepository, activity ActivityLogger, publisher EventPublisher) SettingsService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	return &settingsService{
		settingsRepo: settingsRepo,
		activity:     activity,
		publisher:    publisher,
	}
}

func (s *settingsService) GetTicker(ctx context.Context) (*models.Ticker, error) {
	ticker := &models.Ticker{}
	if err := s.settingsRepo.Get(ctx, models.SettingTicker, ticker); err != nil {
		if errors.Is(err, repositories.ErrSettingNotFound) {
			return &models.Ticker{Messages: []string{}}, nil
		}
		return nil, err
	}
	if ticker.Messages == nil {
		ticker.Messages = []string{}
	}
	return ticker, nil
}

func (s *settingsService) AddTickerMessage(ctx context.Context, actor models.Actor, message string) (*models.Ticker, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	message = strings.TrimSpace(message)
	if message == "" || len([]rune(message)) > maxTickerMessageLen {
		return nil, fmt.Errorf("%w: ticker message must be 1..%d characters", ErrValidationFailed, maxTickerMessageLen)
	}

	if err := s.settingsRepo.AppendUnique(ctx, models.SettingTicker, tickerField, message); err != nil {
		return nil, fmt.Errorf("failed to add ticker message: %w", err)
	}
	s.activity.Record(ctx, actor, fmt.Sprintf("Added ticker: %s", truncate(message, 50)))
	return s.publishTicker(ctx)
}

func (s *settingsService) RemoveTickerMessage(ctx context.Context, actor models.Actor, message string) (*models.Ticker, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if err := s.settingsRepo.RemoveValue(ctx, models.SettingTicker, tickerField, message); err != nil {
		if errors.Is(err, repositories.ErrSettingNotFound) {
			return &models.Ticker{Messages: []string{}}, nil
		}
		return nil, fmt.Errorf("failed to remove ticker message: %w", err)
	}
	s.activity.Record(ctx, actor, fmt.Sprintf("Removed ticker: %s", truncate(message, 50)))
	return s.publishTicker(ctx)
}

func (s *settingsService) publishTicker(ctx context.Context) (*models.Ticker, error) {
	ticker, err := s.GetTicker(ctx)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(live.RoomTournaments, "ticker.updated", ticker)
	return ticker, nil
}

func (s *settingsService) GetFooterStats(ctx context.Context) (*models.FooterStats, error) {
	stats := &models.FooterStats{}
	if err := s.settingsRepo.Get(ctx, models.SettingFooterStats, stats); err != nil {
		if errors.Is(err, repositories.ErrSettingNotFound) {
			return stats, nil
		}
		return nil, err
	}
	return stats, nil
}

func (s *settingsService) UpdateFooterStats(ctx context.Context, actor models.Actor, stats models.FooterStats) (*models.FooterStats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if stats.Players < 0 || stats.Matches < 0 || stats.PrizeDistributed < 0 {
		return nil, fmt.Errorf("%w: stats must not be negative", ErrValidationFailed)
	}
	if err := s.settingsRepo.Put(ctx, models.SettingFooterStats, stats); err != nil {
		return nil, fmt.Errorf("failed to update footer stats: %w", err)
	}
	s.activity.Record(ctx, actor, "Updated footer stats")
	return &stats, nil
}
