package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	slotDriftInterval    = 5 * time.Minute
	notificationsPruneAt = 24 * time.Hour
	readNotificationTTL  = 30 * 24 * time.Hour
	jobTimeout           = time.Minute
)

// Scheduler - фоновые задачи: проверка счетчиков слотов и чистка прочитанных уведомлений.
type Scheduler struct {
	sched         gocron.Scheduler
	tournaments   TournamentService
	notifications NotificationService
	logger        *slog.Logger
}

func NewScheduler(tournaments TournamentService, notifications NotificationService, logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:         sched,
		tournaments:   tournaments,
		notifications: notifications,
		logger:        logger,
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(slotDriftInterval),
		gocron.NewTask(s.checkSlotDrift),
		gocron.WithName("slot-drift-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("failed to register slot drift job: %w", err)
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(notificationsPruneAt),
		gocron.NewTask(s.pruneNotifications),
		gocron.WithName("prune-read-notifications"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, fmt.Errorf("failed to register notification prune job: %w", err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.sched.Jobs())))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) checkSlotDrift() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	drift, err := s.tournaments.CheckSlotDrift(ctx)
	if err != nil {
		s.logger.Error("slot drift check failed", slog.Any("error", err))
		return
	}
	if len(drift) > 0 {
		s.logger.Warn("slot drift detected, use the slot list editor to reconcile", slog.Int("tournaments", len(drift)))
	}
}

func (s *Scheduler) pruneNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.notifications.PruneRead(ctx, readNotificationTTL); err != nil {
		s.logger.Error("notification prune failed", slog.Any("error", err))
	}
}
