package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
	customNotificationTitle  = "Admin Message 🛡️"
)

// NotificationInput - одно уведомление игроку. Inbox дублирует его во входящие.
type NotificationInput struct {
	UserID       int
	TournamentID *int
	Title        string
	Message      string
	Inbox        bool
}

type NotificationService interface {
	// Dispatch пишет уведомления через exec; внутри транзакции они фиксируются вместе с переходом.
	Dispatch(ctx context.Context, exec repositories.SQLExecutor, inputs []NotificationInput) ([]*models.Notification, error)
	// FanOutToApproved уведомляет все подтвержденные заявки турнира.
	FanOutToApproved(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, title, message string) ([]*models.Notification, error)
	// Publish отправляет уже сохраненные уведомления в live-комнаты игроков.
	Publish(created []*models.Notification)

	SendCustom(ctx context.Context, actor models.Actor, userID int, title, message string) (*models.Notification, error)
	ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int) error
	ListInbox(ctx context.Context, userID int, limit int) ([]models.InboxEntry, error)
	MarkInboxRead(ctx context.Context, userID, id int) error
	UnreadInboxCount(ctx context.Context, userID int) (int, error)
	PruneRead(ctx context.Context, olderThan time.Duration) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	bookingRepo      repositories.BookingRepository
	userRepo         repositories.UserRepository
	publisher        EventPublisher
	metrics          MetricsRecorder
	activity         ActivityLogger
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	bookingRepo repositories.BookingRepository,
	userRepo repositories.UserRepository,
	publisher EventPublisher,
	metrics MetricsRecorder,
	activity ActivityLogger,
	logger *slog.Logger,
) NotificationService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		bookingRepo:      bookingRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		metrics:          metrics,
		activity:         activity,
		logger:           logger,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, exec repositories.SQLExecutor, inputs []NotificationInput) ([]*models.Notification, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	notifications := make([]*models.Notification, 0, len(inputs))
	inbox := make([]*models.InboxEntry, 0)
	for _, in := range inputs {
		notifications = append(notifications, &models.Notification{
			UserID:       in.UserID,
			TournamentID: in.TournamentID,
			Title:        in.Title,
			Message:      in.Message,
		})
		if in.Inbox {
			inbox = append(inbox, &models.InboxEntry{
				UserID:       in.UserID,
				TournamentID: in.TournamentID,
				Title:        in.Title,
				Message:      in.Message,
			})
		}
	}

	if err := s.notificationRepo.CreateBatch(ctx, exec, notifications); err != nil {
		return nil, fmt.Errorf("failed to write notifications: %w", err)
	}
	if len(inbox) > 0 {
		if err := s.notificationRepo.CreateInboxBatch(ctx, exec, inbox); err != nil {
			return nil, fmt.Errorf("failed to write inbox entries: %w", err)
		}
	}
	return notifications, nil
}

func (s *notificationService) FanOutToApproved(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, title, message string) ([]*models.Notification, error) {
	bookings, err := s.bookingRepo.List(ctx, exec, repositories.ListBookingsFilter{
		TournamentID: &tournamentID,
		Statuses:     []models.BookingStatus{models.BookingApproved},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load approved bookings for tournament %d: %w", tournamentID, err)
	}

	inputs := make([]NotificationInput, 0, len(bookings))
	for _, b := range bookings {
		inputs = append(inputs, NotificationInput{
			UserID:       b.UserID,
			TournamentID: intPtr(tournamentID),
			Title:        title,
			Message:      message,
		})
	}
	return s.Dispatch(ctx, exec, inputs)
}

func (s *notificationService) Publish(created []*models.Notification) {
	if len(created) == 0 {
		return
	}
	s.metrics.NotificationsSent(len(created))
	for _, n := range created {
		s.publisher.Publish(live.UserRoom(n.UserID), EventTypeNotificationCreated, n)
	}
}

func (s *notificationService) SendCustom(ctx context.Context, actor models.Actor, userID int, title, message string) (*models.Notification, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidationFailed)
	}
	if strings.TrimSpace(title) == "" {
		title = customNotificationTitle
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	created, err := s.Dispatch(ctx, nil, []NotificationInput{{UserID: user.ID, Title: title, Message: message, Inbox: true}})
	if err != nil {
		return nil, err
	}
	s.Publish(created)
	s.activity.Record(ctx, actor, fmt.Sprintf("Sent personal message to %s", user.Name))
	return created[0], nil
}

func (s *notificationService) ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, clampLimit(limit, defaultNotificationLimit, maxNotificationLimit))
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int) error {
	return s.notificationRepo.MarkRead(ctx, userID, id)
}

func (s *notificationService) ListInbox(ctx context.Context, userID int, limit int) ([]models.InboxEntry, error) {
	return s.notificationRepo.ListInbox(ctx, userID, clampLimit(limit, defaultNotificationLimit, maxNotificationLimit))
}

func (s *notificationService) MarkInboxRead(ctx context.Context, userID, id int) error {
	return s.notificationRepo.MarkInboxRead(ctx, userID, id)
}

func (s *notificationService) UnreadInboxCount(ctx context.Context, userID int) (int, error) {
	return s.notificationRepo.CountUnreadInbox(ctx, userID)
}

func (s *notificationService) PruneRead(ctx context.Context, olderThan time.Duration) (int64, error) {
	removed, err := s.notificationRepo.DeleteReadBefore(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune read notifications: %w", err)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned read notifications", slog.Int64("removed", removed))
	}
	return removed, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
