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
	"github.com/Dosada05/esports-booking/utils"
)

const (
	maxContactMessageLength = 2000
	contactPreviewRunes     = 50
)

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ContactService interface {
	Submit(ctx context.Context, actor *models.Actor, input ContactInput) (*models.ContactMessage, error)
	List(ctx context.Context, actor models.Actor, status *models.ContactStatus, limit int) ([]models.ContactMessage, error)
	ListForUser(ctx context.Context, actor models.Actor) ([]models.ContactMessage, error)
	Reply(ctx context.Context, actor models.Actor, id int, reply string) (*models.ContactMessage, error)
	Delete(ctx context.Context, actor models.Actor, id int) error
}

type contactService struct {
	contactRepo repositories.ContactRepository
	transactor  repositories.Transactor
	notifier    NotificationService
	activity    ActivityLogger
	publisher   EventPublisher
	logger      *slog.Logger
}

func NewContactService(
	contactRepo repositories.ContactRepository,
	transactor repositories.Transactor,
	notifier NotificationService,
	activity ActivityLogger,
	publisher EventPublisher,
	logger *slog.Logger,
) ContactService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	return &contactService{
		contactRepo: contactRepo,
		transactor:  transactor,
		notifier:    notifier,
		activity:    activity,
		publisher:   publisher,
		logger:      logger,
	}
}

// Submit принимает обращение; actor == nil для анонимного посетителя.
func (s *contactService) Submit(ctx context.Context, actor *models.Actor, input ContactInput) (*models.ContactMessage, error) {
	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   utils.NormalizeEmail(input.Email),
		Message: strings.TrimSpace(input.Message),
		Status:  models.ContactUnread,
	}
	if actor != nil && actor.UserID > 0 {
		userID := actor.UserID
		msg.UserID = &userID
		if msg.Email == "" {
			msg.Email = actor.Email
		}
		if msg.Name == "" {
			msg.Name = actor.Name
		}
	}

	if msg.Name == "" || msg.Message == "" || !utils.IsValidEmail(msg.Email) {
		return nil, fmt.Errorf("%w: name, valid email and message are required", ErrValidationFailed)
	}
	if len([]rune(msg.Message)) > maxContactMessageLength {
		return nil, fmt.Errorf("%w: message is too long", ErrValidationFailed)
	}

	if err := s.contactRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save contact message: %w", err)
	}
	s.publisher.Publish(live.RoomAdmin, "contact.created", msg)
	return msg, nil
}

func (s *contactService) List(ctx context.Context, actor models.Actor, status *models.ContactStatus, limit int) ([]models.ContactMessage, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	return s.contactRepo.List(ctx, repositories.ListContactFilter{Status: status, Limit: clampLimit(limit, 100, 500)})
}

func (s *contactService) ListForUser(ctx context.Context, actor models.Actor) ([]models.ContactMessage, error) {
	if actor.UserID <= 0 {
		return nil, ErrAuthenticationFailed
	}
	userID := actor.UserID
	return s.contactRepo.List(ctx, repositories.ListContactFilter{UserID: &userID, Limit: 50})
}

func (s *contactService) Reply(ctx context.Context, actor models.Actor, id int, reply string) (*models.ContactMessage, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("%w: reply is required", ErrValidationFailed)
	}

	msg, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var created []*models.Notification
	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.contactRepo.SetReply(ctx, exec, id, reply, now); err != nil {
			return err
		}
		// Анонимному отправителю уведомление не доставить.
		if msg.UserID == nil {
			return nil
		}
		var err error
		created, err = s.notifier.Dispatch(ctx, exec, []NotificationInput{{
			UserID:  *msg.UserID,
			Title:   "💬 Admin Reply",
			Message: fmt.Sprintf("Replying to your query:\n\"%s\"\n\nAdmin: %s", truncate(msg.Message, contactPreviewRunes), reply),
			Inbox:   true,
		}})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(created)
	msg.Status = models.ContactReplied
	msg.AdminReply = reply
	msg.RepliedAt = &now
	s.activity.Record(ctx, actor, fmt.Sprintf("Replied to message from %s", msg.Name))
	return msg, nil
}

func (s *contactService) Delete(ctx context.Context, actor models.Actor, id int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	if err := s.contactRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.activity.Record(ctx, actor, "Deleted a contact message")
	return nil
}
