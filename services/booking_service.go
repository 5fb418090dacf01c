package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/storage"
)

const (
	adminMessagePreviewRunes = 50
	defaultBookingsLimit     = 100
	maxBookingsLimit         = 500
)

type SubmitBookingInput struct {
	PlayerName string `json:"player_name"`
	GameUID    string `json:"game_uid"`
	Whatsapp   string `json:"whatsapp"`
}

type BookingListFilter struct {
	TournamentID *int
	Status       *models.BookingStatus
	Limit        int
	Offset       int
}

type BookingService interface {
	Submit(ctx context.Context, actor models.Actor, tournamentID int, input SubmitBookingInput, screenshot *FileInput) (*models.Booking, error)
	Approve(ctx context.Context, actor models.Actor, bookingID int, idempotencyKey string) (*models.Booking, error)
	Reject(ctx context.Context, actor models.Actor, bookingID int, idempotencyKey string) (*models.Booking, error)
	SendMessage(ctx context.Context, actor models.Actor, bookingID int, text, idempotencyKey string) (*models.Booking, error)
	// UpdateStatus - простые переходы approved -> completed|cancelled.
	UpdateStatus(ctx context.Context, actor models.Actor, bookingID int, status models.BookingStatus, idempotencyKey string) (*models.Booking, error)
	UploadPayoutQR(ctx context.Context, actor models.Actor, bookingID int, qr *FileInput) (*models.Booking, error)
	MarkPaid(ctx context.Context, actor models.Actor, bookingID int, proof *FileInput, idempotencyKey string) (*models.Booking, error)

	Get(ctx context.Context, actor models.Actor, bookingID int) (*models.Booking, error)
	ListForUser(ctx context.Context, actor models.Actor) ([]models.Booking, error)
	List(ctx context.Context, actor models.Actor, filter BookingListFilter) ([]models.Booking, error)
}

type bookingService struct {
	bookingRepo    repositories.BookingRepository
	tournamentRepo repositories.TournamentRepository
	keyRepo        repositories.TransitionKeyRepository
	transactor     repositories.Transactor
	notifier       NotificationService
	uploader       storage.FileUploader
	activity       ActivityLogger
	publisher      EventPublisher
	metrics        MetricsRecorder
	logger         *slog.Logger
	now            func() time.Time
}

func NewBookingService(
	bookingRepo repositories.BookingRepository,
	tournamentRepo repositories.TournamentRepository,
	keyRepo repositories.TransitionKeyRepository,
	transactor repositories.Transactor,
	notifier NotificationService,
	uploader storage.FileUploader,
	activity ActivityLogger,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
) BookingService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	return &bookingService{
		bookingRepo:    bookingRepo,
		tournamentRepo: tournamentRepo,
		keyRepo:        keyRepo,
		transactor:     transactor,
		notifier:       notifier,
		uploader:       uploader,
		activity:       activity,
		publisher:      publisher,
		metrics:        metrics,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) Submit(ctx context.Context, actor models.Actor, tournamentID int, input SubmitBookingInput, screenshot *FileInput) (*models.Booking, error) {
	if actor.UserID <= 0 {
		return nil, ErrAuthenticationFailed
	}

	name := strings.TrimSpace(input.PlayerName)
	whatsapp := strings.TrimSpace(input.Whatsapp)
	if name == "" || whatsapp == "" {
		return nil, fmt.Errorf("%w: player name and whatsapp are required", ErrValidationFailed)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusOpen {
		return nil, ErrRegistrationNotOpen
	}
	if !tournament.HasCapacity() {
		return nil, ErrTournamentFull
	}
	if tournament.Fee > 0 && screenshot.empty() {
		return nil, ErrScreenshotRequired
	}

	if err := s.checkDuplicateName(ctx, tournament, name); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		TournamentID: tournamentID,
		UserID:       actor.UserID,
		PlayerName:   name,
		GameUID:      strings.TrimSpace(input.GameUID),
		Whatsapp:     whatsapp,
	}
	booking.Status, err = NextBookingStatus("", EventSubmit)
	if err != nil {
		return nil, err
	}

	var uploadedKey string
	if !screenshot.empty() {
		key, url, err := uploadImage(ctx, s.uploader, fmt.Sprintf("bookings/%d", tournamentID), "screenshot", screenshot)
		if err != nil {
			return nil, err
		}
		uploadedKey = key
		booking.ScreenshotURL = url
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		deleteUploaded(ctx, s.uploader, uploadedKey, s.logger)
		if errors.Is(err, repositories.ErrBookingInvalidReference) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.metrics.BookingTransition(string(EventSubmit), string(booking.Status))
	s.publishBooking(booking)
	s.logger.InfoContext(ctx, "booking submitted",
		slog.Int("booking_id", booking.ID),
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", actor.UserID),
	)
	return booking, nil
}

// checkDuplicateName: имя не должно входить подстрокой в запись ростера
// и не должно совпадать с именем другой активной заявки этого турнира.
func (s *bookingService) checkDuplicateName(ctx context.Context, tournament *models.Tournament, name string) error {
	normalized := normalizeName(name)
	for _, entry := range tournament.SlotList {
		if strings.Contains(normalizeName(entry), normalized) {
			return ErrDuplicatePlayerName
		}
	}

	tournamentID := tournament.ID
	active, err := s.bookingRepo.List(ctx, nil, repositories.ListBookingsFilter{
		TournamentID: &tournamentID,
		Statuses:     []models.BookingStatus{models.BookingPending, models.BookingApproved},
	})
	if err != nil {
		return fmt.Errorf("failed to check existing bookings: %w", err)
	}
	for _, b := range active {
		if normalizeName(b.PlayerName) == normalized {
			return ErrDuplicatePlayerName
		}
	}
	return nil
}

// transitionEffect вычисляет изменения записи и уведомления для перехода.
// Вызывается внутри транзакции с уже заблокированной заявкой.
// t - заблокированный турнир заявки, если переход его затрагивает, иначе nil.
type transitionEffect func(exec repositories.SQLExecutor, b *models.Booking, t *models.Tournament, to models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error)

type transitionResult struct {
	booking       *models.Booking
	notifications []*models.Notification
	replayed      bool
}

// applyTransition выполняет один переход целиком в одной транзакции.
// Повтор с тем же ключом ничего не меняет и возвращает текущее состояние.
// Порядок блокировок: турнир (если lockTournament), затем заявка.
func (s *bookingService) applyTransition(ctx context.Context, bookingID int, event BookingEvent, idempotencyKey string, lockTournament bool, effect transitionEffect) (*transitionResult, error) {
	result := &transitionResult{}

	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var tournament *models.Tournament
		if lockTournament {
			snapshot, err := s.bookingRepo.GetByID(ctx, exec, bookingID)
			if err != nil {
				return err
			}
			tournament, err = s.tournamentRepo.GetForUpdate(ctx, exec, snapshot.TournamentID)
			if err != nil {
				return err
			}
		}

		current, err := s.bookingRepo.GetForUpdate(ctx, exec, bookingID)
		if err != nil {
			return err
		}

		if idempotencyKey != "" {
			scope := fmt.Sprintf("booking:%d:%s", bookingID, event)
			if err := s.keyRepo.Claim(ctx, exec, idempotencyKey, scope); err != nil {
				if errors.Is(err, repositories.ErrTransitionKeyAlreadyUsed) {
					result.booking = current
					result.replayed = true
					return nil
				}
				return fmt.Errorf("failed to claim idempotency key: %w", err)
			}
		}

		to, err := NextBookingStatus(current.Status, event)
		if err != nil {
			return err
		}

		upd, inputs, err := effect(exec, current, tournament, to)
		if err != nil {
			return err
		}
		upd.Status = to

		updated, err := s.bookingRepo.Apply(ctx, exec, bookingID, upd)
		if err != nil {
			return err
		}

		created, err := s.notifier.Dispatch(ctx, exec, inputs)
		if err != nil {
			return err
		}

		result.booking = updated
		result.notifications = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.replayed {
		s.metrics.BookingTransition(string(event), string(result.booking.Status))
		s.publishBooking(result.booking)
		s.notifier.Publish(result.notifications)
	}
	return result, nil
}

func (s *bookingService) Approve(ctx context.Context, actor models.Actor, bookingID int, idempotencyKey string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	var tournament *models.Tournament
	res, err := s.applyTransition(ctx, bookingID, EventApprove, idempotencyKey, true,
		func(exec repositories.SQLExecutor, b *models.Booking, t *models.Tournament, _ models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			if t.Status != models.StatusOpen && t.Status != models.StatusIDReleased {
				return repositories.BookingUpdate{}, nil, ErrRegistrationNotOpen
			}

			label := slotLabel(b.PlayerName, b.GameUID)
			t, err := s.tournamentRepo.ReserveSlot(ctx, exec, b.TournamentID, label)
			if err != nil {
				if errors.Is(err, repositories.ErrTournamentNoCapacity) {
					return repositories.BookingUpdate{}, nil, ErrTournamentFull
				}
				return repositories.BookingUpdate{}, nil, err
			}
			tournament = t

			rules := strings.TrimSpace(t.Rules)
			if rules == "" {
				rules = defaultMatchRules
			}
			note := NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(b.TournamentID),
				Title:        "✅ Booking Approved",
				Message:      fmt.Sprintf("Your slot for Match #%d is confirmed.\n\nRULES:\n%s", b.TournamentID, rules),
			}
			return repositories.BookingUpdate{SlotLabel: strPtr(label)}, []NotificationInput{note}, nil
		})
	if err != nil {
		return nil, err
	}

	if !res.replayed {
		if tournament != nil {
			s.publishTournament(tournament)
		}
		s.activity.Record(ctx, actor, fmt.Sprintf("Approved booking for %s in match #%d", res.booking.PlayerName, res.booking.TournamentID))
	}
	return res.booking, nil
}

func (s *bookingService) Reject(ctx context.Context, actor models.Actor, bookingID int, idempotencyKey string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	res, err := s.applyTransition(ctx, bookingID, EventReject, idempotencyKey, false,
		func(_ repositories.SQLExecutor, b *models.Booking, _ *models.Tournament, _ models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			note := NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(b.TournamentID),
				Title:        "❌ Booking Rejected",
				Message:      "Your payment screenshot or details were invalid. Contact Admin.",
			}
			return repositories.BookingUpdate{}, []NotificationInput{note}, nil
		})
	if err != nil {
		return nil, err
	}

	if !res.replayed {
		s.activity.Record(ctx, actor, fmt.Sprintf("Rejected booking for %s", res.booking.PlayerName))
	}
	return res.booking, nil
}

func (s *bookingService) SendMessage(ctx context.Context, actor models.Actor, bookingID int, text, idempotencyKey string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidationFailed)
	}

	res, err := s.applyTransition(ctx, bookingID, EventMessage, idempotencyKey, false,
		func(_ repositories.SQLExecutor, b *models.Booking, _ *models.Tournament, _ models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			now := s.now()
			note := NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(b.TournamentID),
				Title:        "📨 Admin Message",
				Message:      fmt.Sprintf("Admin sent you a message: \"%s\"", truncate(text, adminMessagePreviewRunes)),
				Inbox:        true,
			}
			return repositories.BookingUpdate{AdminMessage: strPtr(text), MessageTime: &now}, []NotificationInput{note}, nil
		})
	if err != nil {
		return nil, err
	}

	if !res.replayed {
		s.activity.Record(ctx, actor, fmt.Sprintf("Sent message to booking %d: %s", bookingID, truncate(text, 30)))
	}
	return res.booking, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, actor models.Actor, bookingID int, status models.BookingStatus, idempotencyKey string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	var event BookingEvent
	switch status {
	case models.BookingCompleted:
		event = EventComplete
	case models.BookingCancelled:
		event = EventCancel
	default:
		return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrInvalidBookingTransition, status)
	}

	res, err := s.applyTransition(ctx, bookingID, event, idempotencyKey, false,
		func(repositories.SQLExecutor, *models.Booking, *models.Tournament, models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			return repositories.BookingUpdate{}, nil, nil
		})
	if err != nil {
		return nil, err
	}

	if !res.replayed {
		s.activity.Record(ctx, actor, fmt.Sprintf("Updated booking %d to %s", bookingID, status))
	}
	return res.booking, nil
}

func (s *bookingService) UploadPayoutQR(ctx context.Context, actor models.Actor, bookingID int, qr *FileInput) (*models.Booking, error) {
	if qr.empty() {
		return nil, ErrFileRequired
	}

	booking, err := s.bookingRepo.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID {
		return nil, ErrForbiddenOperation
	}
	if _, err := NextBookingStatus(booking.Status, EventUploadQR); err != nil {
		return nil, err
	}

	key, url, err := uploadImage(ctx, s.uploader, fmt.Sprintf("payouts/%d", bookingID), "qr", qr)
	if err != nil {
		return nil, err
	}

	res, err := s.applyTransition(ctx, bookingID, EventUploadQR, "", false,
		func(_ repositories.SQLExecutor, b *models.Booking, _ *models.Tournament, _ models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			if b.UserID != actor.UserID {
				return repositories.BookingUpdate{}, nil, ErrForbiddenOperation
			}
			return repositories.BookingUpdate{UserQR: strPtr(url)}, nil, nil
		})
	if err != nil {
		deleteUploaded(ctx, s.uploader, key, s.logger)
		return nil, err
	}
	return res.booking, nil
}

func (s *bookingService) MarkPaid(ctx context.Context, actor models.Actor, bookingID int, proof *FileInput, idempotencyKey string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	booking, err := s.bookingRepo.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserQR == "" {
		return nil, ErrPayoutQRRequired
	}
	if proof.empty() {
		return nil, ErrPaymentProofRequired
	}

	var key, url string
	if _, err := NextBookingStatus(booking.Status, EventMarkPaid); err == nil {
		key, url, err = uploadImage(ctx, s.uploader, fmt.Sprintf("payouts/%d", bookingID), "proof", proof)
		if err != nil {
			return nil, err
		}
	}

	res, err := s.applyTransition(ctx, bookingID, EventMarkPaid, idempotencyKey, false,
		func(_ repositories.SQLExecutor, b *models.Booking, _ *models.Tournament, to models.BookingStatus) (repositories.BookingUpdate, []NotificationInput, error) {
			if b.UserQR == "" {
				return repositories.BookingUpdate{}, nil, ErrPayoutQRRequired
			}
			if url == "" {
				return repositories.BookingUpdate{}, nil, ErrPaymentProofRequired
			}

			title, message := "💰 Prize Paid", fmt.Sprintf("Your prize of ₹%d for Match #%d has been paid.", b.PrizeAmount, b.TournamentID)
			if to == models.BookingRefundPaid {
				title, message = "💰 Refund Paid", fmt.Sprintf("Your refund of ₹%d for Match #%d has been paid.", b.PrizeAmount, b.TournamentID)
			}
			paidAt := s.now()
			note := NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(b.TournamentID),
				Title:        title,
				Message:      message,
				Inbox:        true,
			}
			return repositories.BookingUpdate{PaymentProof: strPtr(url), PaidAt: &paidAt}, []NotificationInput{note}, nil
		})
	if err != nil {
		deleteUploaded(ctx, s.uploader, key, s.logger)
		return nil, err
	}

	if res.replayed {
		deleteUploaded(ctx, s.uploader, key, s.logger)
	} else {
		s.activity.Record(ctx, actor, fmt.Sprintf("Marked booking %d as %s", bookingID, res.booking.Status))
	}
	return res.booking, nil
}

func (s *bookingService) Get(ctx context.Context, actor models.Actor, bookingID int) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && booking.UserID != actor.UserID {
		return nil, ErrForbiddenOperation
	}
	return booking, nil
}

func (s *bookingService) ListForUser(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	if actor.UserID <= 0 {
		return nil, ErrAuthenticationFailed
	}
	userID := actor.UserID
	bookings, err := s.bookingRepo.List(ctx, nil, repositories.ListBookingsFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}

	// К каждой заявке прикладываем турнир; данные комнаты видны только подтвержденным.
	cache := make(map[int]*models.Tournament)
	for i := range bookings {
		b := &bookings[i]
		t, ok := cache[b.TournamentID]
		if !ok {
			t, err = s.tournamentRepo.GetByID(ctx, nil, b.TournamentID)
			if err != nil {
				if errors.Is(err, repositories.ErrTournamentNotFound) {
					continue
				}
				return nil, err
			}
			cache[b.TournamentID] = t
		}
		view := *t
		if !b.Status.OccupiesSlot() {
			view = t.PublicView()
		}
		b.Tournament = &view
	}
	return bookings, nil
}

func (s *bookingService) List(ctx context.Context, actor models.Actor, filter BookingListFilter) ([]models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	repoFilter := repositories.ListBookingsFilter{
		TournamentID: filter.TournamentID,
		Limit:        clampLimit(filter.Limit, defaultBookingsLimit, maxBookingsLimit),
		Offset:       filter.Offset,
	}
	if filter.Status != nil {
		repoFilter.Statuses = []models.BookingStatus{*filter.Status}
	}
	return s.bookingRepo.List(ctx, nil, repoFilter)
}

type bookingSummary struct {
	ID           int                  `json:"id"`
	TournamentID int                  `json:"tournament_id"`
	Status       models.BookingStatus `json:"status"`
	SlotLabel    string               `json:"slot_label,omitempty"`
}

func (s *bookingService) publishBooking(b *models.Booking) {
	// Комната матча публичная: только сводка без контактов игрока.
	s.publisher.Publish(live.TournamentRoom(b.TournamentID), EventTypeBookingUpdated, bookingSummary{
		ID:           b.ID,
		TournamentID: b.TournamentID,
		Status:       b.Status,
		SlotLabel:    b.SlotLabel,
	})
	s.publisher.Publish(live.UserRoom(b.UserID), EventTypeBookingUpdated, b)
	s.publisher.Publish(live.RoomAdmin, EventTypeBookingUpdated, b)
}

func (s *bookingService) publishTournament(t *models.Tournament) {
	view := t.PublicView()
	s.publisher.Publish(live.RoomTournaments, EventTypeTournamentUpdated, view)
	s.publisher.Publish(live.TournamentRoom(t.ID), EventTypeTournamentUpdated, view)
}
