package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/storage"
)

const (
	defaultMap        = "Bermuda"
	defaultMatchCount = 1
	defaultRules      = "1. No Emulator allowed\n2. Screenshot mandatory\n3. ID/Pass 10 mins before start."
)

var (
	categorySlots = map[models.TournamentCategory]int{
		models.CategoryBR: 48,
		models.CategoryCS: 2,
	}
	categoryDefaultType = map[models.TournamentCategory]string{
		models.CategoryBR: "Squad",
		models.CategoryCS: "4v4",
	}
	categoryTypes = map[models.TournamentCategory][]string{
		models.CategoryBR: {"Solo", "Duo", "Squad"},
		models.CategoryCS: {"1v1", "2v2", "3v3", "4v4", "6v6"},
	}
)

type CreateTournamentInput struct {
	Title        string                    `json:"title"`
	Category     models.TournamentCategory `json:"category"`
	Map          string                    `json:"map"`
	MatchCount   int                       `json:"match_count"`
	Type         string                    `json:"type"`
	HeadshotOnly bool                      `json:"headshot_only"`
	StartsAt     time.Time                 `json:"time"`
	Fee          int                       `json:"fee"`
	PrizePool    int                       `json:"prize_pool"`
	Rank1Prize   int                       `json:"rank1"`
	Rank2Prize   int                       `json:"rank2"`
	Rank3Prize   int                       `json:"rank3"`
	PerKill      int                       `json:"per_kill"`
	Rules        string                    `json:"rules"`
	TotalSlots   int                       `json:"total_slots"`
}

// TournamentTab - вкладка списка: live или прошедшие.
type TournamentTab string

const (
	TabLive TournamentTab = "live"
	TabPast TournamentTab = "past"
)

type TournamentListFilter struct {
	Status   *models.TournamentStatus
	Category *models.TournamentCategory
	Tab      TournamentTab
	Limit    int
	Offset   int
}

// WinnerSelection - метка слота (или имя игрока) и занятое место.
// Prize > 0 переопределяет приз за место из турнира.
type WinnerSelection struct {
	Label string `json:"label"`
	Rank  int    `json:"rank"`
	Prize int    `json:"prize"`
}

type DeclareResultsInput struct {
	Winners      []WinnerSelection
	PointsTable  *FileInput
	ResultBanner *FileInput
}

type TournamentService interface {
	Create(ctx context.Context, actor models.Actor, input CreateTournamentInput) (*models.Tournament, error)
	Get(ctx context.Context, actor models.Actor, id int) (*models.Tournament, error)
	List(ctx context.Context, actor models.Actor, filter TournamentListFilter) ([]models.Tournament, error)
	Delete(ctx context.Context, actor models.Actor, id int) error
	UpdateStatus(ctx context.Context, actor models.Actor, id int, status models.TournamentStatus) (*models.Tournament, error)

	ReleaseRoom(ctx context.Context, actor models.Actor, id int, roomID, password, idempotencyKey string) (*models.Tournament, error)
	ReplaceSlotList(ctx context.Context, actor models.Actor, id int, roster, idempotencyKey string) (*models.Tournament, error)
	DeclareResults(ctx context.Context, actor models.Actor, id int, input DeclareResultsInput, idempotencyKey string) (*models.Tournament, []models.Booking, error)
	UploadResultImages(ctx context.Context, actor models.Actor, id int, pointsTable, banner *FileInput) (*models.Tournament, error)
	Cancel(ctx context.Context, actor models.Actor, id int, idempotencyKey string) (*models.Tournament, []models.Booking, error)

	// CheckSlotDrift сравнивает filled_slots с числом заявок, занимающих слот.
	CheckSlotDrift(ctx context.Context) (map[int]int, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	bookingRepo    repositories.BookingRepository
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

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	bookingRepo repositories.BookingRepository,
	keyRepo repositories.TransitionKeyRepository,
	transactor repositories.Transactor,
	notifier NotificationService,
	uploader storage.FileUploader,
	activity ActivityLogger,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
) TournamentService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if activity == nil {
		activity = nopActivity{}
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		bookingRepo:    bookingRepo,
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

func (s *tournamentService) Create(ctx context.Context, actor models.Actor, input CreateTournamentInput) (*models.Tournament, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || input.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: title and time are required", ErrValidationFailed)
	}

	category := input.Category
	if category == "" {
		category = models.CategoryBR
	}
	if _, ok := categorySlots[category]; !ok {
		return nil, ErrTournamentInvalidCategory
	}

	teamType := strings.TrimSpace(input.Type)
	if teamType == "" {
		teamType = categoryDefaultType[category]
	}
	if !containsString(categoryTypes[category], teamType) {
		return nil, ErrTournamentInvalidType
	}

	slots := input.TotalSlots
	if slots == 0 {
		slots = categorySlots[category]
	}
	if slots < 0 {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.Fee < 0 || input.PrizePool < 0 || input.Rank1Prize < 0 || input.Rank2Prize < 0 || input.Rank3Prize < 0 || input.PerKill < 0 {
		return nil, fmt.Errorf("%w: amounts must not be negative", ErrValidationFailed)
	}

	t := &models.Tournament{
		Title:        title,
		Category:     category,
		Map:          firstNonEmpty(strings.TrimSpace(input.Map), defaultMap),
		MatchCount:   input.MatchCount,
		Type:         teamType,
		HeadshotOnly: input.HeadshotOnly,
		StartsAt:     input.StartsAt.UTC(),
		Fee:          input.Fee,
		PrizePool:    input.PrizePool,
		Rank1Prize:   input.Rank1Prize,
		Rank2Prize:   input.Rank2Prize,
		Rank3Prize:   input.Rank3Prize,
		PerKill:      input.PerKill,
		Rules:        firstNonEmpty(strings.TrimSpace(input.Rules), defaultRules),
		TotalSlots:   slots,
		Status:       models.StatusOpen,
	}
	if t.MatchCount <= 0 {
		t.MatchCount = defaultMatchCount
	}

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.publishTournament(t)
	s.activity.Record(ctx, actor, fmt.Sprintf("Created match: %s", t.Title))
	return t, nil
}

func (s *tournamentService) Get(ctx context.Context, actor models.Actor, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return t, nil
	}
	if actor.UserID > 0 && s.hasConfirmedBooking(ctx, id, actor.UserID) {
		return t, nil
	}
	view := t.PublicView()
	return &view, nil
}

func (s *tournamentService) hasConfirmedBooking(ctx context.Context, tournamentID, userID int) bool {
	bookings, err := s.bookingRepo.List(ctx, nil, repositories.ListBookingsFilter{
		TournamentID: &tournamentID,
		UserID:       &userID,
		Statuses:     []models.BookingStatus{models.BookingApproved, models.BookingCompleted, models.BookingWon, models.BookingProcessing, models.BookingPaid},
		Limit:        1,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check booking for room access",
			slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID), slog.Any("error", err))
		return false
	}
	return len(bookings) > 0
}

func (s *tournamentService) List(ctx context.Context, actor models.Actor, filter TournamentListFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		Status:   filter.Status,
		Category: filter.Category,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]models.Tournament, 0, len(tournaments))
	for _, t := range tournaments {
		switch filter.Tab {
		case TabLive:
			if !t.IsLive(now) {
				continue
			}
		case TabPast:
			if t.IsLive(now) {
				continue
			}
		}
		if !actor.IsAdmin() {
			t = t.PublicView()
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *tournamentService) Delete(ctx context.Context, actor models.Actor, id int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(live.RoomTournaments, EventTypeTournamentDeleted, map[string]int{"id": id})
	s.activity.Record(ctx, actor, fmt.Sprintf("Deleted match: %s", t.Title))
	return nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, actor models.Actor, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	// Отмена и завершение с победителями имеют свои побочные эффекты.
	if status == models.StatusCancelled {
		t, _, err := s.Cancel(ctx, actor, id, "")
		return t, err
	}

	var updated *models.Tournament
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetForUpdate(ctx, exec, id)
		if err != nil {
			return err
		}
		if !isValidTournamentStatusTransition(t.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, status)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, status); err != nil {
			return err
		}
		t.Status = status
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishTournament(updated)
	s.activity.Record(ctx, actor, fmt.Sprintf("Updated match %s to %s", updated.Title, status))
	return updated, nil
}

// withTournamentTx блокирует турнир, забирает ключ идемпотентности и выполняет fn.
// replayed=true означает, что ключ уже применен и fn не вызывалась.
func (s *tournamentService) withTournamentTx(
	ctx context.Context, id int, scope, idempotencyKey string,
	fn func(exec repositories.SQLExecutor, t *models.Tournament) error,
) (replayed bool, err error) {
	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetForUpdate(ctx, exec, id)
		if err != nil {
			return err
		}
		if idempotencyKey != "" {
			if err := s.keyRepo.Claim(ctx, exec, idempotencyKey, fmt.Sprintf("tournament:%d:%s", id, scope)); err != nil {
				if errors.Is(err, repositories.ErrTransitionKeyAlreadyUsed) {
					replayed = true
					return nil
				}
				return fmt.Errorf("failed to claim idempotency key: %w", err)
			}
		}
		return fn(exec, t)
	})
	return replayed, err
}

func (s *tournamentService) ReleaseRoom(ctx context.Context, actor models.Actor, id int, roomID, password, idempotencyKey string) (*models.Tournament, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	roomID = strings.TrimSpace(roomID)
	password = strings.TrimSpace(password)
	if roomID == "" || password == "" {
		return nil, fmt.Errorf("%w: room id and password are required", ErrValidationFailed)
	}

	var created []*models.Notification
	replayed, err := s.withTournamentTx(ctx, id, "release_room", idempotencyKey, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		if !isValidTournamentStatusTransition(t.Status, models.StatusIDReleased) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusIDReleased)
		}
		if err := s.tournamentRepo.UpdateRoom(ctx, exec, id, roomID, password); err != nil {
			return err
		}
		var err error
		created, err = s.notifier.FanOutToApproved(ctx, exec, id,
			"🔑 ID/PASS RELEASED!",
			fmt.Sprintf("Room ID for %s is out! Check Dashboard immediately.", t.Title),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.notifier.Publish(created)
		s.publishTournament(t)
		s.activity.Record(ctx, actor, fmt.Sprintf("Released ID/Pass for match: %s", t.Title))
	}
	return t, nil
}

// ParseRoster разбивает ростер по строкам, обрезает пробелы и выбрасывает пустые строки.
func ParseRoster(roster string) []string {
	lines := strings.Split(strings.ReplaceAll(roster, "\r\n", "\n"), "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	return entries
}

func (s *tournamentService) ReplaceSlotList(ctx context.Context, actor models.Actor, id int, roster, idempotencyKey string) (*models.Tournament, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	entries := ParseRoster(roster)

	var created []*models.Notification
	replayed, err := s.withTournamentTx(ctx, id, "slot_list", idempotencyKey, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		if t.Status == models.StatusCancelled {
			return fmt.Errorf("%w: match is cancelled", ErrTournamentInvalidStatusTransition)
		}
		if len(entries) > t.TotalSlots {
			return fmt.Errorf("%w: slot list has %d entries but the match has %d slots", ErrValidationFailed, len(entries), t.TotalSlots)
		}
		if err := s.tournamentRepo.ReplaceSlotList(ctx, exec, id, entries); err != nil {
			return err
		}
		var err error
		created, err = s.notifier.FanOutToApproved(ctx, exec, id,
			"📋 SLOT LIST UPDATED",
			fmt.Sprintf("Check the slot list for %s.", t.Title),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.notifier.Publish(created)
		s.publishTournament(t)
		s.activity.Record(ctx, actor, fmt.Sprintf("Updated slot list for match: %s", t.Title))
	}
	return t, nil
}

// uploadResults загружает картинки результатов параллельно.
func (s *tournamentService) uploadResults(ctx context.Context, id int, pointsTable, banner *FileInput) (models.TournamentResults, []string, error) {
	var results models.TournamentResults
	keys := make([]string, 2)
	prefix := fmt.Sprintf("results/%d", id)

	g, gctx := errgroup.WithContext(ctx)
	if !pointsTable.empty() {
		g.Go(func() error {
			key, url, err := uploadImage(gctx, s.uploader, prefix, "points", pointsTable)
			if err != nil {
				return err
			}
			keys[0], results.PointsTableURL = key, url
			return nil
		})
	}
	if !banner.empty() {
		g.Go(func() error {
			key, url, err := uploadImage(gctx, s.uploader, prefix, "banner", banner)
			if err != nil {
				return err
			}
			keys[1], results.GraphicURL = key, url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cleanupUploads(ctx, keys)
		return models.TournamentResults{}, nil, err
	}
	return results, keys, nil
}

func (s *tournamentService) cleanupUploads(ctx context.Context, keys []string) {
	for _, key := range keys {
		deleteUploaded(ctx, s.uploader, key, s.logger)
	}
}

func (s *tournamentService) DeclareResults(ctx context.Context, actor models.Actor, id int, input DeclareResultsInput, idempotencyKey string) (*models.Tournament, []models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, nil, ErrForbiddenOperation
	}

	winners := make(map[string]WinnerSelection)
	for _, w := range input.Winners {
		label := normalizeName(w.Label)
		if label == "" {
			continue
		}
		if w.Rank < 0 || w.Prize < 0 {
			return nil, nil, fmt.Errorf("%w: rank and prize must not be negative", ErrValidationFailed)
		}
		if _, exists := winners[label]; !exists {
			winners[label] = w
		}
	}
	if len(winners) == 0 {
		return nil, nil, ErrNoWinnersSelected
	}

	results, keys, err := s.uploadResults(ctx, id, input.PointsTable, input.ResultBanner)
	if err != nil {
		return nil, nil, err
	}

	var (
		won     []models.Booking
		created []*models.Notification
	)
	replayed, err := s.withTournamentTx(ctx, id, "declare_results", idempotencyKey, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		if t.WinnersDeclaredAt != nil {
			return ErrWinnersAlreadySet
		}
		if !isValidTournamentStatusTransition(t.Status, models.StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusCompleted)
		}

		approved, err := s.bookingRepo.List(ctx, exec, repositories.ListBookingsFilter{
			TournamentID: &id,
			Statuses:     []models.BookingStatus{models.BookingApproved},
		})
		if err != nil {
			return err
		}

		inputs := make([]NotificationInput, 0)
		for _, b := range approved {
			w, ok := matchWinner(winners, b)
			if !ok {
				continue
			}
			to, err := NextBookingStatus(b.Status, EventDeclareWinner)
			if err != nil {
				return err
			}
			prize := w.Prize
			if prize == 0 {
				prize = t.RankPrize(w.Rank)
			}
			upd := repositories.BookingUpdate{Status: to, PrizeAmount: intPtr(prize)}
			if w.Rank > 0 {
				upd.PrizeRank = intPtr(w.Rank)
			}
			updated, err := s.bookingRepo.Apply(ctx, exec, b.ID, upd)
			if err != nil {
				return err
			}
			won = append(won, *updated)

			msg := fmt.Sprintf("Congratulations! You won ₹%d in %s. Upload your payout QR from the Dashboard.", prize, t.Title)
			if w.Rank > 0 {
				msg = fmt.Sprintf("Congratulations! You placed #%d and won ₹%d in %s. Upload your payout QR from the Dashboard.", w.Rank, prize, t.Title)
			}
			inputs = append(inputs, NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(id),
				Title:        "🏆 You Won!",
				Message:      msg,
				Inbox:        true,
			})
		}

		if err := s.tournamentRepo.UpdateResults(ctx, exec, id, results, true); err != nil {
			return err
		}
		created, err = s.notifier.Dispatch(ctx, exec, inputs)
		return err
	})
	if err != nil {
		s.cleanupUploads(ctx, keys)
		return nil, nil, err
	}
	if replayed {
		s.cleanupUploads(ctx, keys)
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	if !replayed {
		for i := range won {
			s.metrics.BookingTransition(string(EventDeclareWinner), string(won[i].Status))
			s.publishBooking(&won[i])
		}
		s.notifier.Publish(created)
		s.publishTournament(t)
		s.activity.Record(ctx, actor, fmt.Sprintf("Uploaded results for match: %s (%d winners)", t.Title, len(won)))
	}
	if won == nil {
		won = []models.Booking{}
	}
	return t, won, nil
}

// matchWinner сопоставляет заявку с выбранной меткой по метке слота или имени игрока.
func matchWinner(winners map[string]WinnerSelection, b models.Booking) (WinnerSelection, bool) {
	candidates := []string{
		normalizeName(b.SlotLabel),
		normalizeName(slotLabel(b.PlayerName, b.GameUID)),
		normalizeName(b.PlayerName),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if w, ok := winners[c]; ok {
			return w, true
		}
	}
	return WinnerSelection{}, false
}

func (s *tournamentService) UploadResultImages(ctx context.Context, actor models.Actor, id int, pointsTable, banner *FileInput) (*models.Tournament, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if pointsTable.empty() && banner.empty() {
		return nil, ErrFileRequired
	}

	results, keys, err := s.uploadResults(ctx, id, pointsTable, banner)
	if err != nil {
		return nil, err
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetForUpdate(ctx, exec, id)
		if err != nil {
			return err
		}
		if !isValidTournamentStatusTransition(t.Status, models.StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusCompleted)
		}
		return s.tournamentRepo.UpdateResults(ctx, exec, id, results, false)
	})
	if err != nil {
		s.cleanupUploads(ctx, keys)
		return nil, err
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	s.publishTournament(t)
	s.activity.Record(ctx, actor, fmt.Sprintf("Uploaded results for match: %s", t.Title))
	return t, nil
}

func (s *tournamentService) Cancel(ctx context.Context, actor models.Actor, id int, idempotencyKey string) (*models.Tournament, []models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, nil, ErrForbiddenOperation
	}

	var (
		refunded []models.Booking
		created  []*models.Notification
	)
	replayed, err := s.withTournamentTx(ctx, id, "cancel", idempotencyKey, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		// Повторная отмена без ключа не должна снова чистить ростер и писать в журнал.
		if t.Status == models.StatusCancelled || !isValidTournamentStatusTransition(t.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusCancelled)
		}

		approved, err := s.bookingRepo.List(ctx, exec, repositories.ListBookingsFilter{
			TournamentID: &id,
			Statuses:     []models.BookingStatus{models.BookingApproved},
		})
		if err != nil {
			return err
		}

		inputs := make([]NotificationInput, 0, len(approved))
		for _, b := range approved {
			to, err := NextBookingStatus(b.Status, EventCancelTournament)
			if err != nil {
				return err
			}
			updated, err := s.bookingRepo.Apply(ctx, exec, b.ID, repositories.BookingUpdate{
				Status:      to,
				PrizeAmount: intPtr(t.Fee),
			})
			if err != nil {
				return err
			}
			refunded = append(refunded, *updated)
			inputs = append(inputs, NotificationInput{
				UserID:       b.UserID,
				TournamentID: intPtr(id),
				Title:        "💸 Refund Initiated",
				Message:      fmt.Sprintf("%s was cancelled. Upload your payout QR from the Dashboard to receive your ₹%d refund.", t.Title, t.Fee),
				Inbox:        true,
			})
		}

		if err := s.tournamentRepo.Cancel(ctx, exec, id); err != nil {
			return err
		}
		created, err = s.notifier.Dispatch(ctx, exec, inputs)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	if !replayed {
		for i := range refunded {
			s.metrics.BookingTransition(string(EventCancelTournament), string(refunded[i].Status))
			s.publishBooking(&refunded[i])
		}
		s.notifier.Publish(created)
		s.publishTournament(t)
		s.activity.Record(ctx, actor, fmt.Sprintf("Cancelled match: %s (%d refunds)", t.Title, len(refunded)))
	}
	if refunded == nil {
		refunded = []models.Booking{}
	}
	return t, refunded, nil
}

func (s *tournamentService) CheckSlotDrift(ctx context.Context) (map[int]int, error) {
	counts, err := s.bookingRepo.CountOccupyingByTournament(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count occupying bookings: %w", err)
	}

	drift := make(map[int]int)
	for tournamentID, occupying := range counts {
		t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				continue
			}
			return nil, err
		}
		d := t.FilledSlots - occupying
		s.metrics.SlotDrift(tournamentID, d)
		if d != 0 {
			drift[tournamentID] = d
			s.logger.WarnContext(ctx, "tournament slot counter drift",
				slog.Int("tournament_id", tournamentID),
				slog.Int("filled_slots", t.FilledSlots),
				slog.Int("occupying_bookings", occupying),
			)
		}
	}
	return drift, nil
}

func (s *tournamentService) publishTournament(t *models.Tournament) {
	view := t.PublicView()
	s.publisher.Publish(live.RoomTournaments, EventTypeTournamentUpdated, view)
	s.publisher.Publish(live.TournamentRoom(t.ID), EventTypeTournamentUpdated, view)
	s.publisher.Publish(live.RoomAdmin, EventTypeTournamentUpdated, t)
}

func (s *tournamentService) publishBooking(b *models.Booking) {
	s.publisher.Publish(live.UserRoom(b.UserID), EventTypeBookingUpdated, b)
	s.publisher.Publish(live.RoomAdmin, EventTypeBookingUpdated, b)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
