package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
)

type DashboardService interface {
	Player(ctx context.Context, actor models.Actor) (*models.PlayerDashboard, error)
	Admin(ctx context.Context, actor models.Actor) (*models.DashboardStats, error)
}

type dashboardService struct {
	users          AuthService
	bookings       BookingService
	contacts       ContactService
	notifications  NotificationService
	bookingRepo    repositories.BookingRepository
	tournamentRepo repositories.TournamentRepository
	contactRepo    repositories.ContactRepository
	userRepo       repositories.UserRepository
}

func NewDashboardService(
	users AuthService,
	bookings BookingService,
	contacts ContactService,
	notifications NotificationService,
	bookingRepo repositories.BookingRepository,
	tournamentRepo repositories.TournamentRepository,
	contactRepo repositories.ContactRepository,
	userRepo repositories.UserRepository,
) DashboardService {
	return &dashboardService{
		users:          users,
		bookings:       bookings,
		contacts:       contacts,
		notifications:  notifications,
		bookingRepo:    bookingRepo,
		tournamentRepo: tournamentRepo,
		contactRepo:    contactRepo,
		userRepo:       userRepo,
	}
}

// Player собирает личный кабинет; части грузятся параллельно.
func (s *dashboardService) Player(ctx context.Context, actor models.Actor) (*models.PlayerDashboard, error) {
	if actor.UserID <= 0 {
		return nil, ErrAuthenticationFailed
	}

	dash := &models.PlayerDashboard{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := s.users.Me(gctx, actor.UserID)
		if err != nil {
			return err
		}
		dash.Profile = profile
		return nil
	})
	g.Go(func() error {
		bookings, err := s.bookings.ListForUser(gctx, actor)
		if err != nil {
			return err
		}
		dash.Bookings = bookings
		return nil
	})
	g.Go(func() error {
		messages, err := s.contacts.ListForUser(gctx, actor)
		if err != nil {
			return err
		}
		dash.ContactMessages = messages
		return nil
	})
	g.Go(func() error {
		unread, err := s.notifications.UnreadInboxCount(gctx, actor.UserID)
		if err != nil {
			return err
		}
		dash.UnreadInbox = unread
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dash, nil
}

func (s *dashboardService) Admin(ctx context.Context, actor models.Actor) (*models.DashboardStats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	stats := &models.DashboardStats{}
	open := models.StatusOpen
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.PendingBookings, err = s.bookingRepo.CountByStatus(gctx, []models.BookingStatus{models.BookingPending})
		return err
	})
	g.Go(func() (err error) {
		stats.AwaitingPayouts, err = s.bookingRepo.CountByStatus(gctx, []models.BookingStatus{
			models.BookingWon, models.BookingProcessing, models.BookingRefundPending, models.BookingRefundProcessing,
		})
		return err
	})
	g.Go(func() (err error) {
		stats.UnreadMessages, err = s.contactRepo.CountByStatus(gctx, models.ContactUnread)
		return err
	})
	g.Go(func() (err error) {
		stats.OpenTournaments, err = s.tournamentRepo.CountByStatus(gctx, &open)
		return err
	})
	g.Go(func() (err error) {
		stats.TournamentsTotal, err = s.tournamentRepo.CountByStatus(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		stats.PlayersTotal, err = s.userRepo.Count(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
