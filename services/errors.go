package services

import (
	"errors"

	"github.com/Dosada05/esports-booking/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed     = errors.New("validation failed")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrRegistrationNotOpen  = errors.New("tournament registration is not open")
	ErrTournamentFull       = errors.New("tournament registration is full")
	ErrDuplicatePlayerName  = errors.New("player or team name is already registered for this tournament")
	ErrScreenshotRequired   = errors.New("payment screenshot is required for paid tournaments")
	ErrPayoutQRRequired     = errors.New("payout QR code has not been uploaded")
	ErrPaymentProofRequired = errors.New("payment proof image is required")
	ErrFileRequired         = errors.New("file is required")
	ErrNoWinnersSelected    = errors.New("at least one winner must be selected")
	ErrWinnersAlreadySet    = errors.New("winners have already been declared for this match")
	ErrEmptyRoster          = errors.New("slot list must contain at least one entry")

	ErrInvalidBookingTransition          = errors.New("invalid booking status transition")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentInvalidCategory         = errors.New("invalid tournament category")
	ErrTournamentInvalidType             = errors.New("invalid team type for tournament category")
	ErrTournamentInvalidCapacity         = errors.New("tournament slots must be positive")

	// Ошибки конфликтов
	ErrUserEmailConflict  = repositories.ErrUserEmailConflict
	ErrAdminEmailConflict = repositories.ErrAdminEmailConflict

	// Ключ идемпотентности уже занят другой заявкой, турниром или событием
	ErrIdempotencyKeyConflict = repositories.ErrTransitionKeyReused

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound           = repositories.ErrUserNotFound
	ErrTournamentNotFound     = repositories.ErrTournamentNotFound
	ErrBookingNotFound        = repositories.ErrBookingNotFound
	ErrAdminNotFound          = repositories.ErrAdminNotFound
	ErrContactMessageNotFound = repositories.ErrContactMessageNotFound
	ErrNotificationNotFound   = repositories.ErrNotificationNotFound
	ErrInboxEntryNotFound     = repositories.ErrInboxEntryNotFound
	ErrLeaderboardNotFound    = repositories.ErrLeaderboardEntryNotFound
	ErrBlogPostNotFound       = repositories.ErrBlogPostNotFound
)
