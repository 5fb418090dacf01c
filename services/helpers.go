package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/storage"
)

// FileInput - загруженный файл вместе с его Content-Type.
type FileInput struct {
	Reader      io.Reader
	ContentType string
}

func (f *FileInput) empty() bool {
	return f == nil || f.Reader == nil
}

// EventPublisher рассылает изменения подписчикам live-комнат.
type EventPublisher interface {
	Publish(room, eventType string, payload interface{})
}

// MetricsRecorder - счетчики, которые пишут сервисы.
type MetricsRecorder interface {
	BookingTransition(event, to string)
	SlotDrift(tournamentID int, drift int)
	NotificationsSent(n int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, interface{}) {}

type nopMetrics struct{}

func (nopMetrics) BookingTransition(string, string) {}
func (nopMetrics) SlotDrift(int, int)               {}
func (nopMetrics) NotificationsSent(int)            {}

// Типы событий live-канала.
const (
	EventTypeBookingUpdated      = "booking.updated"
	EventTypeTournamentUpdated   = "tournament.updated"
	EventTypeTournamentDeleted   = "tournament.deleted"
	EventTypeNotificationCreated = "notification.created"
	EventTypeTournamentsSnapshot = "tournaments.snapshot"
)

const defaultMatchRules = "Follow fair play."

// normalizeName приводит имя к виду для сравнения: без регистра и лишних пробелов.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// slotLabel - запись в slot_list: "{name} (UID: {gameUID})".
func slotLabel(name, gameUID string) string {
	name = strings.TrimSpace(name)
	gameUID = strings.TrimSpace(gameUID)
	if gameUID == "" {
		return name
	}
	return fmt.Sprintf("%s (UID: %s)", name, gameUID)
}

// truncate обрезает s до n рун, добавляя "..." если что-то отрезано.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func isValidTournamentStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusOpen:       {models.StatusIDReleased, models.StatusCompleted, models.StatusCancelled},
		models.StatusIDReleased: {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:  {},
		models.StatusCancelled:  {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			// "image/svg+xml" -> ".svg"
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("%w: could not determine file extension from content type '%s'", ErrValidationFailed, contentType)
	}
}

// uploadImage сохраняет картинку в хранилище и возвращает ключ объекта и публичный URL.
func uploadImage(ctx context.Context, uploader storage.FileUploader, prefix, kind string, file *FileInput) (string, string, error) {
	if file.empty() {
		return "", "", ErrFileRequired
	}
	ext, err := GetExtensionFromContentType(file.ContentType)
	if err != nil {
		return "", "", err
	}
	key := storage.ObjectKey(prefix, kind, ext)
	result, err := uploader.Upload(ctx, key, file.ContentType, file.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", kind, err)
	}
	return result.Key, uploader.GetPublicURL(result.Key), nil
}

// deleteUploaded удаляет загруженный объект, если запись в БД не удалась.
func deleteUploaded(ctx context.Context, uploader storage.FileUploader, key string, logger *slog.Logger) {
	if key == "" {
		return
	}
	if err := uploader.Delete(ctx, key); err != nil {
		logger.WarnContext(ctx, "failed to delete orphaned upload", slog.String("key", key), slog.Any("error", err))
	}
}
