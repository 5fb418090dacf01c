package models

import "time"

// Notification - короткое уведомление для баннера у игрока.
type Notification struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	TournamentID *int      `json:"tournament_id,omitempty"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"timestamp"`
}

// InboxEntry - постоянная запись во входящих игрока (вкладка в дашборде).
type InboxEntry struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	TournamentID *int      `json:"tournament_id,omitempty"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"timestamp"`
}
