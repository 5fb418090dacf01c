package models

import "time"

type ContactStatus string

const (
	ContactUnread  ContactStatus = "unread"
	ContactReplied ContactStatus = "replied"
)

type ContactMessage struct {
	ID         int           `json:"id"`
	UserID     *int          `json:"user_id,omitempty"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Message    string        `json:"message"`
	Status     ContactStatus `json:"status"`
	AdminReply string        `json:"admin_reply,omitempty"`
	CreatedAt  time.Time     `json:"timestamp"`
	RepliedAt  *time.Time    `json:"replied_at,omitempty"`
}
