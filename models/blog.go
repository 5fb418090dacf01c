package models

import "time"

type BlogPost struct {
	ID        int       `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
