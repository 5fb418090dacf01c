package models

import "time"

type LeaderboardEntry struct {
	ID        int       `json:"id"`
	TeamName  string    `json:"team_name"`
	Wins      int       `json:"wins"`
	Kills     int       `json:"kills"`
	Points    int       `json:"points"`
	Rank      int       `json:"rank,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
