package models

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleSubAdmin   Role = "sub_admin"
	RolePlayer     Role = "player"
)

func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleSubAdmin
}

type User struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Mobile       string     `json:"mobile"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Actor - явный контекст сессии: кто выполняет операцию.
// Для админских запросов Role и Name вычисляются на сервере при каждом запросе.
type Actor struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }

func (a Actor) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }
