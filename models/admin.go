package models

import "time"

type Admin struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminLog - запись журнала действий администраторов.
type AdminLog struct {
	ID         int       `json:"id"`
	AdminEmail string    `json:"admin_email"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"timestamp"`
}
