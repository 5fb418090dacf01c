package models

// DashboardStats - счетчики для главной страницы админки.
type DashboardStats struct {
	PendingBookings  int `json:"pending_bookings"`
	UnreadMessages   int `json:"unread_messages"`
	OpenTournaments  int `json:"open_tournaments"`
	AwaitingPayouts  int `json:"awaiting_payouts"`
	PlayersTotal     int `json:"players_total"`
	TournamentsTotal int `json:"tournaments_total"`
}

// PlayerDashboard - все, что игрок видит в личном кабинете.
type PlayerDashboard struct {
	Profile         *User            `json:"profile"`
	Bookings        []Booking        `json:"bookings"`
	ContactMessages []ContactMessage `json:"contact_messages"`
	UnreadInbox     int              `json:"unread_inbox"`
}
