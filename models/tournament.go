package models

import "time"

// TournamentStatus представляет статусы матча, соответствующие значениям в БД.
type TournamentStatus string

const (
	StatusOpen       TournamentStatus = "Open"
	StatusIDReleased TournamentStatus = "ID Released"
	StatusCompleted  TournamentStatus = "Completed"
	StatusCancelled  TournamentStatus = "Cancelled"
)

// LiveWindowAfterStart - сколько матч считается live после начала.
const LiveWindowAfterStart = 3 * time.Hour

type TournamentCategory string

const (
	CategoryBR TournamentCategory = "BR"
	CategoryCS TournamentCategory = "CS"
)

// Tournament представляет один матч/турнир.
type Tournament struct {
	ID                int                `json:"id"`
	Title             string             `json:"title"`
	Category          TournamentCategory `json:"category"`
	Map               string             `json:"map"`
	MatchCount        int                `json:"match_count"`
	Type              string             `json:"type"`
	HeadshotOnly      bool               `json:"headshot_only"`
	StartsAt          time.Time          `json:"time"`
	Fee               int                `json:"fee"`
	PrizePool         int                `json:"prize_pool"`
	Rank1Prize        int                `json:"rank1"`
	Rank2Prize        int                `json:"rank2"`
	Rank3Prize        int                `json:"rank3"`
	PerKill           int                `json:"per_kill"`
	Rules             string             `json:"rules"`
	TotalSlots        int                `json:"total_slots"`
	FilledSlots       int                `json:"filled_slots"`
	SlotList          []string           `json:"slot_list"`
	Status            TournamentStatus   `json:"status"`
	RoomID            string             `json:"room_id,omitempty"`
	RoomPassword      string             `json:"password,omitempty"`
	Results           TournamentResults  `json:"results"`
	WinnersDeclaredAt *time.Time         `json:"winners_declared_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

type TournamentResults struct {
	PointsTableURL string `json:"pt"`
	GraphicURL     string `json:"gfx"`
}

// HasCapacity сообщает, есть ли свободные слоты.
func (t *Tournament) HasCapacity() bool {
	return t.FilledSlots < t.TotalSlots
}

// IsLive: матч не завершен и либо еще не начался, либо начался меньше трех часов назад.
func (t *Tournament) IsLive(now time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	return t.StartsAt.After(now) || now.Sub(t.StartsAt) < LiveWindowAfterStart
}

// RankPrize возвращает приз за место (1..3), 0 для остальных.
func (t *Tournament) RankPrize(rank int) int {
	switch rank {
	case 1:
		return t.Rank1Prize
	case 2:
		return t.Rank2Prize
	case 3:
		return t.Rank3Prize
	default:
		return 0
	}
}

// PublicView скрывает данные комнаты для всех, кроме подтвержденных участников и админов.
func (t Tournament) PublicView() Tournament {
	t.RoomID = ""
	t.RoomPassword = ""
	return t
}
