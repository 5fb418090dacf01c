package models

const (
	SettingTicker      = "ticker"
	SettingFooterStats = "footer_stats"
)

type Ticker struct {
	Messages []string `json:"messages"`
}

type FooterStats struct {
	Players          int `json:"players"`
	Matches          int `json:"matches"`
	PrizeDistributed int `json:"prize_distributed"`
}
