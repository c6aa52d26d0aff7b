package models

import "time"

// Outcomes of a finished game from the player's side.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
	OutcomeDraw = "draw"
)

// GameRecord is one finished game against the bot.
type GameRecord struct {
	ID         int64     `db:"id" json:"id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	PlayerID   string    `db:"player_id" json:"player_id"`
	BotID      string    `db:"bot_id" json:"bot_id"`
	Difficulty string    `db:"difficulty" json:"difficulty"`
	PlayerMark string    `db:"player_mark" json:"player_mark"`
	Winner     string    `db:"winner" json:"winner"`
	Moves      int       `db:"moves" json:"moves"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// Outcome reports the result for the player who owns the record.
func (g GameRecord) Outcome() string {
	switch g.Winner {
	case "draw":
		return OutcomeDraw
	case g.PlayerMark:
		return OutcomeWon
	}
	return OutcomeLost
}

// GameHistoryItem is a GameRecord as returned by the history endpoint.
type GameHistoryItem struct {
	GameRecord
	Outcome string `json:"outcome"`
}

// PlayerStats aggregates a player's finished games.
type PlayerStats struct {
	PlayerID string `db:"player_id" json:"player_id"`
	Played   int    `db:"played" json:"played"`
	Won      int    `db:"won" json:"won"`
	Lost     int    `db:"lost" json:"lost"`
	Drawn    int    `db:"drawn" json:"drawn"`
}

// HistoryQuery binds the query string of the history endpoint.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
