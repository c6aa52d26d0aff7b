package game

// Hash fields used to persist a game.
const (
	FieldBoard      = "board"
	FieldHumanID    = "human_id"
	FieldBotID      = "bot_id"
	FieldDifficulty = "difficulty"
	FieldNextTurn   = "next_turn"
	FieldWinner     = "winner"
	FieldLastMove   = "last_move"
	FieldMoves      = "moves"
	FieldStatus     = "status"
)

// Game statuses.
const (
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// State is the stored view of a game in a room.
type State struct {
	Board       Board
	CurrentTurn Cell
	Winner      Cell
	IsDraw      bool
	LastMove    *Position
	Moves       int
	HumanID     string
	BotID       string
	Difficulty  string
}

// Game rebuilds the rules object from a stored state.
func (s *State) Game() *Game {
	return &Game{
		Board:       s.Board,
		CurrentTurn: s.CurrentTurn,
		Winner:      s.Winner,
		LastMove:    s.LastMove,
		Moves:       s.Moves,
	}
}

// IsOver reports whether the stored game has ended.
func (s *State) IsOver() bool {
	return s.Winner != Empty || s.IsDraw
}

// Result is the winner's mark, ResultDraw, or ResultNone.
func (s *State) Result() string {
	if s.Winner != Empty {
		return s.Winner.String()
	}
	if s.IsDraw {
		return ResultDraw
	}
	return ResultNone
}

// MarkOf returns the mark played by playerID in this game, or Empty.
func (s *State) MarkOf(playerID string) Cell {
	switch playerID {
	case s.HumanID:
		return PlayerOne
	case s.BotID:
		return PlayerTwo
	}
	return Empty
}
