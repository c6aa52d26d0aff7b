package bot

import "ctchen222/Four-In-A-Row/internal/game"

// Line scores. A complete line is worth as much as a terminal win.
const (
	scoreFour  = 100
	scoreThree = 8
	scoreTwo   = 2
)

// ScoreLine scores one line from player's point of view. Only the six
// uncontested patterns count; any line holding both players, or a single
// piece, is worth nothing.
func ScoreLine(line [game.Size]game.Cell, player game.Cell) int {
	opp := game.Opponent(player)
	mine, theirs, empty := 0, 0, 0
	for _, c := range line {
		switch c {
		case player:
			mine++
		case opp:
			theirs++
		default:
			empty++
		}
	}

	switch {
	case mine == 4:
		return scoreFour
	case mine == 3 && empty == 1:
		return scoreThree
	case mine == 2 && empty == 2:
		return scoreTwo
	case theirs == 4:
		return -scoreFour
	case theirs == 3 && empty == 1:
		return -scoreThree
	case theirs == 2 && empty == 2:
		return -scoreTwo
	}
	return 0
}

// ScoreBoard sums ScoreLine over the ten lines of the board.
func ScoreBoard(b game.Board, player game.Cell) int {
	score := 0
	for _, line := range b.Lines() {
		score += ScoreLine(line, player)
	}
	return score
}
