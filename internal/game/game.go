package game

import (
	"errors"
	"math/rand/v2"
)

// Game results besides a winning mark.
const (
	ResultNone = ""
	ResultDraw = "draw"
)

var (
	ErrGameOver     = errors.New("game already finished")
	ErrOutOfRange   = errors.New("invalid move")
	ErrCellOccupied = errors.New("cell already occupied")
)

// Game applies the turn order and end-of-game rules on top of a Board.
type Game struct {
	Board       Board
	CurrentTurn Cell
	Winner      Cell
	LastMove    *Position
	Moves       int
}

func NewGame(first Cell) *Game {
	return &Game{
		Board:       NewBoard(),
		CurrentTurn: first,
		Winner:      Empty,
	}
}

// Move places the current player's piece and passes the turn.
func (g *Game) Move(row, col int) error {
	if g.IsOver() {
		return ErrGameOver
	}
	pos := Position{Row: row, Col: col}
	if !pos.InBounds() {
		return ErrOutOfRange
	}
	if g.Board.At(row, col) != Empty {
		return ErrCellOccupied
	}

	g.Board.Place(row, col, g.CurrentTurn)
	g.LastMove = &pos
	g.Moves++
	if g.Board.HasWon(g.CurrentTurn) {
		g.Winner = g.CurrentTurn
	}
	g.CurrentTurn = Opponent(g.CurrentTurn)
	return nil
}

// IsDraw checks if the board filled up without a winner.
func (g *Game) IsDraw() bool {
	return g.Winner == Empty && g.Board.IsFull()
}

func (g *Game) IsOver() bool {
	return g.Winner != Empty || g.Board.IsFull()
}

// Result is the winner's mark, ResultDraw, or ResultNone while the game runs.
func (g *Game) Result() string {
	if g.Winner != Empty {
		return g.Winner.String()
	}
	if g.IsDraw() {
		return ResultDraw
	}
	return ResultNone
}

// RandomlyChooseFirstPlayer picks who opens the game.
func RandomlyChooseFirstPlayer() Cell {
	if rand.IntN(2) == 0 {
		return PlayerOne
	}
	return PlayerTwo
}
