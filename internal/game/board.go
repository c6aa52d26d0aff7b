package game

import (
	"encoding/json"
	"fmt"
)

const (
	// Size is the number of rows and columns on the board.
	Size = 4
	// WinLength is the number of aligned pieces needed to win.
	WinLength = 4
	// LineCount is the number of full-length lines: rows, columns and both diagonals.
	LineCount = 2*Size + 2
)

// Cell is the state of a single square on the board.
type Cell uint8

const (
	Empty Cell = iota
	PlayerOne
	PlayerTwo
)

// Marks used on the wire. PlayerOne is drawn as a cross, PlayerTwo as a ring.
const (
	MarkNone = ""
	MarkX    = "X"
	MarkO    = "O"
)

// String returns the mark of the cell.
func (c Cell) String() string {
	switch c {
	case PlayerOne:
		return MarkX
	case PlayerTwo:
		return MarkO
	default:
		return MarkNone
	}
}

// MarshalText encodes the cell as its mark.
func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a mark into a cell.
func (c *Cell) UnmarshalText(text []byte) error {
	cell, err := ParseMark(string(text))
	if err != nil {
		return err
	}
	*c = cell
	return nil
}

// ParseMark converts a wire mark back to a cell.
func ParseMark(mark string) (Cell, error) {
	switch mark {
	case MarkNone:
		return Empty, nil
	case MarkX:
		return PlayerOne, nil
	case MarkO:
		return PlayerTwo, nil
	}
	return Empty, fmt.Errorf("unknown mark %q", mark)
}

// Opponent returns the other player. Empty has no opponent and is returned unchanged.
func Opponent(p Cell) Cell {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return Empty
}

// Position is a coordinate on the board.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the position lies on the board.
func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

// Board is a 4x4 grid. It has value semantics: assigning or returning a
// Board copies the whole grid.
type Board struct {
	cells [Size][Size]Cell
}

// NewBoard returns an empty board.
func NewBoard() Board {
	return Board{}
}

// Place puts player on (row, col) if the cell is empty. Placing on an
// occupied cell does nothing.
func (b *Board) Place(row, col int, player Cell) {
	if b.cells[row][col] == Empty {
		b.cells[row][col] = player
	}
}

// At returns the cell at (row, col).
func (b Board) At(row, col int) Cell {
	return b.cells[row][col]
}

// Lines returns every full-length line: the rows top to bottom, the columns
// left to right, the main diagonal and the anti-diagonal.
func (b Board) Lines() [LineCount][Size]Cell {
	var lines [LineCount][Size]Cell
	for i := 0; i < Size; i++ {
		lines[i] = b.cells[i]
		for j := 0; j < Size; j++ {
			lines[Size+i][j] = b.cells[j][i]
		}
		lines[2*Size][i] = b.cells[i][i]
		lines[2*Size+1][i] = b.cells[i][Size-1-i]
	}
	return lines
}

// HasWon reports whether player fully occupies any row, column or diagonal.
func (b Board) HasWon(player Cell) bool {
	if player == Empty {
		return false
	}
	for _, line := range b.Lines() {
		if count(line, player) == WinLength {
			return true
		}
	}
	return false
}

// IsFull reports whether no empty cell remains.
func (b Board) IsFull() bool {
	for r := range Size {
		for c := range Size {
			if b.cells[r][c] == Empty {
				return false
			}
		}
	}
	return true
}

// EmptyCells lists the empty coordinates in row-major order. The order
// decides which move the search keeps on ties.
func (b Board) EmptyCells() []Position {
	out := make([]Position, 0, Size*Size)
	for r := range Size {
		for c := range Size {
			if b.cells[r][c] == Empty {
				out = append(out, Position{Row: r, Col: c})
			}
		}
	}
	return out
}

// Clone returns an independent copy of the board.
func (b Board) Clone() Board {
	return b
}

// MarshalJSON encodes the board as a 4x4 array of marks.
func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.cells)
}

// UnmarshalJSON decodes a 4x4 array of marks.
func (b *Board) UnmarshalJSON(data []byte) error {
	var cells [Size][Size]Cell
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("failed to decode board: %w", err)
	}
	b.cells = cells
	return nil
}

func count(line [Size]Cell, c Cell) int {
	n := 0
	for _, v := range line {
		if v == c {
			n++
		}
	}
	return n
}
