package bot

import (
	"math"

	"ctchen222/Four-In-A-Row/internal/game"
)

// Terminal values. Heuristic values of non-terminal positions always stay
// strictly inside (-WinScore, WinScore).
const (
	WinScore  = 100
	DrawScore = 0
)

// CutoffPerspective selects whose point of view the evaluator takes when the
// depth runs out on a position that is not over.
type CutoffPerspective int

const (
	// CutoffOpponent scores for the opponent of the side to move: a
	// maximizing node is scored for the minimizer and vice versa.
	CutoffOpponent CutoffPerspective = iota
	// CutoffMover scores for the side to move.
	CutoffMover
)

// Stats counts the work done by one search.
type Stats struct {
	Nodes   int
	Leaves  int
	Cutoffs int
}

// Result is the outcome of a search. Found is false only when the searched
// position was terminal or the depth was zero.
type Result struct {
	Move  game.Position
	Found bool
	Value int
	Stats Stats
}

// Searcher runs a depth-limited minimax with alpha-beta pruning on behalf of
// Maximizer.
type Searcher struct {
	Maximizer   game.Cell
	Perspective CutoffPerspective
}

// NewSearcher returns a searcher playing PlayerTwo.
func NewSearcher() *Searcher {
	return &Searcher{
		Maximizer:   game.PlayerTwo,
		Perspective: CutoffOpponent,
	}
}

// BestMove searches from the root with a full window, the maximizer to move.
func (s *Searcher) BestMove(b game.Board, depth int) Result {
	return s.Search(b, depth, math.MinInt, math.MaxInt, true)
}

// Search evaluates b to the given depth. The caller's board is never modified.
func (s *Searcher) Search(b game.Board, depth, alpha, beta int, maximizing bool) Result {
	var stats Stats
	move, found, value := s.minimax(b.Clone(), depth, alpha, beta, maximizing, &stats)
	return Result{Move: move, Found: found, Value: value, Stats: stats}
}

func (s *Searcher) minimax(b game.Board, depth, alpha, beta int, maximizing bool, stats *Stats) (game.Position, bool, int) {
	stats.Nodes++
	minimizer := game.Opponent(s.Maximizer)

	switch {
	case b.HasWon(minimizer):
		return game.Position{}, false, -WinScore
	case b.HasWon(s.Maximizer):
		return game.Position{}, false, WinScore
	case b.IsFull():
		return game.Position{}, false, DrawScore
	case depth <= 0:
		stats.Leaves++
		return game.Position{}, false, ScoreBoard(b, s.cutoffPlayer(maximizing))
	}

	moves := b.EmptyCells()
	if len(moves) == 0 {
		panic("bot: no empty cell on a board that is not full")
	}

	mover := minimizer
	value := math.MaxInt
	if maximizing {
		mover = s.Maximizer
		value = math.MinInt
	}

	var best game.Position
	found := false
	for _, pos := range moves {
		child := b.Clone()
		child.Place(pos.Row, pos.Col, mover)
		_, _, v := s.minimax(child, depth-1, alpha, beta, !maximizing, stats)

		if maximizing {
			if v > value {
				value, best, found = v, pos, true
			}
			alpha = max(alpha, value)
			if value >= beta {
				stats.Cutoffs++
				break
			}
		} else {
			if v < value {
				value, best, found = v, pos, true
			}
			beta = min(beta, value)
			if value <= alpha {
				stats.Cutoffs++
				break
			}
		}
	}
	return best, found, value
}

func (s *Searcher) cutoffPlayer(maximizing bool) game.Cell {
	mover := game.Opponent(s.Maximizer)
	if maximizing {
		mover = s.Maximizer
	}
	if s.Perspective == CutoffMover {
		return mover
	}
	return game.Opponent(mover)
}
