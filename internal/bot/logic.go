package bot

import (
	"context"
	"log/slog"
	"time"

	"ctchen222/Four-In-A-Row/internal/game"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Difficulty levels accepted from clients.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var difficultyDepth = map[string]int{
	DifficultyEasy:   1,
	DifficultyMedium: 2,
	DifficultyHard:   7,
}

var (
	tracer  = otel.Tracer("bot")
	meter   = otel.Meter("bot")
	metrics = newSearchMetrics()
)

type searchMetrics struct {
	nodes    metric.Int64Counter
	cutoffs  metric.Int64Counter
	duration metric.Float64Histogram
}

func newSearchMetrics() *searchMetrics {
	m := &searchMetrics{}
	var err error
	if m.nodes, err = meter.Int64Counter("bot.search.nodes",
		metric.WithDescription("Positions visited by the minimax search")); err != nil {
		otel.Handle(err)
	}
	if m.cutoffs, err = meter.Int64Counter("bot.search.cutoffs",
		metric.WithDescription("Alpha-beta cutoffs taken by the minimax search")); err != nil {
		otel.Handle(err)
	}
	if m.duration, err = meter.Float64Histogram("bot.search.duration",
		metric.WithDescription("Wall time of one move search"),
		metric.WithUnit("ms")); err != nil {
		otel.Handle(err)
	}
	return m
}

func (m *searchMetrics) record(ctx context.Context, difficulty string, stats Stats, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("bot.difficulty", difficulty))
	if m.nodes != nil {
		m.nodes.Add(ctx, int64(stats.Nodes), attrs)
	}
	if m.cutoffs != nil {
		m.cutoffs.Add(ctx, int64(stats.Cutoffs), attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

// IsValidDifficulty reports whether d names a known difficulty.
func IsValidDifficulty(d string) bool {
	_, ok := difficultyDepth[d]
	return ok
}

// DepthFor maps a difficulty to a search depth. Unknown values play hard.
func DepthFor(difficulty string) int {
	if depth, ok := difficultyDepth[difficulty]; ok {
		return depth
	}
	return difficultyDepth[DifficultyHard]
}

// MoveCalculator picks a move for mark on board.
type MoveCalculator interface {
	CalculateNextMove(ctx context.Context, board game.Board, mark game.Cell, difficulty string) (row, col int)
}

// BotMoveCalculator implements MoveCalculator with the minimax engine.
type BotMoveCalculator struct{}

// CalculateNextMove calls the package-level function to satisfy the interface.
func (c *BotMoveCalculator) CalculateNextMove(ctx context.Context, board game.Board, mark game.Cell, difficulty string) (row, col int) {
	return CalculateNextMove(ctx, board, mark, difficulty)
}

// CalculateNextMove searches for botMark's best move at the depth of the
// given difficulty. It returns -1, -1 when the game is already over.
func CalculateNextMove(ctx context.Context, board game.Board, botMark game.Cell, difficulty string) (row, col int) {
	depth := DepthFor(difficulty)
	ctx, span := tracer.Start(ctx, "bot.CalculateNextMove", trace.WithAttributes(
		attribute.String("bot.difficulty", difficulty),
		attribute.String("bot.mark", botMark.String()),
		attribute.Int("bot.depth", depth),
	))
	defer span.End()

	// The engine always maximizes for PlayerTwo.
	if botMark == game.PlayerOne {
		board = swapColours(board)
	}

	start := time.Now()
	result := NewSearcher().BestMove(board, depth)
	elapsed := time.Since(start)

	metrics.record(ctx, difficulty, result.Stats, elapsed)
	span.SetAttributes(
		attribute.Int("search.nodes", result.Stats.Nodes),
		attribute.Int("search.leaves", result.Stats.Leaves),
		attribute.Int("search.cutoffs", result.Stats.Cutoffs),
		attribute.Int("search.value", result.Value),
		attribute.Bool("search.found", result.Found),
	)

	if !result.Found {
		slog.WarnContext(ctx, "No move available for bot", "bot.mark", botMark.String(), "search.value", result.Value)
		return -1, -1
	}

	slog.DebugContext(ctx, "Bot move chosen",
		"bot.difficulty", difficulty,
		"move.row", result.Move.Row,
		"move.col", result.Move.Col,
		"search.value", result.Value,
		"search.nodes", result.Stats.Nodes,
		"search.elapsed", elapsed,
	)
	return result.Move.Row, result.Move.Col
}

// swapColours returns b with every piece handed to the other player.
func swapColours(b game.Board) game.Board {
	out := game.NewBoard()
	for r := range game.Size {
		for c := range game.Size {
			if cell := b.At(r, c); cell != game.Empty {
				out.Place(r, c, game.Opponent(cell))
			}
		}
	}
	return out
}
