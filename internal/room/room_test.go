package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ctchen222/Four-In-A-Row/internal/bot"
	"ctchen222/Four-In-A-Row/internal/events"
	eventmocks "ctchen222/Four-In-A-Row/internal/events/mocks"
	"ctchen222/Four-In-A-Row/internal/game"
	"ctchen222/Four-In-A-Row/internal/player"
	"ctchen222/Four-In-A-Row/internal/repository"
	"ctchen222/Four-In-A-Row/internal/repository/mocks"
	"ctchen222/Four-In-A-Row/pkg/proto"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConn is an in-memory websocket stand-in.
type fakeConn struct {
	out       chan []byte
	reads     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	pings int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		out:    make(chan []byte, 64),
		reads:  make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.PingMessage {
		c.mu.Lock()
		c.pings++
		c.mu.Unlock()
		return nil
	}
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.out <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// next decodes the next message written to the connection into a generic map.
func (c *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.out:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message written to connection")
		return nil
	}
}

func (c *fakeConn) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func moveMessage(row, col int) []byte {
	data, _ := json.Marshal(proto.ClientToServerMessage{Type: proto.TypeMove, Position: []int{row, col}})
	return data
}

type roomFixture struct {
	room      *Room
	repo      *mocks.MockGameRepository
	publisher *eventmocks.MockPublisher
	human     *player.Player
	conn      *fakeConn
}

func newRoomFixture(t *testing.T) *roomFixture {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockGameRepository(ctrl)
	publisher := eventmocks.NewMockPublisher(ctrl)
	conn := newFakeConn()
	human := player.NewPlayer("alice", conn)

	r := NewRoom("room-1", repo, publisher)
	r.AddPlayer(human)
	return &roomFixture{room: r, repo: repo, publisher: publisher, human: human, conn: conn}
}

func stateWith(turn game.Cell) *game.State {
	return &game.State{
		Board:       game.NewBoard(),
		CurrentTurn: turn,
		HumanID:     "alice",
		BotID:       "bot-1",
		Difficulty:  bot.DifficultyEasy,
	}
}

func TestHandleMessage_ValidMove(t *testing.T) {
	f := newRoomFixture(t)
	updated := stateWith(game.PlayerTwo)
	updated.Board.Place(1, 2, game.PlayerOne)
	updated.LastMove = &game.Position{Row: 1, Col: 2}
	updated.Moves = 1

	f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerOne), nil)
	f.repo.EXPECT().Update(gomock.Any(), "room-1", game.PlayerOne, 1, 2).Return(updated, nil)

	f.room.HandleMessage(f.human, moveMessage(1, 2))

	msg := f.conn.next(t)
	assert.Equal(t, proto.TypeUpdate, msg["type"])
	assert.Equal(t, game.MarkO, msg["next"])
	assert.Equal(t, map[string]any{"row": float64(1), "col": float64(2)}, msg["lastMove"])
	board := msg["board"].([]any)
	assert.Equal(t, game.MarkX, board[1].([]any)[2])
	assert.NotContains(t, msg, "winner")
}

func TestHandleMessage_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		message    []byte
		setup      func(f *roomFixture)
		wantReason string
	}{
		{
			name:       "Malformed JSON",
			message:    []byte("{not json"),
			setup:      func(*roomFixture) {},
			wantReason: ReasonMalformed,
		},
		{
			name:       "Unknown type",
			message:    []byte(`{"type":"resign"}`),
			setup:      func(*roomFixture) {},
			wantReason: ReasonInvalidMessage,
		},
		{
			name:       "Position off the board",
			message:    moveMessage(4, 0),
			setup:      func(*roomFixture) {},
			wantReason: ReasonInvalidMessage,
		},
		{
			name:       "Move without position",
			message:    []byte(`{"type":"move"}`),
			setup:      func(*roomFixture) {},
			wantReason: ReasonInvalidMessage,
		},
		{
			name:    "Not your turn",
			message: moveMessage(0, 0),
			setup: func(f *roomFixture) {
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerTwo), nil)
				f.repo.EXPECT().Update(gomock.Any(), "room-1", game.PlayerOne, 0, 0).Return(nil, repository.ErrNotPlayersTurn)
			},
			wantReason: ReasonNotYourTurn,
		},
		{
			name:    "Cell occupied",
			message: moveMessage(0, 0),
			setup: func(f *roomFixture) {
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerOne), nil)
				f.repo.EXPECT().Update(gomock.Any(), "room-1", game.PlayerOne, 0, 0).Return(nil, game.ErrCellOccupied)
			},
			wantReason: ReasonCellOccupied,
		},
		{
			name:    "Game over",
			message: moveMessage(0, 0),
			setup: func(f *roomFixture) {
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerOne), nil)
				f.repo.EXPECT().Update(gomock.Any(), "room-1", game.PlayerOne, 0, 0).Return(nil, game.ErrGameOver)
			},
			wantReason: ReasonGameOver,
		},
		{
			name:    "Storage failure",
			message: moveMessage(0, 0),
			setup: func(f *roomFixture) {
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(nil, errors.New("redis down"))
			},
			wantReason: ReasonInternal,
		},
		{
			name:    "Stranger",
			message: moveMessage(0, 0),
			setup: func(f *roomFixture) {
				s := stateWith(game.PlayerOne)
				s.HumanID = "someone-else"
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(s, nil)
			},
			wantReason: ReasonNotInRoom,
		},
		{
			name:    "Rematch before the end",
			message: []byte(`{"type":"rematch"}`),
			setup: func(f *roomFixture) {
				f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerOne), nil)
			},
			wantReason: ReasonGameNotOver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRoomFixture(t)
			tt.setup(f)

			f.room.HandleMessage(f.human, tt.message)

			msg := f.conn.next(t)
			assert.Equal(t, proto.TypeError, msg["type"])
			assert.Equal(t, tt.wantReason, msg["reason"])
			f.conn.assertSilent(t)
		})
	}
}

func TestHandleMessage_DisconnectedPlayerIgnored(t *testing.T) {
	f := newRoomFixture(t)
	f.human.Status = player.StatusDisconnected

	f.room.HandleMessage(f.human, moveMessage(0, 0))
	f.conn.assertSilent(t)
}

func TestHandleMessage_WinningMovePublishesGameFinished(t *testing.T) {
	f := newRoomFixture(t)
	finished := stateWith(game.PlayerTwo)
	for c := 0; c < game.Size; c++ {
		finished.Board.Place(0, c, game.PlayerOne)
	}
	for c := 0; c < 3; c++ {
		finished.Board.Place(1, c, game.PlayerTwo)
	}
	finished.Winner = game.PlayerOne
	finished.Moves = 7

	f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerOne), nil)
	f.repo.EXPECT().Update(gomock.Any(), "room-1", game.PlayerOne, 0, 3).Return(finished, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), events.TypeGameFinished, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, payload any) error {
			p, ok := payload.(events.GameFinishedPayload)
			require.True(t, ok)
			assert.Equal(t, "room-1", p.RoomID)
			assert.Equal(t, "alice", p.PlayerID)
			assert.Equal(t, "bot-1", p.BotID)
			assert.Equal(t, bot.DifficultyEasy, p.Difficulty)
			assert.Equal(t, game.MarkX, p.PlayerMark)
			assert.Equal(t, game.MarkX, p.Winner)
			assert.Equal(t, 7, p.Moves)
			assert.False(t, p.FinishedAt.IsZero())
			return nil
		})

	f.room.HandleMessage(f.human, moveMessage(0, 3))

	msg := f.conn.next(t)
	assert.Equal(t, proto.TypeUpdate, msg["type"])
	assert.Equal(t, game.MarkX, msg["winner"])
	assert.NotContains(t, msg, "next")
}

func TestHandleMessage_Rematch(t *testing.T) {
	f := newRoomFixture(t)
	over := stateWith(game.PlayerOne)
	over.IsDraw = true

	fresh := stateWith(game.PlayerOne)

	gomock.InOrder(
		f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(over, nil),
		f.repo.EXPECT().Create(gomock.Any(), "room-1", "alice", "bot-1", bot.DifficultyEasy, gomock.Any()).Return(nil),
		f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(fresh, nil),
	)
	f.publisher.EXPECT().Publish(gomock.Any(), events.TypeRematchSuccessful, events.RematchSuccessfulPayload{RoomID: "room-1"}).Return(nil)

	f.room.HandleMessage(f.human, []byte(`{"type":"rematch"}`))

	assignment := f.conn.next(t)
	assert.Equal(t, proto.TypeAssignment, assignment["type"])
	assert.Equal(t, game.MarkX, assignment["mark"])
	assert.Equal(t, "room-1", assignment["roomId"])

	update := f.conn.next(t)
	assert.Equal(t, proto.TypeUpdate, update["type"])
	assert.Equal(t, game.MarkX, update["next"])
}

func TestSendInitialState(t *testing.T) {
	f := newRoomFixture(t)
	botConn := newFakeConn()
	botPlayer := player.NewPlayer("bot-1", botConn)
	botPlayer.IsBot = true
	f.room.AddPlayer(botPlayer)

	f.repo.EXPECT().FindByID(gomock.Any(), "room-1").Return(stateWith(game.PlayerTwo), nil)

	f.room.SendInitialState(context.Background())

	humanAssignment := f.conn.next(t)
	assert.Equal(t, game.MarkX, humanAssignment["mark"])
	assert.Equal(t, "alice", humanAssignment["playerId"])
	assert.Equal(t, bot.DifficultyEasy, humanAssignment["difficulty"])

	botAssignment := botConn.next(t)
	assert.Equal(t, game.MarkO, botAssignment["mark"])

	for _, c := range []*fakeConn{f.conn, botConn} {
		update := c.next(t)
		assert.Equal(t, proto.TypeUpdate, update["type"])
		assert.Equal(t, game.MarkO, update["next"])
	}
}

func TestReadPump(t *testing.T) {
	f := newRoomFixture(t)
	unregister := make(chan *player.Player, 1)

	go f.room.ReadPump(f.human, unregister)

	f.conn.reads <- moveMessage(2, 2)
	select {
	case move := <-f.room.incomingMoves:
		assert.Same(t, f.human, move.Player)
		assert.JSONEq(t, string(moveMessage(2, 2)), string(move.Message))
	case <-time.After(2 * time.Second):
		t.Fatal("message was not queued")
	}

	close(f.conn.reads)
	select {
	case p := <-unregister:
		assert.Same(t, f.human, p)
		assert.Equal(t, player.StatusDisconnected, p.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("player was not unregistered")
	}
}

func TestClose(t *testing.T) {
	f := newRoomFixture(t)
	unregister := make(chan *player.Player)

	done := make(chan struct{})
	go func() {
		f.room.Start(unregister)
		close(done)
	}()

	f.room.Close()
	f.room.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("room did not stop")
	}
	assert.True(t, f.room.IsClosed())
	select {
	case <-f.conn.closed:
	default:
		t.Error("player connection was not closed")
	}
}

func TestHeartbeat(t *testing.T) {
	f := newRoomFixture(t)
	f.room.heartbeat = 10 * time.Millisecond
	defer f.room.Close()

	go f.room.Start(make(chan *player.Player, 1))

	assert.Eventually(t, func() bool { return f.conn.pingCount() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

// memoryGameRepository applies the real rules in memory.
type memoryGameRepository struct {
	mu     sync.Mutex
	states map[string]*game.State
}

func (m *memoryGameRepository) Create(_ context.Context, roomID, humanID, botID, difficulty string, first game.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[roomID] = &game.State{Board: game.NewBoard(), CurrentTurn: first, HumanID: humanID, BotID: botID, Difficulty: difficulty}
	return nil
}

func (m *memoryGameRepository) FindByID(_ context.Context, id string) (*game.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryGameRepository) Update(_ context.Context, id string, mark game.Cell, row, col int) (*game.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	if s.IsOver() {
		return nil, game.ErrGameOver
	}
	if s.CurrentTurn != mark {
		return nil, repository.ErrNotPlayersTurn
	}
	g := s.Game()
	if err := g.Move(row, col); err != nil {
		return nil, err
	}
	s.Board, s.CurrentTurn, s.Winner, s.LastMove, s.Moves, s.IsDraw = g.Board, g.CurrentTurn, g.Winner, g.LastMove, g.Moves, g.IsDraw()
	cp := *s
	return &cp, nil
}

func (m *memoryGameRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func TestRoom_PlaysAgainstBot(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := eventmocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	repo := &memoryGameRepository{states: map[string]*game.State{}}
	r := NewRoom("room-1", repo, publisher)

	conn := newFakeConn()
	human := player.NewPlayer("alice", conn)
	botPlayer := bot.NewBotPlayer(bot.DifficultyEasy, r.IncomingMoves(), 0)
	r.AddPlayer(human)
	r.AddPlayer(botPlayer)
	require.NoError(t, repo.Create(context.Background(), r.ID, human.ID, botPlayer.ID, bot.DifficultyEasy, game.PlayerOne))

	r.SendInitialState(context.Background())
	go r.Start(make(chan *player.Player, 1))
	defer r.Close()

	assert.Equal(t, proto.TypeAssignment, conn.next(t)["type"])
	assert.Equal(t, game.MarkX, conn.next(t)["next"])

	conn.reads <- moveMessage(0, 0)

	afterHuman := conn.next(t)
	assert.Equal(t, game.MarkO, afterHuman["next"])

	// The bot answers on its own; the human sees the board with both pieces.
	afterBot := conn.next(t)
	assert.Equal(t, proto.TypeUpdate, afterBot["type"])
	assert.Equal(t, game.MarkX, afterBot["next"])

	stored, err := repo.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Moves)
	assert.Equal(t, game.PlayerOne, stored.Board.At(0, 0))
	assert.Equal(t, game.PlayerOne, stored.CurrentTurn)
}
