package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestEncodeDecode(t *testing.T) {
	finished := GameFinishedPayload{
		RoomID:     "room-1",
		PlayerID:   "alice",
		BotID:      "bot-1",
		Difficulty: "hard",
		PlayerMark: "X",
		Winner:     "draw",
		Moves:      16,
		FinishedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	data, err := Encode(TypeGameFinished, finished)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"game_finished"`)

	event, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeGameFinished, event.Type)

	var got GameFinishedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &got))
	assert.Equal(t, finished, got)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "Not JSON", data: "update"},
		{name: "No type", data: `{"payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEncode_UnmarshalablePayload(t *testing.T) {
	_, err := Encode(TypeRematchSuccessful, make(chan int))
	assert.Error(t, err)
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Skipf("could not start redis container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}()
	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(connString)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	bus := NewRedisBus(rdb)
	received := make(chan Event, 2)
	subscribed := make(chan error, 1)
	go func() {
		subscribed <- bus.Subscribe(ctx, func(_ context.Context, e Event) { received <- e })
	}()

	// Wait until the subscription is live before publishing.
	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, EventsChannel).Result()
		return err == nil && n[EventsChannel] > 0
	}, 5*time.Second, 50*time.Millisecond)

	// A malformed message is skipped without stopping the subscriber.
	require.NoError(t, rdb.Publish(ctx, EventsChannel, "garbage").Err())
	require.NoError(t, bus.Publish(ctx, TypeRematchSuccessful, RematchSuccessfulPayload{RoomID: "room-9"}))

	select {
	case e := <-received:
		assert.Equal(t, TypeRematchSuccessful, e.Type)
		var p RematchSuccessfulPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		assert.Equal(t, "room-9", p.RoomID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	cancel()
	select {
	case err := <-subscribed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
