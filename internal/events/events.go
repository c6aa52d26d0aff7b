package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Event types.
const (
	TypeGameFinished       = "game_finished"
	TypeRematchSuccessful  = "rematch_successful"
	TypePlayerDisconnected = "player_disconnected"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// GameFinishedPayload is the payload for the "game_finished" event.
type GameFinishedPayload struct {
	RoomID     string    `json:"room_id"`
	PlayerID   string    `json:"player_id"`
	BotID      string    `json:"bot_id"`
	Difficulty string    `json:"difficulty"`
	PlayerMark string    `json:"player_mark"`
	Winner     string    `json:"winner"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finished_at"`
}

// PlayerDisconnectedPayload is the payload for the "player_disconnected" event.
type PlayerDisconnectedPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

// RematchSuccessfulPayload is the payload for the "rematch_successful" event.
type RematchSuccessfulPayload struct {
	RoomID string `json:"room_id"`
}

// Encode wraps payload in an Event of the given type.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	data, err := json.Marshal(Event{Type: eventType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return data, nil
}

// Decode parses an Event and rejects one without a type.
func Decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return event, nil
}
