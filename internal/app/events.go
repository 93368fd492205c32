package app

import "github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"

// EventKind identifies emitted protocol events. The value is the wire event name.
type EventKind string

const (
	EventRoomJoined         EventKind = "room_joined"
	EventPlayerUpdate       EventKind = "player_update"
	EventBothConfirmed      EventKind = "both_confirmed"
	EventCountdown          EventKind = "countdown"
	EventRoundResult        EventKind = "round_result"
	EventBothReadyNextRound EventKind = "both_ready_next_round"
	EventOpponentLeft       EventKind = "opponent_left"
	EventError              EventKind = "error"
)

// Event is an outbound protocol event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // connection ids; empty means the whole room
}

// RoomJoinedPayload is sent only to the connection that created or joined a room.
type RoomJoinedPayload struct {
	RoomID  string              `json:"roomId"`
	Player  domain.PlayerView   `json:"player"`
	Players []domain.PlayerView `json:"players"`
}

// Rejection messages surfaced to clients.
const (
	MsgRoomNotFound    = "Room not found"
	MsgRoomFull        = "Room is full"
	MsgJoinFailed      = "Failed to join room"
	MsgInvalidOption   = "Invalid option"
	MsgSelectionLocked = "Selections are locked until the next round"
	MsgNotInRoom       = "You are not in a room"
	MsgCannotConfirm   = "Cannot confirm selection"
	MsgCannotMarkReady = "Cannot mark as ready"
)

func playerUpdate(room domain.Room) Event {
	return Event{Kind: EventPlayerUpdate, Payload: room.PlayerViews()}
}

func roomJoined(room domain.Room, connectionID string) Event {
	p, _ := room.Player(connectionID)
	return Event{
		Kind: EventRoomJoined,
		Payload: RoomJoinedPayload{
			RoomID:  room.ID,
			Player:  p.View(),
			Players: room.PlayerViews(),
		},
		Recipients: []string{connectionID},
	}
}

func errorEvent(connectionID, message string) Event {
	return Event{Kind: EventError, Payload: message, Recipients: []string{connectionID}}
}
