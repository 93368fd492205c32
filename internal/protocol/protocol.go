package protocol

import "encoding/json"

// Client -> server intents.
const (
	MsgCreateRoom        = "create_room"
	MsgJoinRoom          = "join_room"
	MsgQuickMatch        = "quick_match"
	MsgChangeNickname    = "change_nickname"
	MsgSelectOption      = "select_option"
	MsgConfirmSelection  = "confirm_selection"
	MsgReadyForNextRound = "ready_for_next_round"
	MsgLeaveRoom         = "leave_room"
	MsgVoiceToken        = "voice_token"
)

// MsgAck answers a client frame that carried an id.
const MsgAck = "ack"

// Envelope frames every message in both directions. ID is set on client frames
// that expect an acknowledgement and echoed on the ack.
type Envelope struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"` // raw payload bytes
}

type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type JoinRoomResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type QuickMatchRequest struct {
	Nickname string `json:"nickname"`
}

// QuickMatchResponse names the room the caller was seated in.
type QuickMatchResponse struct {
	RoomID  string `json:"roomId"`
	Created bool   `json:"created"`
}

type ChangeNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type SelectOptionRequest struct {
	Option string `json:"option"`
}

type VoiceTokenRequest struct {
	Action string `json:"action"`
}

type VoiceTokenResponse struct {
	Token   string `json:"token"`
	Channel string `json:"channel,omitempty"`
}
