package nakama

// RPC ids clients call over the realtime socket. Each maps to one intent.
const (
	RpcCreateRoom        = "create_room"
	RpcJoinRoom          = "join_room"
	RpcQuickMatch        = "quick_match"
	RpcChangeNickname    = "change_nickname"
	RpcSelectOption      = "select_option"
	RpcConfirmSelection  = "confirm_selection"
	RpcReadyForNextRound = "ready_for_next_round"
	RpcLeaveRoom         = "leave_room"
	RpcVoiceToken        = "voice_token"
)

// StreamModeRoom is the custom stream mode carrying room broadcasts.
// The stream label is the room id.
const StreamModeRoom uint8 = 150

// gRPC status codes used for RPC errors.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeFailedPrecondition = 9
	codeInternal           = 13
)
