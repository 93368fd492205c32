package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

const emptyResponse = "{}"

var (
	errSessionRequired = runtime.NewError("realtime session required", codeFailedPrecondition)
	errInvalidPayload  = runtime.NewError("Invalid payload", codeInvalidArgument)
	errInternal        = runtime.NewError("Internal error", codeInternal)
	errVoiceDisabled   = runtime.NewError("Voice chat disabled", codeFailedPrecondition)
	errNotInRoom       = runtime.NewError(app.MsgNotInRoom, codeFailedPrecondition)
)

// Module binds the round coordinator to Nakama RPCs and session events.
type Module struct {
	coordinator *app.Coordinator
	gateway     *StreamGateway
	voice       *app.VoiceService
	accounts    ports.AccountPort
}

// NewModule wires the Nakama surface. voice and accounts may be nil.
func NewModule(coordinator *app.Coordinator, gateway *StreamGateway, voice *app.VoiceService, accounts ports.AccountPort) *Module {
	return &Module{
		coordinator: coordinator,
		gateway:     gateway,
		voice:       voice,
		accounts:    accounts,
	}
}

// RegisterRPCs registers one RPC per inbound intent plus the voice token RPC.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateRoom:        m.rpcCreateRoom,
		RpcJoinRoom:          m.rpcJoinRoom,
		RpcQuickMatch:        m.rpcQuickMatch,
		RpcChangeNickname:    m.rpcChangeNickname,
		RpcSelectOption:      m.rpcSelectOption,
		RpcConfirmSelection:  m.rpcConfirmSelection,
		RpcReadyForNextRound: m.rpcReadyForNextRound,
		RpcLeaveRoom:         m.rpcLeaveRoom,
		RpcVoiceToken:        m.rpcVoiceToken,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// caller is the realtime session an RPC arrived on.
type caller struct {
	sessionID string
	userID    string
	username  string
}

// track resolves the calling session and registers it with the gateway.
// RPCs over plain HTTP carry no session and are rejected.
func (m *Module) track(ctx context.Context) (caller, error) {
	c := caller{}
	c.sessionID, _ = ctx.Value(runtime.RUNTIME_CTX_SESSION_ID).(string)
	c.userID, _ = ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	c.username, _ = ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)
	node, _ := ctx.Value(runtime.RUNTIME_CTX_NODE).(string)

	if c.sessionID == "" || c.userID == "" {
		return caller{}, errSessionRequired
	}
	m.gateway.Track(c.sessionID, c.userID, c.username, node)
	return c, nil
}

// nickname falls back to the account display name when the client sent none.
func (m *Module) nickname(ctx context.Context, logger runtime.Logger, c caller, requested string) string {
	if requested != "" || m.accounts == nil {
		return requested
	}
	name, err := m.accounts.DisplayName(ctx, c.userID)
	if err != nil {
		logger.Warn("nickname: display name lookup for %s failed: %v", c.userID, err)
		return ""
	}
	return name
}

func (m *Module) rpcCreateRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeString[protocol.CreateRoomRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}

	roomID, err := m.coordinator.CreateRoom(ctx, c.sessionID, m.nickname(ctx, logger, c, req.Nickname))
	if err != nil {
		logger.Error("rpcCreateRoom [Session:%s]: %v", c.sessionID, err)
		return "", errInternal
	}
	return marshalResponse(protocol.CreateRoomResponse{RoomID: roomID})
}

func (m *Module) rpcJoinRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeString[protocol.JoinRoomRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}

	resp := protocol.JoinRoomResponse{Success: true}
	if err := m.coordinator.JoinRoom(ctx, c.sessionID, req.RoomID, m.nickname(ctx, logger, c, req.Nickname)); err != nil {
		resp = protocol.JoinRoomResponse{Success: false, Error: app.JoinErrorMessage(err)}
	}
	return marshalResponse(resp)
}

// rpcQuickMatch pairs the caller with a waiting player, creating a room if none waits.
func (m *Module) rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeString[protocol.QuickMatchRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}

	roomID, created, err := m.coordinator.QuickMatch(ctx, c.sessionID, m.nickname(ctx, logger, c, req.Nickname))
	if err != nil {
		logger.Error("rpcQuickMatch [Session:%s]: %v", c.sessionID, err)
		return "", errInternal
	}
	return marshalResponse(protocol.QuickMatchResponse{RoomID: roomID, Created: created})
}

func (m *Module) rpcChangeNickname(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeString[protocol.ChangeNicknameRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}
	m.coordinator.ChangeNickname(ctx, c.sessionID, req.Nickname)
	return emptyResponse, nil
}

// rpcSelectOption reports invalid options through an error event, not the RPC result.
func (m *Module) rpcSelectOption(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeString[protocol.SelectOptionRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}
	m.coordinator.SelectOption(ctx, c.sessionID, req.Option)
	return emptyResponse, nil
}

func (m *Module) rpcConfirmSelection(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	m.coordinator.ConfirmSelection(ctx, c.sessionID)
	return emptyResponse, nil
}

func (m *Module) rpcReadyForNextRound(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	m.coordinator.ReadyForNextRound(ctx, c.sessionID)
	return emptyResponse, nil
}

func (m *Module) rpcLeaveRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	m.coordinator.LeaveRoom(ctx, c.sessionID)
	return emptyResponse, nil
}

// rpcVoiceToken signs a Vivox token. Join tokens are only issued for the
// caller's current room.
func (m *Module) rpcVoiceToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	c, err := m.track(ctx)
	if err != nil {
		return "", err
	}
	if !m.voice.Enabled() {
		return "", errVoiceDisabled
	}
	req, err := protocol.DecodeString[protocol.VoiceTokenRequest](payload)
	if err != nil {
		return "", errInvalidPayload
	}

	var roomID string
	if req.Action == app.VoiceActionJoin {
		id, ok := m.coordinator.RoomOf(c.sessionID)
		if !ok {
			return "", errNotInRoom
		}
		roomID = id
	}

	token, err := m.voice.GenerateToken(c.userID, req.Action, roomID)
	if err != nil {
		if errors.Is(err, app.ErrVoiceDisabled) {
			return "", errVoiceDisabled
		}
		logger.Warn("rpcVoiceToken [User:%s]: %v", c.userID, err)
		return "", runtime.NewError(err.Error(), codeInvalidArgument)
	}

	resp := protocol.VoiceTokenResponse{Token: token}
	if roomID != "" {
		resp.Channel = app.ChannelName(roomID)
	}
	return marshalResponse(resp)
}

func marshalResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errInternal
	}
	return string(b), nil
}
