package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// Messages sent for frames the server cannot act on.
const (
	MsgInvalidMessage = "Invalid message"
	MsgUnknownEvent   = "Unknown event"
	MsgRateLimited    = "Rate limit exceeded. Please slow down."
	MsgCreateFailed   = "Failed to create room"
	MsgVoiceDisabled  = "Voice chat disabled"
)

// Server exposes the coordinator over WebSocket at /ws and reports liveness at /health.
type Server struct {
	coordinator *app.Coordinator
	hub         *Hub
	voice       *app.VoiceService
	logger      runtime.Logger

	originPatterns []string
	now            func() time.Time
}

// NewServer builds the HTTP surface. clientURL restricts WebSocket origins;
// empty allows any origin. voice may be nil.
func NewServer(coordinator *app.Coordinator, hub *Hub, voice *app.VoiceService, logger runtime.Logger, clientURL string) *Server {
	return &Server{
		coordinator:    coordinator,
		hub:            hub,
		voice:          voice,
		logger:         logger,
		originPatterns: originPatterns(clientURL),
		now:            time.Now,
	}
}

func originPatterns(clientURL string) []string {
	if clientURL == "" {
		return []string{"*"}
	}
	u, err := url.Parse(clientURL)
	if err != nil || u.Host == "" {
		return []string{clientURL}
	}
	return []string{u.Host}
}

// Handler routes /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "OK",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warn("handleWebSocket: upgrade failed: %v", err)
		return
	}

	c := newClient(uuid.NewString(), conn, s.logger)
	s.hub.register(c)
	s.logger.Info("handleWebSocket: %s connected", c.id)

	go c.writePump()
	c.readPump(
		func(frame []byte) { s.handleFrame(c, frame) },
		func() { s.sendEvent(c, app.EventError, MsgRateLimited) },
	)

	s.coordinator.Disconnect(context.Background(), c.id)
	s.hub.unregister(c)
	c.Close()
	s.logger.Info("handleWebSocket: %s disconnected", c.id)
}

// handleFrame routes one client frame to the coordinator. Frames carrying an
// id are acknowledged.
func (s *Server) handleFrame(c *Client, frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		c.logger.Debug("handleFrame: %v", err)
		s.sendEvent(c, app.EventError, MsgInvalidMessage)
		return
	}

	ctx := c.ctx
	var ack any
	switch env.Event {
	case protocol.MsgCreateRoom:
		req, err := protocol.DecodePayload[protocol.CreateRoomRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		roomID, err := s.coordinator.CreateRoom(ctx, c.id, req.Nickname)
		if err != nil {
			ack = map[string]string{"error": MsgCreateFailed}
			break
		}
		ack = protocol.CreateRoomResponse{RoomID: roomID}

	case protocol.MsgJoinRoom:
		req, err := protocol.DecodePayload[protocol.JoinRoomRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		ack = protocol.JoinRoomResponse{Success: true}
		if err := s.coordinator.JoinRoom(ctx, c.id, req.RoomID, req.Nickname); err != nil {
			ack = protocol.JoinRoomResponse{Success: false, Error: app.JoinErrorMessage(err)}
		}

	case protocol.MsgQuickMatch:
		req, err := protocol.DecodePayload[protocol.QuickMatchRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		roomID, created, err := s.coordinator.QuickMatch(ctx, c.id, req.Nickname)
		if err != nil {
			ack = map[string]string{"error": MsgCreateFailed}
			break
		}
		ack = protocol.QuickMatchResponse{RoomID: roomID, Created: created}

	case protocol.MsgChangeNickname:
		req, err := protocol.DecodePayload[protocol.ChangeNicknameRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		s.coordinator.ChangeNickname(ctx, c.id, req.Nickname)

	case protocol.MsgSelectOption:
		req, err := protocol.DecodePayload[protocol.SelectOptionRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		s.coordinator.SelectOption(ctx, c.id, req.Option)

	case protocol.MsgConfirmSelection:
		s.coordinator.ConfirmSelection(ctx, c.id)

	case protocol.MsgReadyForNextRound:
		s.coordinator.ReadyForNextRound(ctx, c.id)

	case protocol.MsgLeaveRoom:
		s.coordinator.LeaveRoom(ctx, c.id)

	case protocol.MsgVoiceToken:
		req, err := protocol.DecodePayload[protocol.VoiceTokenRequest](env)
		if err != nil {
			s.sendEvent(c, app.EventError, MsgInvalidMessage)
			return
		}
		ack = s.voiceToken(c, req)

	default:
		s.sendEvent(c, app.EventError, MsgUnknownEvent)
		return
	}

	if env.ID != nil {
		s.sendAck(c, *env.ID, ack)
	}
}

func (s *Server) voiceToken(c *Client, req protocol.VoiceTokenRequest) any {
	if !s.voice.Enabled() {
		return map[string]string{"error": MsgVoiceDisabled}
	}

	var roomID string
	if req.Action == app.VoiceActionJoin {
		id, ok := s.coordinator.RoomOf(c.id)
		if !ok {
			return map[string]string{"error": app.MsgNotInRoom}
		}
		roomID = id
	}

	token, err := s.voice.GenerateToken(c.id, req.Action, roomID)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	resp := protocol.VoiceTokenResponse{Token: token}
	if roomID != "" {
		resp.Channel = app.ChannelName(roomID)
	}
	return resp
}

func (s *Server) sendEvent(c *Client, kind app.EventKind, payload any) {
	data, err := protocol.Encode(string(kind), payload)
	if err != nil {
		c.logger.Error("sendEvent: %v", err)
		return
	}
	c.Send(data)
}

func (s *Server) sendAck(c *Client, id int64, payload any) {
	data, err := protocol.EncodeAck(id, payload)
	if err != nil {
		c.logger.Error("sendAck: %v", err)
		return
	}
	c.Send(data)
}
