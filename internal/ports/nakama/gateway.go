package nakama

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

var ErrUnknownSession = errors.New("unknown session")

// streamModule is the subset of runtime.NakamaModule the gateway needs.
type streamModule interface {
	StreamUserJoin(mode uint8, subject, subcontext, label, userID, sessionID string, hidden, persistence bool, status string) (bool, error)
	StreamUserLeave(mode uint8, subject, subcontext, label, userID, sessionID string) error
	StreamSend(mode uint8, subject, subcontext, label, data string, presences []runtime.Presence, reliable bool) error
}

// sessionPresence identifies one realtime session for targeted stream sends.
type sessionPresence struct {
	userID    string
	sessionID string
	nodeID    string
	username  string
}

func (p sessionPresence) GetHidden() bool                   { return false }
func (p sessionPresence) GetPersistence() bool              { return false }
func (p sessionPresence) GetUsername() string               { return p.username }
func (p sessionPresence) GetStatus() string                 { return "" }
func (p sessionPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p sessionPresence) GetUserId() string                 { return p.userID }
func (p sessionPresence) GetSessionId() string              { return p.sessionID }
func (p sessionPresence) GetNodeId() string                 { return p.nodeID }

// StreamGateway implements app.Gateway over a custom Nakama stream per room.
// Connection ids are Nakama session ids; sessions must be tracked before use.
type StreamGateway struct {
	nk streamModule

	mu       sync.RWMutex
	sessions map[string]sessionPresence
}

// NewStreamGateway creates a gateway bound to nk.
func NewStreamGateway(nk streamModule) *StreamGateway {
	return &StreamGateway{
		nk:       nk,
		sessions: make(map[string]sessionPresence),
	}
}

// Track records the identity behind a session id.
func (g *StreamGateway) Track(sessionID, userID, username, nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID] = sessionPresence{
		userID:    userID,
		sessionID: sessionID,
		nodeID:    nodeID,
		username:  username,
	}
}

// Forget drops a session after it ended.
func (g *StreamGateway) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

func (g *StreamGateway) session(sessionID string) (sessionPresence, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.sessions[sessionID]
	return p, ok
}

func (g *StreamGateway) JoinChannel(ctx context.Context, connectionID, roomID string) error {
	p, ok := g.session(connectionID)
	if !ok {
		return fmt.Errorf("join room %s: %w: %s", roomID, ErrUnknownSession, connectionID)
	}
	if _, err := g.nk.StreamUserJoin(StreamModeRoom, "", "", roomID, p.userID, p.sessionID, false, false, ""); err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	return nil
}

func (g *StreamGateway) LeaveChannel(ctx context.Context, connectionID, roomID string) error {
	p, ok := g.session(connectionID)
	if !ok {
		// Session already gone; Nakama drops its stream presences itself.
		return nil
	}
	if err := g.nk.StreamUserLeave(StreamModeRoom, "", "", roomID, p.userID, p.sessionID); err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

func (g *StreamGateway) Dispatch(ctx context.Context, roomID string, ev app.Event) error {
	data, err := protocol.Encode(string(ev.Kind), ev.Payload)
	if err != nil {
		return err
	}

	if len(ev.Recipients) == 0 {
		return g.nk.StreamSend(StreamModeRoom, "", "", roomID, string(data), nil, true)
	}

	presences := make([]runtime.Presence, 0, len(ev.Recipients))
	for _, id := range ev.Recipients {
		if p, ok := g.session(id); ok {
			presences = append(presences, p)
		}
	}
	if len(presences) == 0 {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, ErrUnknownSession)
	}
	return g.nk.StreamSend(StreamModeRoom, "", "", roomID, string(data), presences, true)
}

var _ app.Gateway = (*StreamGateway)(nil)
