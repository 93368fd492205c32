package app

import "context"

// Gateway is the real-time transport driven by the Coordinator. Connection ids
// are opaque handles owned by the gateway.
type Gateway interface {
	// JoinChannel subscribes a connection to a room's broadcast channel.
	JoinChannel(ctx context.Context, connectionID, roomID string) error
	// LeaveChannel unsubscribes a connection from a room's broadcast channel.
	LeaveChannel(ctx context.Context, connectionID, roomID string) error
	// Dispatch delivers ev to its recipients, or to every member of roomID's
	// channel when ev has none.
	Dispatch(ctx context.Context, roomID string, ev Event) error
}
