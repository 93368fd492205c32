package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/heroiclabs/nakama-common/runtime"
)

// Connection limits.
const (
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second
	WriteTimeout         = 10 * time.Second
	PingInterval         = 30 * time.Second
	ClientSendBufferSize = 256
	MaxMessageSize       = 4096
)

// Client is one WebSocket connection. Outbound frames are queued on send and
// written by writePump, so frames reach the peer in dispatch order.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger runtime.Logger

	rateLimitMu  sync.Mutex
	messageCount int
	lastReset    time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	closeMu sync.Mutex
	closed  bool
}

func newClient(id string, conn *websocket.Conn, logger runtime.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	conn.SetReadLimit(MaxMessageSize)
	return &Client{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, ClientSendBufferSize),
		logger:    logger.WithField("connection", id),
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID is the connection handle used by the coordinator.
func (c *Client) ID() string { return c.id }

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("writePump: write failed: %v", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug("writePump: ping failed: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump hands each inbound frame to handle until the connection fails or
// is closed. Frames over the rate limit are answered with onLimited instead.
func (c *Client) readPump(handle func([]byte), onLimited func()) {
	for {
		_, message, err := c.conn.Read(c.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				c.logger.Debug("readPump: read failed: %v", err)
			}
			return
		}

		if !c.checkRateLimit() {
			c.logger.Warn("readPump: rate limit exceeded")
			onLimited()
			continue
		}
		handle(message)
	}
}

func (c *Client) checkRateLimit() bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}
	c.messageCount++
	return c.messageCount <= MaxMessagesPerSecond
}

// Send queues a frame. A client whose queue is full is too slow and gets dropped.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		c.logger.Warn("Send: buffer full, closing slow client")
		go c.closeWith(websocket.StatusPolicyViolation, "too slow")
		return false
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Client) Close() {
	c.closeWith(websocket.StatusNormalClosure, "")
}

func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.closeMu.Unlock()

	// The close handshake runs before the context is canceled; canceling a
	// pending Read tears the connection down without one.
	_ = c.conn.Close(code, reason)
	c.cancel()
}
