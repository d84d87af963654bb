// Package ws runs the per-connection WebSocket loop.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next frame from the peer.
	readWait = 60 * time.Second

	// Heartbeat cadence: update_ping plus a JSON PING probe.
	heartbeatPeriod = 30 * time.Second

	// Back off this long after a transient heartbeat failure.
	heartbeatBackoff = 5 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var openConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "websocket_open_connections",
	Help: "Currently open WebSocket connections.",
})

// inboundFrame is a client->server frame: PONG or USER_TYPING.
type inboundFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// Conn drives one open WebSocket: heartbeat, outbound fan-in from
// pub/sub, inbound decoding. All three sub-tasks share a cancel signal
// and teardown always runs.
type Conn struct {
	conn    *websocket.Conn
	session *models.WSSession
	user    *models.User
	svc     *chat.WebSocketService
	sub     store.Subscription
	logger  *utils.Logger
}

func NewConn(conn *websocket.Conn, session *models.WSSession, user *models.User, svc *chat.WebSocketService, sub store.Subscription, logger *utils.Logger) *Conn {
	return &Conn{
		conn:    conn,
		session: session,
		user:    user,
		svc:     svc,
		sub:     sub,
		logger:  logger,
	}
}

// Run blocks until the connection dies or ctx is cancelled. The
// outbound pump is the connection's single writer.
func (c *Conn) Run(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	openConnections.Inc()
	defer c.teardown(stop)

	c.conn.SetReadLimit(maxMessageSize)

	done := make(chan struct{}, 3)
	go func() { c.heartbeat(ctx); done <- struct{}{} }()
	go func() { c.outbound(ctx); done <- struct{}{} }()
	go func() { c.inbound(ctx); done <- struct{}{} }()

	// The first sub-task to exit stops the others; wait for all three.
	for i := 0; i < 3; i++ {
		<-done
		stop()
	}
}

func (c *Conn) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := c.svc.UpdatePing(ctx, c.session.ID, c.session.UserID)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrWSSessionNotFound):
			// Session revoked elsewhere (logout, forced disconnect).
			return
		case ctx.Err() != nil:
			return
		default:
			c.logger.Error(ctx, "heartbeat failed: %v", err)
			select {
			case <-time.After(heartbeatBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// outbound forwards pub/sub payloads verbatim and emits PING probes.
func (c *Conn) outbound(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-c.sub.Messages():
			if !ok {
				return
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.TextMessage, []byte(`{"type":"PING"}`)); err != nil {
				return
			}
		}
	}
}

func (c *Conn) inbound(ctx context.Context) {
	for {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error(ctx, "websocket read failed: %v", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn(ctx, "malformed websocket frame: %v", err)
			continue
		}

		switch frame.Type {
		case "PONG":
			// Liveness only; the read deadline reset above is the effect.
		case "USER_TYPING":
			if err := c.svc.TypingIndicator(ctx, c.session.RoomID, c.session.UserID, frame.Username, frame.IsTyping); err != nil {
				c.logger.Error(ctx, "typing indicator failed: %v", err)
			}
		default:
			c.logger.Warn(ctx, "unknown websocket frame type: %s", frame.Type)
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// teardown runs on every exit path. Cleanup errors are logged, never
// propagated.
func (c *Conn) teardown(stop context.CancelFunc) {
	stop()
	openConnections.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.svc.DisconnectFromRoom(ctx, c.session.ID, c.session.UserID); err != nil && !errors.Is(err, chat.ErrWSSessionNotFound) {
		c.logger.Error(ctx, "websocket teardown disconnect failed: %v", err)
	}
	if err := c.sub.Close(); err != nil {
		c.logger.Error(ctx, "websocket teardown unsubscribe failed: %v", err)
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug(ctx, "websocket close: %v", err)
	}
}
