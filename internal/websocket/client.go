package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qcmpulse/internal/config"
	"qcmpulse/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// heartbeat is the keep-alive frame sent by the browser dashboard
const heartbeat = `{"type":"heartbeat"}`

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	pingPeriod time.Duration
	pongWait   time.Duration

	logger *slog.Logger
}

// NewClient creates a client for conn. Ping and pong timing come from the
// package defaults until SetTiming is called.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		pingPeriod:  config.WebSocketPingPeriod,
		pongWait:    config.WebSocketPongWait,
		logger:      logger,
	}
}

// SetTiming overrides the keep-alive timing. The ping period must be shorter than the pong wait.
func (c *Client) SetTiming(pingPeriod, pongWait time.Duration) {
	if pingPeriod <= 0 || pongWait <= 0 || pingPeriod >= pongWait {
		return
	}
	c.pingPeriod = pingPeriod
	c.pongWait = pongWait
}

// ID returns the client identifier sent in the connection greeting
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump consumes frames from the peer until the connection fails. Clients
// only send heartbeats; anything else is counted and ignored.
func (c *Client) ReadPump() {
	var received, bytesIn int64
	defer func() {
		c.logger.InfoContext(c.context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", received),
			slog.Int64("bytes_received", bytesIn))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordError("unexpected_close")
				c.logger.ErrorContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))

		received++
		bytesIn += int64(len(message))
		c.hub.metrics.RecordMessage("received", int64(len(message)), true)

		if string(message) == heartbeat {
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			continue
		}
		c.logger.DebugContext(c.context(), "Ignoring client message",
			slog.Int("size", len(message)))
	}
}

// WritePump drains the send channel to the peer and keeps the connection alive with pings
func (c *Client) WritePump() {
	var sent, bytesOut int64
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.InfoContext(c.context(), "WebSocket write pump stopped",
			slog.Int64("messages_sent", sent),
			slog.Int64("bytes_sent", bytesOut))
	}()

	write := func(msg []byte) bool {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.metrics.RecordMessage("sent", int64(len(msg)), false)
			c.logger.ErrorContext(c.context(), "Error writing message to WebSocket",
				slog.String("error", err.Error()))
			return false
		}
		sent++
		bytesOut += int64(len(msg))
		return true
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// The hub closed the channel
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(message) {
				return
			}

			// Each queued event goes out as its own frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				msg, ok := <-c.send
				if !ok {
					return
				}
				if !write(msg) {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Connection is what the pumps need from a socket; tests substitute a mock
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// gorillaConn adapts *websocket.Conn to Connection
type gorillaConn struct {
	*websocket.Conn
}

func (g gorillaConn) RemoteAddr() string {
	return g.Conn.RemoteAddr().String()
}

// ServeWS registers an upgraded connection with the hub and starts its pumps
func ServeWS(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, traceID string, logger *slog.Logger) *Client {
	client := NewClient(hub, gorillaConn{conn}, traceID, logger)
	client.SetTiming(cfg.PingPeriod, cfg.PongWait)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return client
}
