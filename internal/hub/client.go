package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Tisha7353/Resono/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 60 * time.Second       // idle limit: no pong in this window force-closes the connection
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound events
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// Client is one live realtime connection bound to a user identity. It owns
// its transport for its whole lifetime and never outlives it.
type Client struct {
	ID       string
	userID   string
	openedAt time.Time
	conn     *websocket.Conn
	hub      *Hub
	egress   chan event.WsEvent
	logger   *zap.Logger

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

// RegisterClient binds an authenticated identity to a fresh websocket
// connection and hands it to the hub. Returns nil when the hub could not
// admit the client in time.
func RegisterClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	clientID := uuid.NewString()

	client := &Client{
		ID:             clientID,
		userID:         userID,
		openedAt:       time.Now(),
		conn:           conn,
		hub:            h,
		egress:         make(chan event.WsEvent, sendBufSize),
		logger:         h.logger.With(zap.String("client_id", clientID), zap.String("user_id", userID)),
		cancel:         cancel,
		ctx:            ctx,
		connClosed:     make(chan struct{}),
		connClosedOnce: sync.Once{},
	}

	select {
	case h.register <- client:
		go client.readMessages()
		go client.writeMessages()
		client.logger.Info("client registered")
		return client
	case <-time.After(registerTimeout):
		client.logger.Warn("failed to register client: timeout")
		cancel()
		conn.Close()
		return nil
	}
}

func (c *Client) readMessages() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.logger.Warn("failed to unregister client: timeout")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {

				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.logger.Info("client disconnected")
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.logger.Warn("unexpected close", zap.Error(err))
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.logger.Info("client timed out, closing connection")
					return
				}

				// Transport errors and graceful closes take the same
				// unregister path; the delivery contract does not
				// distinguish crash from logout.
				c.logger.Warn("error reading from client", zap.Error(err))
				return
			}

			// Non-blocking send into this connection's worker queue to
			// avoid stalling the reader.
			select {
			case c.hub.inboundQueue(c) <- inboundEvent{client: c, event: ev}:
			case <-time.After(inboundSendTimeout):
				c.logger.Warn("inbound queue full, dropping client")
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				c.logger.Debug("connection closed", zap.Error(err))
			}
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("ping error", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// SafeSend attempts to enqueue an event for this connection. Returns false
// if the client is closed or the egress buffer stayed full past the
// timeout; callers decide whether that tears the connection down. The
// egress channel is never closed, so a send racing Close cannot panic; an
// event enqueued in that window is simply never written.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()

		// Wait for writeMessages to close conn, or force close after a
		// safety timeout.
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed connection")
			}
		}()
	})
}

// IsClosed returns true if the client has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}
