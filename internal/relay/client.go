package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// Must be shorter than pongWait so the peer can answer in time.
	pingPeriod = 54 * time.Second

	sendBufferSize = 64
)

// Client is one live transport session. Identity is attached once, at
// handshake time, and never changes for the connection's lifetime.
type Client struct {
	ID        uuid.UUID
	UserID    string
	Username  string
	CreatedAt time.Time

	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	done   chan struct{}
	logger zerolog.Logger
}

func newClient(conn *websocket.Conn, userID, username string, logger zerolog.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		logger:    logger.With().Stringer("conn_id", id).Str("user_id", userID).Logger(),
	}
}

// enqueue hands a frame to the client's writer without blocking the
// caller. A slow or broken connection drops its own frames; it never
// stalls delivery to other connections.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		c.logger.Warn().Msg("send buffer full, dropping frame")
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with pings. One writePump per connection; gorilla permits a single
// concurrent writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// close releases the writer and underlying connection. Safe to call
// more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
