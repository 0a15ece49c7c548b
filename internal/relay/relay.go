// Package relay owns the connection lifecycle: handshake authentication,
// the presence registry, and the persist-and-fan-out message pipeline.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/crypto"
	"github.com/courierchat/courier/internal/metrics"
	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/store"
	"github.com/courierchat/courier/internal/token"
	"github.com/courierchat/courier/internal/uploads"
)

const persistTimeout = 5 * time.Second

// Relay orchestrates authenticated connections: register presence, relay
// inbound messages through the cipher and store, fan out to the
// recipient's live connections, and rebroadcast presence on disconnect.
type Relay struct {
	registry *Registry
	store    store.MessageStore
	cipher   *crypto.Cipher
	uploads  *uploads.Store
	secret   []byte
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New creates a Relay. allowedOrigins mirrors the CORS configuration of
// the HTTP API; an empty list permits same-host requests only.
func New(st store.MessageStore, cipher *crypto.Cipher, up *uploads.Store, secret []byte, allowedOrigins []string, logger zerolog.Logger) *Relay {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Relay{
		registry: NewRegistry(),
		store:    st,
		cipher:   cipher,
		uploads:  up,
		secret:   secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin] || origins["*"]
			},
		},
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

// Registry exposes the presence registry for health/introspection.
func (rl *Relay) Registry() *Registry {
	return rl.registry
}

// HandleWS is the WebSocket handshake endpoint. Authentication happens
// before the upgrade; no unauthenticated connection is ever registered
// and no events are read until identity is attached.
func (rl *Relay) HandleWS(w http.ResponseWriter, r *http.Request) {
	claims, err := token.FromCookieHeader(r.Header.Get("Cookie"), rl.secret)
	if err != nil {
		reason := rejectReason(err)
		metrics.AuthRejected.WithLabelValues(reason).Inc()
		rl.logger.Warn().Str("reason", reason).Str("remote_addr", r.RemoteAddr).Msg("handshake rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		rl.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	client := newClient(conn, claims.UserID, claims.Username, rl.logger)

	// Record the identity so the roster knows about it even after
	// every connection closes.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if err := rl.store.UpsertUser(ctx, &models.User{ID: claims.UserID, Username: claims.Username}); err != nil {
		rl.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("user upsert failed")
	}
	cancel()

	rl.registry.Register(client)
	metrics.ConnectionsActive.Inc()
	client.logger.Info().Str("username", claims.Username).Msg("connected")

	go client.writePump()
	rl.broadcastPresence()

	rl.readLoop(client)
}

// readLoop processes one connection's events in arrival order. It only
// returns when the connection is gone; teardown deregisters exactly once
// and rebroadcasts presence to the remaining connections.
func (rl *Relay) readLoop(client *Client) {
	defer func() {
		rl.registry.Deregister(client)
		metrics.ConnectionsActive.Dec()
		client.close()
		client.logger.Info().Msg("disconnected")
		rl.broadcastPresence()
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		rl.handleInbound(client, frame)
	}
}

// handleInbound runs one event through the inbound pipeline:
// parse, validate, store attachment, persist, fan out. Invalid events
// are dropped without a reply; the drop is logged and counted.
func (rl *Relay) handleInbound(client *Client, frame []byte) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event != eventMessage {
		metrics.DroppedEvents.WithLabelValues("unknown_event").Inc()
		client.logger.Warn().Msg("dropping unrecognized frame")
		return
	}

	var in inboundMessage
	if err := json.Unmarshal(env.Data, &in); err != nil {
		metrics.DroppedEvents.WithLabelValues("malformed").Inc()
		client.logger.Warn().Msg("dropping malformed message event")
		return
	}

	if in.Recipient == "" || (in.Text == "" && in.File == nil) {
		metrics.DroppedEvents.WithLabelValues("validation").Inc()
		client.logger.Warn().Msg("dropping message without recipient or content")
		return
	}

	// Attachment first, so a stored reference is always durable by the
	// time the message row exists. A failed write is logged and the
	// message persists without a reference.
	var fileRef *string
	if in.File != nil {
		name, err := rl.uploads.Save(in.File.Data, in.File.Name)
		if err != nil {
			metrics.AttachmentWriteFailures.Inc()
			client.logger.Error().Err(err).Str("name", in.File.Name).Msg("attachment store failed")
		} else {
			metrics.AttachmentsStored.Inc()
			fileRef = &name
		}
	}

	ciphertext, iv, err := rl.cipher.Encrypt(in.Text)
	if err != nil {
		metrics.DroppedEvents.WithLabelValues("encrypt").Inc()
		client.logger.Error().Err(err).Msg("encryption failed")
		return
	}

	// Sender comes from the authenticated connection, never the payload.
	msg := &models.Message{
		ID:         ulid.Make().String(),
		Sender:     client.UserID,
		Recipient:  in.Recipient,
		Ciphertext: ciphertext,
		IV:         iv,
		File:       fileRef,
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := rl.store.SaveMessage(ctx, msg); err != nil {
		metrics.DroppedEvents.WithLabelValues("persistence").Inc()
		client.logger.Error().Err(err).Msg("message persistence failed")
		return
	}
	metrics.MessagesRelayed.Inc()

	rl.fanOut(client, msg, in.Text)
}

// fanOut pushes the message to every live connection of the recipient.
// Zero live connections means the message stays persisted-only.
func (rl *Relay) fanOut(client *Client, msg *models.Message, text string) {
	frame, err := marshalEvent(eventMessage, outboundMessage{
		Text:      text,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		File:      msg.File,
		ID:        msg.ID,
	})
	if err != nil {
		client.logger.Error().Err(err).Msg("marshal outbound message")
		return
	}

	for _, target := range rl.registry.ConnectionsFor(msg.Recipient) {
		target.enqueue(frame)
		metrics.FanoutDeliveries.Inc()
	}
}

// broadcastPresence emits the current roster of live connections to
// every connection. Best-effort: the snapshot is taken and the lock
// released before any frame is queued.
func (rl *Relay) broadcastPresence() {
	entries := rl.registry.Snapshot()
	frame, err := marshalEvent(eventOnlineUsers, entries)
	if err != nil {
		rl.logger.Error().Err(err).Msg("marshal presence broadcast")
		return
	}

	for _, c := range rl.registry.All() {
		c.enqueue(frame)
	}
}

// rejectReason maps an auth failure to its metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, token.ErrNoCookie):
		return "no_cookie"
	case errors.Is(err, token.ErrNoToken):
		return "no_token"
	case errors.Is(err, token.ErrEmptyToken):
		return "empty_token"
	default:
		return "invalid_token"
	}
}
