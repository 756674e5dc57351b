package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/Tisha7353/Resono/internal/auth"
	"github.com/Tisha7353/Resono/internal/event"
	"github.com/Tisha7353/Resono/internal/model"
	"github.com/Tisha7353/Resono/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type inboundEvent struct {
	event  event.WsEvent
	client *Client
}

// Hub admits authenticated connections, owns every write to the presence
// registry, and fans out online-set changes and committed messages to the
// connections that must see them.
type Hub struct {
	presence *Presence
	chat     service.ChatService
	verifier auth.Verifier
	logger   *zap.Logger
	validate *validator.Validate

	// userID -> clientID -> client; mutated only by the run loop.
	clientsMu sync.RWMutex
	clients   map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	// One queue per worker. A connection's frames all land on the queue
	// picked by its ID, so commit and push happen in arrival order for
	// that connection while different connections still run in parallel.
	inbound []chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(presence *Presence, chat service.ChatService, verifier auth.Verifier, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		presence:   presence,
		chat:       chat,
		verifier:   verifier,
		logger:     logger,
		validate:   validator.New(),
		clients:    make(map[string]map[string]*Client),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make([]chan inboundEvent, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	go h.run()

	for i := 0; i < workerPoolSize; i++ {
		h.inbound[i] = make(chan inboundEvent, 256)
		h.wg.Add(1)
		go func(queue chan inboundEvent) {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-queue:
					h.handleEvent(in.event, in.client)
				}
			}
		}(h.inbound[i])
	}

	return h
}

func getShard(clientID string) uint32 {
	if clientID == "" {
		return 0
	}

	s := sha1.Sum([]byte(clientID))
	return binary.BigEndian.Uint32(s[:4]) % uint32(workerPoolSize)
}

// inboundQueue returns the worker queue pinned to this connection.
func (h *Hub) inboundQueue(c *Client) chan inboundEvent {
	return h.inbound[getShard(c.ID)]
}

// run serializes every presence mutation: register, unregister and the
// broadcasts they cause all happen on this one goroutine, so each
// connection observes the online-set changes in the order they were made.
func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[string]*Client)
		h.clients[c.userID] = conns
	}
	conns[c.ID] = c
	h.clientsMu.Unlock()

	h.presence.Register(c.userID, c.ID)

	// The joiner gets the activity snapshot, then everyone, the joiner
	// included, gets the full online set.
	h.sendActivitiesSnapshot(c)
	h.broadcastOnlineSet()

	h.logger.Info("client added",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
	)
}

func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	conns, ok := h.clients[c.userID]
	if ok {
		if _, exists := conns[c.ID]; !exists {
			ok = false
		} else {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
	h.clientsMu.Unlock()

	if !ok {
		// already removed; unregister is idempotent per connection
		return
	}

	wentOffline := h.presence.Unregister(c.userID, c.ID)
	c.Close()

	h.broadcastOnlineSet()

	h.logger.Info("client removed",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Bool("went_offline", wentOffline),
	)
}

// -----------------------------------------------------------------
// Inbound event handling
// -----------------------------------------------------------------

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventUpdateActivity:
		h.handleUpdateActivity(ev, c)
	default:
		h.logger.Warn("unknown event type",
			zap.String("event", ev.Event),
			zap.String("client_id", c.ID),
		)
	}
}

func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	var payload event.SendMessagePayload
	if err := unmarshalPayload(ev, &payload); err != nil {
		h.sendError(c, "invalid_payload", "malformed send_message payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		h.sendError(c, "invalid_payload", err.Error())
		return
	}

	// Durability precedes notification: the store commit must succeed
	// before any live push happens.
	msg, err := h.chat.SendMessage(h.ctx, c.userID, payload.RecipientID, payload.Content)
	if err != nil {
		if service.IsInvalidArgument(err) {
			h.sendError(c, "invalid_argument", err.Error())
		} else {
			h.logger.Error("send failed", zap.Error(err), zap.String("client_id", c.ID))
			h.sendError(c, "storage_failure", "message could not be stored")
		}
		return
	}

	h.deliverCommittedMessage(msg, c)
}

func (h *Hub) handleUpdateActivity(ev event.WsEvent, c *Client) {
	var payload event.UpdateActivityPayload
	if err := unmarshalPayload(ev, &payload); err != nil {
		h.sendError(c, "invalid_payload", "malformed update_activity payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		h.sendError(c, "invalid_payload", err.Error())
		return
	}

	// Dropped when the user already disconnected; nothing to announce then.
	if !h.presence.SetActivity(c.userID, payload.Activity) {
		return
	}

	update, err := event.New(event.EventActivityUpdated, event.ActivityUpdatedPayload{
		UserID:   c.userID,
		Activity: h.presence.Activity(c.userID),
	})
	if err != nil {
		h.logger.Error("failed to build activity event", zap.Error(err))
		return
	}
	h.broadcast(update)
}

// -----------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------

// deliverCommittedMessage pushes an already-persisted message to every open
// connection of the recipient and acks the originating connection. An
// offline recipient gets nothing pushed: the message surfaces on their next
// history read.
func (h *Hub) deliverCommittedMessage(msg *model.Message, origin *Client) {
	received, err := event.New(event.EventReceiveMessage, msg)
	if err != nil {
		h.logger.Error("failed to build receive_message event", zap.Error(err))
		return
	}

	for _, c := range h.clientsForUser(msg.RecipientID) {
		h.push(c, received)
	}

	if origin == nil {
		return
	}
	ack, err := event.New(event.EventMessageSent, msg)
	if err != nil {
		h.logger.Error("failed to build message_sent event", zap.Error(err))
		return
	}
	h.push(origin, ack)
}

func (h *Hub) sendActivitiesSnapshot(c *Client) {
	snapshot, err := event.New(event.EventActivities, event.ActivitiesPayload{
		Activities: h.presence.Activities(),
	})
	if err != nil {
		h.logger.Error("failed to build activities snapshot", zap.Error(err))
		return
	}
	h.push(c, snapshot)
}

// broadcastOnlineSet sends the full current online set to every open
// connection. Best effort: a connection that cannot take the event in time
// is torn down, never retried, and never aborts the rest of the fan-out.
func (h *Hub) broadcastOnlineSet() {
	ev, err := event.New(event.EventUsersOnline, event.OnlineUsersPayload{
		UserIDs: h.presence.OnlineUserIDs(),
	})
	if err != nil {
		h.logger.Error("failed to build online set event", zap.Error(err))
		return
	}
	h.broadcast(ev)
}

func (h *Hub) broadcast(ev event.WsEvent) {
	for _, c := range h.snapshotClients() {
		h.push(c, ev)
	}
}

// push enqueues without blocking the caller beyond sendTimeout. A stalled
// connection is a transport failure: close and correct presence, do not
// block the source.
func (h *Hub) push(c *Client, ev event.WsEvent) {
	if c.SafeSend(ev, sendTimeout) {
		return
	}
	if c.IsClosed() {
		return
	}

	h.logger.Warn("egress full, disconnecting client",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
	)
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) snapshotClients() []*Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	all := make([]*Client, 0, len(h.clients))
	for _, conns := range h.clients {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	return all
}

func (h *Hub) clientsForUser(userID string) []*Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	conns, ok := h.clients[userID]
	if !ok {
		return nil
	}
	clients := make([]*Client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) sendError(c *Client, code, message string) {
	ev, err := event.New(event.EventError, event.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	h.push(c, ev)
}

// -----------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------

// Stop cancels the hub context and waits for the workers to drain. The
// inbound queues are never closed: read pumps may still be selecting a send
// on them, and their own contexts unblock those sends.
func (h *Hub) Stop() {
	h.cancel()

	for _, c := range h.snapshotClients() {
		c.Close()
	}

	h.wg.Wait()
}

// -----------------------------------------------------------------
// Handshake
// -----------------------------------------------------------------

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "http://localhost:5173":
		return true
	case "https://resono.app":
		return true
	default:
		return false
	}
}

// ServeWS authenticates the handshake and, only on success, upgrades the
// transport and admits the client. A refused connection never touches the
// presence registry.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("handshake rejected", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(userID, conn, h)
}

var errEmptyPayload = errors.New("empty event payload")

func unmarshalPayload(ev event.WsEvent, v any) error {
	if len(ev.Payload) == 0 {
		return errEmptyPayload
	}
	return json.Unmarshal(ev.Payload, v)
}
