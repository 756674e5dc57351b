package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tisha7353/Resono/internal/event"
	"github.com/Tisha7353/Resono/internal/model"
	"github.com/Tisha7353/Resono/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sendCall struct {
	senderID    string
	recipientID string
	content     string
}

type fakeChat struct {
	calls []sendCall
	err   error
}

func (f *fakeChat) SendMessage(_ context.Context, senderID, recipientID, content string) (*model.Message, error) {
	f.calls = append(f.calls, sendCall{senderID, recipientID, content})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{
		MessageID:   uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (f *fakeChat) Conversation(context.Context, string, string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeChat) ListPartners(context.Context, string) ([]model.User, error) {
	return nil, nil
}

func newTestHub(t *testing.T, chat service.ChatService) *Hub {
	t.Helper()
	h := NewHub(NewPresence(), chat, nil, zap.NewNop())
	t.Cleanup(h.Stop)
	return h
}

// newTestClient builds a client without a transport. The write pump never
// runs, so events accumulate in the egress buffer for assertions.
func newTestClient(h *Hub, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:         uuid.NewString(),
		userID:     userID,
		openedAt:   time.Now(),
		hub:        h,
		egress:     make(chan event.WsEvent, sendBufSize),
		logger:     zap.NewNop(),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}
	c.connClosedOnce.Do(func() { close(c.connClosed) })
	return c
}

func nextEvent(t *testing.T, c *Client) event.WsEvent {
	t.Helper()
	select {
	case ev, ok := <-c.egress:
		if !ok {
			t.Fatal("egress closed while waiting for event")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return event.WsEvent{}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev, ok := <-c.egress:
		if ok {
			t.Fatalf("unexpected event %q on egress", ev.Event)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func onlineSet(t *testing.T, ev event.WsEvent) []string {
	t.Helper()
	require.Equal(t, event.EventUsersOnline, ev.Event)
	var payload event.OnlineUsersPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	return payload.UserIDs
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestHub_Join_Broadcasts_Full_Online_Set(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})

	// When alice joins
	alice := newTestClient(h, "alice")
	h.addClient(alice)

	// Then she gets the activities snapshot plus the full online set
	req.Equal(event.EventActivities, nextEvent(t, alice).Event)
	req.Equal([]string{"alice"}, onlineSet(t, nextEvent(t, alice)))

	// When bob joins, both see {alice, bob}: bob needs no bootstrap call
	bob := newTestClient(h, "bob")
	h.addClient(bob)

	req.Equal([]string{"alice", "bob"}, onlineSet(t, nextEvent(t, alice)))
	req.Equal(event.EventActivities, nextEvent(t, bob).Event)
	req.Equal([]string{"alice", "bob"}, onlineSet(t, nextEvent(t, bob)))

	// When alice disconnects, bob sees {bob}
	h.removeClient(alice)
	req.Equal([]string{"bob"}, onlineSet(t, nextEvent(t, bob)))
	req.False(h.presence.IsOnline("alice"))
}

func TestHub_Second_Tab_Keeps_User_Online(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})

	tab1 := newTestClient(h, "alice")
	tab2 := newTestClient(h, "alice")
	h.addClient(tab1)
	h.addClient(tab2)

	// Closing one tab keeps alice in the online set
	h.removeClient(tab1)
	req.True(h.presence.IsOnline("alice"))

	// Closing the last one takes her offline with no zombie entry
	h.removeClient(tab2)
	req.False(h.presence.IsOnline("alice"))
	req.Empty(h.presence.OnlineUserIDs())
}

func TestHub_RemoveClient_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})

	alice := newTestClient(h, "alice")
	h.addClient(alice)
	h.removeClient(alice)
	h.removeClient(alice)

	req.False(h.presence.IsOnline("alice"))
}

func TestHub_SendMessage_Delivers_After_Commit(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	drain(alice)
	drain(bob)

	h.handleSendMessage(event.WsEvent{
		Event:   event.EventSendMessage,
		Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "bob", Content: "hi"}),
	}, alice)

	// The store committed first
	req.Equal([]sendCall{{"alice", "bob", "hi"}}, chat.calls)

	// bob's connection receives the committed message
	ev := nextEvent(t, bob)
	req.Equal(event.EventReceiveMessage, ev.Event)
	var msg model.Message
	req.NoError(json.Unmarshal(ev.Payload, &msg))
	req.Equal("hi", msg.Content)
	req.Equal("alice", msg.SenderID)
	req.NotEmpty(msg.MessageID)

	// the originating connection gets the ack
	ack := nextEvent(t, alice)
	req.Equal(event.EventMessageSent, ack.Event)
}

func TestHub_SendMessage_Offline_Recipient_No_Push(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	h.addClient(alice)
	drain(alice)

	h.handleSendMessage(event.WsEvent{
		Event:   event.EventSendMessage,
		Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "bob", Content: "hi"}),
	}, alice)

	// Stored anyway; the message surfaces on bob's next history read
	req.Len(chat.calls, 1)

	// alice only sees her ack, no delivery to anyone else happened
	req.Equal(event.EventMessageSent, nextEvent(t, alice).Event)
	requireNoEvent(t, alice)
}

func TestHub_SendMessage_Storage_Failure_No_Delivery(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{err: errors.New("mongo is down")}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	drain(alice)
	drain(bob)

	h.handleSendMessage(event.WsEvent{
		Event:   event.EventSendMessage,
		Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "bob", Content: "hi"}),
	}, alice)

	// Never notify without a durable write
	requireNoEvent(t, bob)

	ev := nextEvent(t, alice)
	req.Equal(event.EventError, ev.Event)
	var errPayload event.ErrorPayload
	req.NoError(json.Unmarshal(ev.Payload, &errPayload))
	req.Equal("storage_failure", errPayload.Code)
}

func TestHub_SendMessage_Invalid_Argument(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{err: service.ErrSelfMessage}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	h.addClient(alice)
	drain(alice)

	h.handleSendMessage(event.WsEvent{
		Event:   event.EventSendMessage,
		Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "alice", Content: "hi"}),
	}, alice)

	ev := nextEvent(t, alice)
	req.Equal(event.EventError, ev.Event)
	var errPayload event.ErrorPayload
	req.NoError(json.Unmarshal(ev.Payload, &errPayload))
	req.Equal("invalid_argument", errPayload.Code)
}

func TestHub_SendMessage_Malformed_Payload_Rejected(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	h.addClient(alice)
	drain(alice)

	h.handleSendMessage(event.WsEvent{
		Event:   event.EventSendMessage,
		Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "", Content: "hi"}),
	}, alice)

	// Rejected before the store is touched: no partial state
	req.Empty(chat.calls)
	req.Equal(event.EventError, nextEvent(t, alice).Event)
}

func TestHub_Delivery_Preserves_Commit_Order(t *testing.T) {
	req := require.New(t)
	chat := &fakeChat{}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	drain(alice)
	drain(bob)

	for _, content := range []string{"first", "second", "third"} {
		h.handleSendMessage(event.WsEvent{
			Event:   event.EventSendMessage,
			Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "bob", Content: content}),
		}, alice)
	}

	for _, want := range []string{"first", "second", "third"} {
		ev := nextEvent(t, bob)
		req.Equal(event.EventReceiveMessage, ev.Event)
		var msg model.Message
		req.NoError(json.Unmarshal(ev.Payload, &msg))
		req.Equal(want, msg.Content)
	}
}

// slowChat commits synchronously, then stalls before returning, the way a
// slow store round trip would.
type slowChat struct {
	mu      sync.Mutex
	commits []string
	delays  map[string]time.Duration
}

func (f *slowChat) SendMessage(_ context.Context, senderID, recipientID, content string) (*model.Message, error) {
	f.mu.Lock()
	f.commits = append(f.commits, content)
	f.mu.Unlock()

	if d := f.delays[content]; d > 0 {
		time.Sleep(d)
	}
	return &model.Message{
		MessageID:   uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (f *slowChat) Conversation(context.Context, string, string) ([]model.Message, error) {
	return nil, nil
}

func (f *slowChat) ListPartners(context.Context, string) ([]model.User, error) {
	return nil, nil
}

func (f *slowChat) commitOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commits...)
}

func TestHub_Same_Connection_Frames_Processed_In_Arrival_Order(t *testing.T) {
	req := require.New(t)
	chat := &slowChat{delays: map[string]time.Duration{"first": 150 * time.Millisecond}}
	h := newTestHub(t, chat)

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	drain(alice)
	drain(bob)

	// Two frames from the same connection, the second enqueued while the
	// first store round trip is still in flight. The connection's worker
	// queue keeps them on one worker, so the slow commit cannot be
	// overtaken.
	for _, content := range []string{"first", "second"} {
		h.inboundQueue(alice) <- inboundEvent{
			client: alice,
			event: event.WsEvent{
				Event:   event.EventSendMessage,
				Payload: rawPayload(t, event.SendMessagePayload{RecipientID: "bob", Content: content}),
			},
		}
	}

	// The recipient sees pushes in commit order
	for _, want := range []string{"first", "second"} {
		ev := nextEvent(t, bob)
		req.Equal(event.EventReceiveMessage, ev.Event)
		var msg model.Message
		req.NoError(json.Unmarshal(ev.Payload, &msg))
		req.Equal(want, msg.Content)
	}
	req.Equal([]string{"first", "second"}, chat.commitOrder())
}

func TestClient_Close_During_SafeSend_Does_Not_Panic(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})
	c := newTestClient(h, "alice")

	ev, err := event.New(event.EventUsersOnline, event.OnlineUsersPayload{UserIDs: []string{"alice"}})
	req.NoError(err)

	// Broadcasters hammer the egress while the connection shuts down; a
	// sender caught between the closed check and the enqueue must not
	// bring the worker down.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.SafeSend(ev, time.Millisecond)
			}
		}()
	}
	c.Close()
	wg.Wait()

	req.False(c.SafeSend(ev, time.Millisecond))
}

func TestHub_Stop_Returns_With_Queued_Inbound_Frames(t *testing.T) {
	h := NewHub(NewPresence(), &fakeChat{}, nil, zap.NewNop())

	alice := newTestClient(h, "alice")
	h.addClient(alice)
	drain(alice)

	// Frames may still be in flight when shutdown starts; Stop must come
	// back without draining or closing their queues.
	for i := 0; i < 8; i++ {
		h.inboundQueue(alice) <- inboundEvent{
			client: alice,
			event: event.WsEvent{
				Event:   event.EventUpdateActivity,
				Payload: rawPayload(t, event.UpdateActivityPayload{Activity: "Playing something"}),
			},
		}
	}

	done := make(chan struct{})
	go func() {
		h.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestHub_UpdateActivity_Broadcast(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	drain(alice)
	drain(bob)

	h.handleUpdateActivity(event.WsEvent{
		Event:   event.EventUpdateActivity,
		Payload: rawPayload(t, event.UpdateActivityPayload{Activity: "Playing Fix You by Coldplay"}),
	}, alice)

	for _, c := range []*Client{alice, bob} {
		ev := nextEvent(t, c)
		req.Equal(event.EventActivityUpdated, ev.Event)
		var payload event.ActivityUpdatedPayload
		req.NoError(json.Unmarshal(ev.Payload, &payload))
		req.Equal("alice", payload.UserID)
		req.Equal("Playing Fix You by Coldplay", payload.Activity)
	}
}

func TestHub_UpdateActivity_After_Disconnect_Dropped(t *testing.T) {
	h := newTestHub(t, &fakeChat{})

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice)
	h.addClient(bob)
	h.removeClient(alice)
	drain(bob)

	h.handleUpdateActivity(event.WsEvent{
		Event:   event.EventUpdateActivity,
		Payload: rawPayload(t, event.UpdateActivityPayload{Activity: "Playing something"}),
	}, alice)

	// Late write after disconnect: nothing is announced
	requireNoEvent(t, bob)
}

func TestMonitorService_Stats(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t, &fakeChat{})

	req.Equal("idle", NewMonitorService(h).GetStats().Status)

	alice1 := newTestClient(h, "alice")
	alice2 := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.addClient(alice1)
	h.addClient(alice2)
	h.addClient(bob)
	h.presence.SetActivity("bob", "Playing Paradise by Coldplay")

	stats := NewMonitorService(h).GetStats()
	req.Equal("healthy", stats.Status)
	req.Equal(2, stats.Connections.TotalUsers)
	req.Equal(3, stats.Connections.TotalConnections)
	req.Len(stats.Users, 2)
	req.Equal("alice", stats.Users[0].UserID)
	req.Equal(2, stats.Users[0].Connections)
	req.Equal("Playing Paradise by Coldplay", stats.Users[1].Activity)
}

func drain(c *Client) {
	for {
		select {
		case <-c.egress:
		default:
			return
		}
	}
}
