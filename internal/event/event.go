package event

import "encoding/json"

// Client to server events.
const (
	EventSendMessage    = "send_message"
	EventUpdateActivity = "update_activity"
)

// Server to client events.
const (
	EventUsersOnline     = "users_online"
	EventActivities      = "activities"
	EventActivityUpdated = "activity_updated"
	EventReceiveMessage  = "receive_message"
	EventMessageSent     = "message_sent"
	EventError           = "error"
)

// WsEvent is the envelope for every frame on the realtime channel.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// New wraps a payload into an envelope. A marshal failure here means the
// payload type itself is broken, so it is returned rather than swallowed.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// SendMessagePayload is the body of a send_message frame.
type SendMessagePayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content" validate:"required"`
}

// UpdateActivityPayload is the body of an update_activity frame. An empty
// activity resets the user back to idle.
type UpdateActivityPayload struct {
	Activity string `json:"activity" validate:"max=256"`
}

// OnlineUsersPayload carries the full online set, not a diff, so a freshly
// joined client needs no separate bootstrap call.
type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

// ActivitiesPayload is the userId -> activity snapshot sent on join.
type ActivitiesPayload struct {
	Activities map[string]string `json:"activities"`
}

// ActivityUpdatedPayload announces one user's activity change.
type ActivityUpdatedPayload struct {
	UserID   string `json:"userId"`
	Activity string `json:"activity"`
}

// ErrorPayload reports a failed client event back on the same connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
