package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents one direct message in MongoDB. Messages are
// append-only: there is no update or delete path anywhere in the service.
type Message struct {
	ID          primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	MessageID   string             `json:"id" bson:"message_id"`
	SenderID    string             `json:"senderId" bson:"sender_id"`
	RecipientID string             `json:"recipientId" bson:"recipient_id"`
	Content     string             `json:"content" bson:"content"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}
