package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. The documents are written by
// the identity-provider sync job; this service only reads them to build the
// chat partner list.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	FullName  string             `json:"fullName" bson:"full_name"`
	ImageURL  string             `json:"imageUrl" bson:"image_url"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt *time.Time         `json:"updatedAt" bson:"updated_at"`
}
