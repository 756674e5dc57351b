package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterBuilder_Eq_Ne(t *testing.T) {
	req := require.New(t)

	filter := NewFilter().Eq("sender_id", "alice").Ne("recipient_id", "bob").Build()

	req.Equal(bson.M{
		"sender_id":    "alice",
		"recipient_id": bson.M{"$ne": "bob"},
	}, filter)
}

func TestFilterBuilder_Or_Builds_Conversation_Pair(t *testing.T) {
	req := require.New(t)

	filter := NewFilter().Or(
		NewFilter().Eq("sender_id", "alice").Eq("recipient_id", "bob").Build(),
		NewFilter().Eq("sender_id", "bob").Eq("recipient_id", "alice").Build(),
	).Build()

	req.Equal(bson.M{
		"$or": []bson.M{
			{"sender_id": "alice", "recipient_id": "bob"},
			{"sender_id": "bob", "recipient_id": "alice"},
		},
	}, filter)
}

func TestFilterBuilder_Or_Empty_Is_Noop(t *testing.T) {
	require.Equal(t, bson.M{}, NewFilter().Or().Build())
}

func TestFilterBuilder_In_Exists(t *testing.T) {
	req := require.New(t)

	filter := NewFilter().
		In("user_id", []string{"alice", "bob"}).
		Exists("updated_at", false).
		Build()

	req.Equal(bson.M{
		"user_id":    bson.M{"$in": []string{"alice", "bob"}},
		"updated_at": bson.M{"$exists": false},
	}, filter)
}

func TestEmpty(t *testing.T) {
	require.Equal(t, bson.M{}, Empty())
}
