package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Tisha7353/Resono/internal/model"
	"github.com/Tisha7353/Resono/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBlankContent = errors.New("message content cannot be blank")
	ErrBlankUserID  = errors.New("user id cannot be blank")
	ErrSelfMessage  = errors.New("sender and recipient must be distinct")
)

// IsInvalidArgument reports whether err is a caller mistake rather than a
// storage problem, so transports can map it to a 4xx / error frame.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrBlankContent) ||
		errors.Is(err, ErrBlankUserID) ||
		errors.Is(err, ErrSelfMessage)
}

// ChatService is the client-facing surface of the message store plus the
// user directory reads the chat UI needs.
type ChatService interface {
	// SendMessage validates, persists and returns the committed message.
	// It never notifies anyone: delivery is the hub's job, and only after
	// this call has returned without error.
	SendMessage(ctx context.Context, senderID, recipientID, content string) (*model.Message, error)

	// Conversation returns the full message history between the pair in
	// ascending created_at order; an empty slice when none exist.
	Conversation(ctx context.Context, userA, userB string) ([]model.Message, error)

	// ListPartners returns every user except the caller.
	ListPartners(ctx context.Context, selfID string) ([]model.User, error)
}

type chatService struct {
	messages repo.MessageRepository
	users    repo.UserRepository
	logger   *zap.Logger
}

func NewChatService(messages repo.MessageRepository, users repo.UserRepository, logger *zap.Logger) ChatService {
	return &chatService{
		messages: messages,
		users:    users,
		logger:   logger,
	}
}

func (s *chatService) SendMessage(ctx context.Context, senderID, recipientID, content string) (*model.Message, error) {
	senderID = strings.TrimSpace(senderID)
	recipientID = strings.TrimSpace(recipientID)
	if senderID == "" || recipientID == "" {
		return nil, ErrBlankUserID
	}
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrBlankContent
	}

	msg := &model.Message{
		MessageID:   uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Debug("message committed",
		zap.String("message_id", msg.MessageID),
		zap.String("sender_id", msg.SenderID),
		zap.String("recipient_id", msg.RecipientID),
	)

	return msg, nil
}

func (s *chatService) Conversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, ErrBlankUserID
	}
	if userA == userB {
		return nil, ErrSelfMessage
	}

	return s.messages.Conversation(ctx, userA, userB)
}

func (s *chatService) ListPartners(ctx context.Context, selfID string) ([]model.User, error) {
	if strings.TrimSpace(selfID) == "" {
		return nil, ErrBlankUserID
	}

	return s.users.ListExcept(ctx, selfID)
}
