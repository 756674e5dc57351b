package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tisha7353/Resono/internal/db"
	"github.com/Tisha7353/Resono/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrInvalidUserID    = errors.New("invalid user id: cannot be empty")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) error
	Conversation(ctx context.Context, userA, userB string) ([]model.Message, error)
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

// InsertMessage durably appends one message. It returns only after the
// write is committed; callers must not notify recipients before then.
func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) error {
	if err := m.validateMessage(msg); err != nil {
		return err
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return err
			}
		}

		_, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			m.logger.Info("message inserted",
				zap.String("message_id", msg.MessageID),
				zap.String("sender_id", msg.SenderID),
				zap.String("recipient_id", msg.RecipientID),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err

		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("message_id", msg.MessageID),
	)

	return fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Conversation
// -----------------------------------------------------------------------------

// Conversation returns every message exchanged between the pair, both
// directions, oldest first. Ties on created_at resolve by insertion order
// via the _id tiebreak, so every read sees the identical sequence.
func (m *messageRepository) Conversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	if userA == "" || userB == "" {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		db.NewFilter().Eq("sender_id", userA).Eq("recipient_id", userB).Build(),
		db.NewFilter().Eq("sender_id", userB).Eq("recipient_id", userA).Build(),
	).Build()

	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying conversation read",
				zap.String("user_a", userA),
				zap.String("user_b", userB),
				zap.Int("attempt", attempt+1),
			)
		}

		messages, err := m.mongoRepo.FindAll(ctx, filter, opts)
		if err == nil {
			m.logger.Debug("conversation read",
				zap.String("user_a", userA),
				zap.String("user_b", userB),
				zap.Int("count", len(messages)),
			)
			if messages == nil {
				messages = []model.Message{}
			}
			return messages, nil
		}

		lastErr = err

		if !m.isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, userA, userB)
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) validateMessage(msg *model.Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	if msg.SenderID == "" || msg.RecipientID == "" {
		return ErrInvalidUserID
	}
	return nil
}

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	return false
}

func (m *messageRepository) handleReadError(err error, userA, userB string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("user_a", userA), zap.String("user_b", userB))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("user_a", userA), zap.String("user_b", userB))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("user_a", userA), zap.String("user_b", userB))
	return fmt.Errorf("conversation read failed: %w", err)
}
