package repo

import (
	"context"
	"time"

	"github.com/Tisha7353/Resono/internal/db"
	"github.com/Tisha7353/Resono/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type UserRepository interface {
	ListExcept(ctx context.Context, userID string) ([]model.User, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// ListExcept returns every user except the caller, newest first. This backs
// the chat partner list, so the caller never sees themselves in it.
func (r *userRepository) ListExcept(ctx context.Context, userID string) ([]model.User, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := db.NewFilter().Ne("user_id", userID).Build()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	users, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list users", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
