package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Tisha7353/Resono/internal/auth"
	"github.com/Tisha7353/Resono/internal/db"
	"github.com/Tisha7353/Resono/internal/handler"
	"github.com/Tisha7353/Resono/internal/hub"
	"github.com/Tisha7353/Resono/internal/model"
	"github.com/Tisha7353/Resono/internal/repo"
	"github.com/Tisha7353/Resono/internal/service"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Container struct {
	ChatHandler  handler.ChatHandler
	Hub          *hub.Hub
	TokenService *auth.TokenService
	Config       Config
	Logger       *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	messageMongoRepo := db.NewRepository[model.Message](con, config.Mongo.MessagesCollection)
	userMongoRepo := db.NewRepository[model.User](con, config.Mongo.UsersCollection)

	if err := ensureIndexes(messageMongoRepo); err != nil {
		return nil, fmt.Errorf("failed to ensure message indexes: %w", err)
	}

	messageRepo := repo.NewMessageRepository(messageMongoRepo, logger)
	userRepo := repo.NewUserRepository(userMongoRepo, logger)
	chatService := service.NewChatService(messageRepo, userRepo, logger)
	chatHandler := handler.NewChatHandler(chatService)

	tokenService := auth.NewTokenService(config.Auth.JwtSecret, config.Auth.Issuer)

	presence := hub.NewPresence()
	h := hub.NewHub(presence, chatService, tokenService, logger)

	return &Container{
		ChatHandler:  chatHandler,
		Hub:          h,
		TokenService: tokenService,
		Config:       *config,
		Logger:       logger,
		mongoClient:  con,
	}, nil
}

// ensureIndexes backs the two conversation query shapes: the pair filter
// sorted by created_at, and the unique message id.
func ensureIndexes(messages *db.Repository[model.Message]) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return messages.EnsureIndexes(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sender_id", Value: 1},
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
