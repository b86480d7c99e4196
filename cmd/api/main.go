package main

import (
	"context"
	"log"
	"time"

	"support-chat/config"
	"support-chat/internal/events"
	"support-chat/internal/handler"
	"support-chat/internal/middleware"
	"support-chat/internal/outbox"
	"support-chat/internal/rabbitmq"
	chatredis "support-chat/internal/redis"
	"support-chat/internal/repository"
	"support-chat/internal/server"
	"support-chat/internal/services"
	"support-chat/internal/websocket"
	"support-chat/pkg/database"
	"support-chat/pkg/logger"

	"go.uber.org/zap"
)

// presenceTTL bounds how long a crashed instance can keep a user online.
const presenceTTL = 2 * time.Minute

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	database.Connect(cfg)
	defer database.Close()

	if err := repository.InitSchema(database.DB); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)
	wsLogger := websocket.NewLogger(l)

	var (
		realtime events.Publisher = hub
		tracker  services.PresenceTracker
		limiter  *chatredis.RateLimiter
	)

	if cfg.RedisEnabled() {
		client, err := chatredis.Connect(ctx, chatredis.ConfigFrom(cfg))
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()

		realtime = chatredis.NewPublisher(client)
		tracker = chatredis.NewPresenceStore(client, presenceTTL)

		rl := chatredis.DefaultRateLimitConfig()
		rl.MessageLimit = cfg.RateLimitMessages
		rl.AuthLimit = cfg.RateLimitAuth
		limiter = chatredis.NewRateLimiter(client, rl)

		go websocket.NewRedisBridge(chatredis.NewSubscriber(client), hub, wsLogger).Run(ctx)
		l.Info(ctx, "redis fan-out enabled", zap.String("addr", chatredis.ConfigFrom(cfg).Addr()))
	} else {
		tracker = services.NewMemoryPresence()
		l.Info(ctx, "redis disabled, using in-process fan-out")
	}

	db := database.DB
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Integration events go through the transactional outbox unless it is
	// switched off, in which case they are published right after commit.
	publisher := services.NewEventPublisher(realtime, nil, l)
	if cfg.RabbitMQURL != "" {
		broker, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatalf("Failed to connect to rabbitmq: %v", err)
		}
		defer broker.Close()

		if cfg.OutboxEnabled {
			publisher = services.NewOutboxEventPublisher(realtime, l)
			outbox.NewRunner(outbox.DefaultProcessor(repository.NewOutboxRepository(db), broker, l)).Start(ctx)
		} else {
			publisher = services.NewEventPublisher(realtime, broker, l)
		}
		l.Info(ctx, "integration events enabled", zap.String("exchange", cfg.RabbitMQExchange), zap.Bool("outbox", cfg.OutboxEnabled))
	}

	authService := services.NewAuthService(userRepo, convRepo, cfg)
	convService := services.NewConversationService(db, userRepo, convRepo)
	messageService := services.NewMessageService(db, userRepo, convRepo, messageRepo, publisher, l)
	presenceService := services.NewPresenceService(tracker, userRepo, publisher, l)

	socketDeps := websocket.HandlerDeps{
		Auth:           authService,
		Messages:       messageService,
		Presence:       presenceService,
		Publisher:      publisher,
		Authorizer:     websocket.NewChannelAuthorizer(convService),
		Hub:            hub,
		Logger:         wsLogger,
		BaseContext:    ctx,
		AllowedOrigins: cfg.CORSOrigins,
	}
	var httpLimiter middleware.RateLimiter
	if limiter != nil {
		socketDeps.Limiter = limiter
		httpLimiter = limiter
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth: handler.NewAuthHandler(authService, handler.CookieConfig{
			Secure: cfg.CookieSecure,
			MaxAge: cfg.RefreshExpiry * 24 * 60 * 60,
		}),
		Messages:      handler.NewMessageHandler(messageService),
		Conversations: handler.NewConversationHandler(convService),
		Presence:      handler.NewPresenceHandler(presenceService),
		Socket:        websocket.NewHandler(socketDeps),
	}, authService, httpLimiter, nil)

	if err := srv.Start(ctx); err != nil {
		l.Errorf("server stopped: %v", err)
	}
}
