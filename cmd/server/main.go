package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pairchat/internal/auth"
	"pairchat/internal/config"
	"pairchat/internal/db"
	"pairchat/internal/handlers"
	"pairchat/internal/middleware"
	"pairchat/internal/observability"
	"pairchat/internal/rabbitmq"
	"pairchat/internal/repositories"
	"pairchat/internal/telemetry"
	"pairchat/internal/tracing"
	"pairchat/internal/ws"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	shutdown, err := tracing.Setup(context.Background(), "pairchat-server", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("tracing setup: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if pub, err := observability.NewAMQPPublisher(cfg.AMQPURL, "pairchat.events"); err != nil {
		log.Printf("observability events disabled: %v", err)
	} else {
		observability.SetPublisher(pub)
		defer pub.Close()
	}

	auditPub := rabbitmq.NewPublisher(cfg.AMQPURL, "pairchat.audit")
	defer auditPub.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.Mode(auditPub))
	audit := telemetry.NewAuditEmitter(auditPub, "audit_log.chat", "pairchat-server", cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokens := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)

	hub := ws.NewHub()
	socketHandler := ws.NewSocketHandler(hub, tokens, messageRepo)

	authHandler := handlers.NewAuthHandler(userRepo, tokens, audit)
	usersHandler := handlers.NewUsersHandler(userRepo)
	chatHandler := handlers.NewChatHandler(messageRepo, userRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pairchat-server"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/users", authMiddleware, usersHandler.List)
	router.GET("/chat/:peer_id", authMiddleware, chatHandler.GetConversation)
	router.GET("/ws", socketHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
