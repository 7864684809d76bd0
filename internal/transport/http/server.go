package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"docrag/internal/bootstrap"
	mysqlClient "docrag/internal/platform/mysql"
	redisClient "docrag/internal/platform/redis"
	"docrag/internal/transport/http/handler"
	"docrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, healthChecks(app))
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Documents)
	chatHandler := handler.NewChatHandler(app.Chat)
	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	chatLimit := middleware.RateLimit(middleware.NewRateLimiter(app.Config.RateLimit.ChatPerSecond, app.Config.RateLimit.ChatBurst))

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	documentGroup := v1.Group("/documents")
	documentGroup.Use(authJWT)
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)
	documentGroup.POST("/:id/process", documentHandler.Process)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("", chatLimit, chatHandler.Anonymous)
	chatGroup.POST("/rag", authJWT, chatLimit, chatHandler.Grounded)

	return router
}

func healthChecks(app *bootstrap.App) map[string]handler.CheckFunc {
	checks := map[string]handler.CheckFunc{
		"mysql": func(ctx context.Context) error {
			return mysqlClient.Ping(ctx, app.MySQL)
		},
		"rabbitmq": func(context.Context) error {
			if app.MQConn == nil || app.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
		"redis": nil,
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx, app.Redis)
		}
	}
	return checks
}
