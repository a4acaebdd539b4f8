package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cdecaire/desperse-public-sub002/ports"
	"github.com/cdecaire/desperse-public-sub002/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(
	downloads *service.DownloadService,
	sessions *service.SIWSService,
	tokenizer ports.Tokenizer,
	log zerolog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	handlers := NewHandlers(downloads, sessions, log)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
	}

	// Download authorization routes
	assets := router.Group("/assets")
	{
		assets.POST("/:id/nonce", handlers.DownloadNonce)
		assets.POST("/:id/token", handlers.DownloadToken)
		assets.GET("/:id/download", handlers.Download)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(tokenizer))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
