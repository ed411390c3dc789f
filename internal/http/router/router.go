package router

import (
	"github.com/gin-gonic/gin"

	"github.com/icagency/secretary/internal/http/handler/webhook"
	"github.com/icagency/secretary/internal/queue"
)

type RouterConfig struct {
	ServiceName    string
	ServiceVersion string
}

func SetupRoutes(router *gin.Engine, producer queue.Producer, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": cfg.ServiceName,
			"version": cfg.ServiceVersion,
		})
	})

	unipileHandler := webhook.NewUnipileWebhookHandler(producer)
	router.POST("/webhooks/unipile", unipileHandler.HandleEvent)
}
