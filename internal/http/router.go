package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simple-gpt/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	verifier *service.IdentityVerifier,
	convH *ConversationHandler,
	usageH *UsageHandler,
	chatH *ChatHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	conversations := r.Group("/conversations", RequireAuth(verifier))
	conversations.GET("", convH.List)
	conversations.POST("", convH.Create)
	conversations.GET("/:id", convH.Get)
	conversations.PATCH("/:id", convH.Update)
	conversations.DELETE("/:id", convH.Delete)

	usage := r.Group("/usage", RequireAuth(verifier))
	usage.GET("/current", usageH.Current)
	usage.POST("/increment", usageH.Increment)

	r.GET("/subscriptions/current", RequireAuth(verifier), usageH.Subscription)

	// El chat admite anónimos: la prueba gratuita se resuelve adentro.
	r.POST("/chat", OptionalAuth(verifier), chatH.Chat)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
