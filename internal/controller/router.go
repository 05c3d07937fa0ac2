package controller

import (
	"net/http"
	"slices"

	"github.com/amanas96/slot-swapper/internal/controller/handlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HTTPController struct {
	engine   *gin.Engine
	handlers *handlers.Handlers
	verifier handlers.TokenVerifier
	logger   *zap.Logger
}

// NewHTTPController собирает gin engine. allowedOrigins задаёт CORS для браузерного клиента;
// пустой список или "*" разрешает любой origin.
func NewHTTPController(h *handlers.Handlers, verifier handlers.TokenVerifier, allowedOrigins []string, logger *zap.Logger) *HTTPController {
	engine := gin.New()
	engine.Use(gin.Recovery(), handlers.AccessLog(logger), corsMiddleware(allowedOrigins))

	c := &HTTPController{
		engine:   engine,
		handlers: h,
		verifier: verifier,
		logger:   logger,
	}
	c.registerRoutes()
	return c
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	cfg.AddAllowHeaders("Authorization")
	return cors.New(cfg)
}

// registerRoutes регистрирует все маршруты API
func (c *HTTPController) registerRoutes() {
	c.engine.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "SlotSwapper API Running...")
	})
	c.engine.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := c.engine.Group("/api", handlers.RequireUser(c.verifier))

	events := api.Group("/events")
	events.POST("", c.handlers.CreateEvent)
	events.GET("", c.handlers.ListMyEvents)
	events.PUT("/:id", c.handlers.UpdateEvent)
	events.DELETE("/:id", c.handlers.DeleteEvent)

	swap := api.Group("/swap")
	swap.GET("/swappable-slots", c.handlers.SwappableSlots)
	swap.POST("/request", c.handlers.CreateSwapRequest)
	swap.POST("/response/:requestId", c.handlers.RespondToSwapRequest)
	swap.GET("/my-requests", c.handlers.MyRequests)
}

// Handler http.Handler для http.Server
func (c *HTTPController) Handler() http.Handler {
	return c.engine
}
