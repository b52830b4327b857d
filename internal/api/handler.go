package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"assistant-service/internal/service"
	"assistant-service/internal/store"
	"assistant-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RateLimiter counts chat requests per user within a rolling window
type RateLimiter interface {
	IncrChatCount(ctx context.Context, userID string, windowSeconds int) (int64, error)
}

// Handler contains HTTP handlers
type Handler struct {
	chatService     *service.ChatService
	purchaseService *service.PurchaseService
	store           *store.Store
	limiter         RateLimiter
	rateLimit       int64
	rateWindowSecs  int
}

// NewHandler creates a new HTTP handler. limiter may be nil to disable
// chat rate limiting.
func NewHandler(
	chatService *service.ChatService,
	purchaseService *service.PurchaseService,
	st *store.Store,
	limiter RateLimiter,
	rateLimit int64,
	rateWindowSecs int,
) *Handler {
	return &Handler{
		chatService:     chatService,
		purchaseService: purchaseService,
		store:           st,
		limiter:         limiter,
		rateLimit:       rateLimit,
		rateWindowSecs:  rateWindowSecs,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", h.chat)
		v1.GET("/stores/:storeId/products", h.listProducts)
		v1.POST("/purchases", h.createPurchase)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// chat handles one assistant conversation turn. The orchestrator never
// errors: failures surface as the fallback message with HTTP 200, so
// the chat UI has exactly one response shape to render.
func (h *Handler) chat(c *gin.Context) {
	var req service.ChatRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if !h.allowChat(c.Request.Context(), req.UserID) {
		util.ChatRateLimitedTotal.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many chat requests, please slow down",
		})
		return
	}

	resp := h.chatService.Chat(c.Request.Context(), &req)
	c.JSON(http.StatusOK, resp)
}

// allowChat applies the per-user rate limit. Redis failures fail open:
// losing rate limiting is better than losing chat.
func (h *Handler) allowChat(ctx context.Context, userID string) bool {
	if h.limiter == nil || h.rateLimit <= 0 {
		return true
	}

	count, err := h.limiter.IncrChatCount(ctx, userID, h.rateWindowSecs)
	if err != nil {
		util.GetLogger().Warn("Rate limit check failed, allowing request",
			zap.String("user_id", userID),
			zap.Error(err))
		return true
	}

	return count <= h.rateLimit
}

// listProducts returns the active catalog for the store product grid
func (h *Handler) listProducts(c *gin.Context) {
	storeID := c.Param("storeId")

	products, err := h.store.ListActiveProducts(c.Request.Context(), storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// createPurchase books a simulated purchase of the client-side cart
func (h *Handler) createPurchase(c *gin.Context) {
	var req service.PurchaseRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.purchaseService.CreatePurchase(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Failed to create purchase",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
