package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bag-service/internal/catalog"
	"bag-service/internal/models"
	"bag-service/internal/order"
	"bag-service/internal/service"
	"bag-service/internal/store"
	"bag-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
	sessionKey    = "session_id"
)

// Handler contains HTTP handlers
type Handler struct {
	sessions *service.Manager
	catalog  *catalog.Catalog
	hub      *Hub
	backend  store.Storage
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. backend is pinged by the readiness check.
func NewHandler(sessions *service.Manager, catalog *catalog.Catalog, hub *Hub, backend store.Storage) *Handler {
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		hub:      hub,
		backend:  backend,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, allowedOrigins []string) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(allowedOrigins))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/orders", sessionMiddleware(), h.orderStatusSocket)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/catalog", h.listArtworks)
		v1.GET("/catalog/:id", h.getArtwork)
	}

	session := v1.Group("", sessionMiddleware())
	{
		session.GET("/bag", h.getBag)
		session.POST("/bag/items", h.addItem)
		session.POST("/bag/buy-now", h.buyNow)
		session.DELETE("/bag/items/:id", h.removeItem)
		session.DELETE("/bag", h.clearBag)
		session.POST("/bag/promo", h.applyPromo)

		session.POST("/orders", h.placeOrder)
		session.GET("/orders", h.listOrders)
		session.GET("/orders/status", h.orderStatus)
		session.GET("/orders/export", h.exportOrders)
		session.GET("/orders/:number", h.getOrder)

		session.DELETE("/session", h.closeSession)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the storage backend
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.backend.Get(ctx, "__ready"); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listArtworks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"artworks": h.catalog.All()})
}

func (h *Handler) getArtwork(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	art, found := h.catalog.Find(id)
	if !found {
		h.respondError(c, models.ErrArtworkNotFound)
		return
	}
	c.JSON(http.StatusOK, art)
}

type itemRequest struct {
	ArtworkID int64 `json:"artwork_id" binding:"required"`
}

type promoRequest struct {
	Code string `json:"code"`
}

func (h *Handler) getBag(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.View(c.Request.Context()))
}

func (h *Handler) addItem(c *gin.Context) {
	h.add(c, (*service.BagService).AddItem)
}

func (h *Handler) buyNow(c *gin.Context) {
	h.add(c, (*service.BagService).BuyNow)
}

func (h *Handler) add(c *gin.Context, fn func(*service.BagService, context.Context, int64) (bool, error)) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	svc, ok := h.session(c)
	if !ok {
		return
	}

	added, err := fn(svc, c.Request.Context(), req.ArtworkID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"added": added,
		"bag":   svc.View(c.Request.Context()),
	})
}

func (h *Handler) removeItem(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	svc, ok := h.session(c)
	if !ok {
		return
	}

	removed, err := svc.RemoveItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"bag":     svc.View(c.Request.Context()),
	})
}

func (h *Handler) clearBag(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}

	if err := svc.ClearCart(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bag": svc.View(c.Request.Context())})
}

// applyPromo answers 200 for rejected codes; the result carries the message
func (h *Handler) applyPromo(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	svc, ok := h.session(c)
	if !ok {
		return
	}

	result := svc.ApplyPromo(c.Request.Context(), req.Code)
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"bag":    svc.View(c.Request.Context()),
	})
}

// placeOrder starts a placement; the outcome arrives over /ws/orders or /orders/status
func (h *Handler) placeOrder(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}

	if _, err := svc.PlaceOrder(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": svc.SessionID(),
		"status":     models.OrderStatusPlacing,
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}

	orders, err := svc.Orders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}

	record, err := svc.Order(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) orderStatus(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Status())
}

func (h *Handler) exportOrders(c *gin.Context) {
	svc, ok := h.session(c)
	if !ok {
		return
	}

	orders, err := svc.Orders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")

	if err := WriteOrdersXLSX(c.Writer, orders); err != nil {
		h.logger.Error("Failed to export orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
		return
	}
}

func (h *Handler) closeSession(c *gin.Context) {
	closed := h.sessions.Close(c.GetString(sessionKey))
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

func (h *Handler) orderStatusSocket(c *gin.Context) {
	h.hub.Serve(c, c.GetString(sessionKey))
}

func (h *Handler) session(c *gin.Context) (*service.BagService, bool) {
	svc, err := h.sessions.Get(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return svc, true
}

// respondError maps bag errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	var bagErr *models.Error
	if errors.As(err, &bagErr) {
		status := http.StatusInternalServerError
		switch bagErr.Kind {
		case models.KindValidation:
			status = http.StatusBadRequest
		case models.KindNotFound:
			status = http.StatusNotFound
		case models.KindConflict:
			status = http.StatusConflict
		case models.KindStorage:
			status = http.StatusServiceUnavailable
			h.logger.Error("Storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		}

		c.JSON(status, gin.H{
			"error":     bagErr.Message,
			"kind":      bagErr.Kind,
			"retryable": bagErr.Retryable(),
		})
		return
	}

	if errors.Is(err, service.ErrSessionClosed) || errors.Is(err, order.ErrClosed) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal error",
		"details": err.Error(),
	})
}

func parseID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid artwork ID",
		})
		return 0, false
	}
	return id, true
}

// sessionMiddleware resolves the session from the header, cookie or query.
// Session ids are uuids in canonical form; a missing or malformed id is
// replaced by a new one.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(sessionHeader)
		if raw == "" {
			raw, _ = c.Cookie(sessionCookie)
		}
		if raw == "" {
			raw = c.Query(sessionCookie)
		}

		sessionID := uuid.New().String()
		if id, err := uuid.Parse(raw); err == nil {
			sessionID = id.String()
		} else if raw != "" {
			util.GetLogger().Debug("Replacing malformed session id", zap.Int("length", len(raw)))
		}

		c.Set(sessionKey, sessionID)
		c.Header(sessionHeader, sessionID)
		c.SetCookie(sessionCookie, sessionID, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)
		c.Next()
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", sessionHeader},
		ExposeHeaders:    []string{"Content-Length", sessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
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
