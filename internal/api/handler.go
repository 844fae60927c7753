package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"commerce-api/internal/apperr"
	"commerce-api/internal/models"
	"commerce-api/internal/service"
	"commerce-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is what the handler needs from the order service.
type OrderAPI interface {
	CreateOrder(ctx context.Context, userID string, req *service.CreateOrderRequest) (*models.Order, error)
	GetOrders(ctx context.Context, userID, role string, page, limit int) (*service.OrderList, error)
	GetOrder(ctx context.Context, orderID, userID, role string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.Status) (*models.Order, error)
}

// PaymentAPI is what the handler needs from the payment service.
type PaymentAPI interface {
	CreateIntent(ctx context.Context, orderID, userID string) (*service.CreateIntentResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*service.WebhookAck, error)
}

// Handler contains the HTTP handlers.
type Handler struct {
	orders   OrderAPI
	payments PaymentAPI
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(orders OrderAPI, payments PaymentAPI) *Handler {
	return &Handler{
		orders:   orders,
		payments: payments,
		logger:   util.NamedLogger("http"),
	}
}

// SetupRoutes registers all routes on the router.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Webhook is unauthenticated; the signature is the authentication.
		v1.POST("/payments/webhook", h.paymentWebhook)

		authed := v1.Group("", identityRequired())
		{
			authed.POST("/orders", h.createOrder)
			authed.GET("/orders", h.listOrders)
			authed.GET("/orders/:id", h.getOrder)
			authed.PATCH("/orders/:id/status", adminRequired(), h.updateOrderStatus)
			authed.POST("/payments/create-intent", h.createPaymentIntent)
		}
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// createOrder handles POST /orders.
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), callerID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, order)
}

// listOrders handles GET /orders with ?page=&limit=.
func (h *Handler) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	list, err := h.orders.GetOrders(c.Request.Context(), callerID(c), callerRole(c), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, list)
}

// getOrder handles GET /orders/:id.
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), callerID(c), callerRole(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// updateOrderStatus handles PATCH /orders/:id/status (admin only).
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

type createIntentRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// createPaymentIntent handles POST /payments/create-intent.
func (h *Handler) createPaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	resp, err := h.payments.CreateIntent(c.Request.Context(), req.OrderID, callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

// paymentWebhook handles POST /payments/webhook. The body must reach the
// verifier untouched; any re-serialization breaks the signature.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperr.Validation("unable to read request body"))
		return
	}

	ack, err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, ack)
}

// respondError logs unexpected errors in full and serializes the typed error
// into the envelope. Clients never see internal details.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperr.FromError(err)
	if appErr.Code == apperr.CodeInternal {
		h.logger.Error("Unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	respondWithError(c, appErr)
}

// prometheusMiddleware collects HTTP metrics.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath(), status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), status).Inc()
	}
}
