package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/metrics"
	"github.com/draftly/server/internal/shared/middleware"
	"github.com/draftly/server/internal/shared/response"
)

// Handler handles checkout and webhook HTTP requests.
type Handler struct {
	service *Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a payment handler.
func NewHandler(service *Service, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{service: service, metrics: m, logger: logger}
}

// RegisterRoutes registers authenticated billing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/checkout", h.CreateCheckout)
	}
}

// RegisterWebhookRoutes registers the unauthenticated webhook endpoint.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/stripe", h.HandleStripeWebhook)
}

// CheckoutRequest is the payload for starting a credit purchase.
type CheckoutRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// CreateCheckout handles POST /payments/checkout.
func (h *Handler) CreateCheckout(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	url, err := h.service.CreateCheckoutSession(c.Request.Context(), accountID, req.Tier)
	if err != nil {
		if errors.Is(err, ErrUnknownTier) {
			response.BadRequest(c, "unknown credit tier")
			return
		}
		h.logger.Error("checkout session failed", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

// HandleStripeWebhook handles POST /webhooks/stripe. A non-2xx response
// triggers provider redelivery, so only transient failures return one;
// permanently malformed events are acknowledged and dropped.
func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}

	event, err := h.service.VerifySignature(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		h.recordEvent("unknown", "invalid_signature")
		response.BadRequest(c, "invalid signature")
		return
	}

	ctx := c.Request.Context()
	eventType := string(event.Type)

	stored, created, err := h.service.RecordEvent(ctx, event.ID, eventType, string(payload))
	if err != nil {
		h.logger.Error("failed to record webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		h.recordEvent(eventType, "error")
		response.InternalError(c, "")
		return
	}
	if !created {
		// Only a redelivery whose first processing succeeded is skipped.
		// A stored failure (or a crash before MarkProcessed) runs Apply
		// again; the ledger's idempotency key absorbs any double credit.
		if stored.Processed && stored.Error == nil {
			h.logger.Info("webhook event already processed", zap.String("event_id", event.ID))
			h.recordEvent(eventType, "duplicate")
			c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
			return
		}
		h.logger.Warn("reprocessing webhook event after failed attempt",
			zap.String("event_id", event.ID),
		)
	}

	processErr := h.service.Apply(ctx, event)

	switch {
	case processErr == nil:
		h.recordEvent(eventType, "applied")
	case errors.Is(processErr, ledger.ErrAlreadyApplied):
		// The ledger saw this idempotency key before; acknowledge.
		h.recordEvent(eventType, "duplicate")
		processErr = nil
	case errors.Is(processErr, ErrUnresolvedAccount):
		// Permanently malformed; acknowledging stops redelivery.
		h.logger.Error("webhook event dropped",
			zap.String("event_id", event.ID),
			zap.Error(processErr),
		)
		h.recordEvent(eventType, "unresolved")
		processErr = nil
	default:
		h.recordEvent(eventType, "error")
	}

	if err := h.service.MarkProcessed(ctx, event.ID, processErr); err != nil {
		h.logger.Error("failed to mark event processed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}

	if processErr != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", eventType),
			zap.Error(processErr),
		)
		response.InternalError(c, "processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *Handler) recordEvent(eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhookEvent(eventType, outcome)
	}
}
