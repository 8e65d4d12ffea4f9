package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/auth"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/payment"
	"github.com/thrillee/bulksms/internal/reconcile"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

const maxWebhookBody = 1 << 20

// RequireWebhookKey checks X-API-Key (or ?api_key=) against the configured hash.
func RequireWebhookKey(v *auth.KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Next()
			return
		}
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			key = c.Query("api_key")
		}
		if !v.Verify(key) {
			slog.WarnContext(c.Request.Context(), "Webhook rejected: bad API key", slog.String("path", c.FullPath()))
			abortWithCode(c, errormapper.ErrorCodeUnauthorized, "invalid API key")
			return
		}
		c.Next()
	}
}

type WebhookHandler struct {
	reconciler *reconcile.Reconciler
	payments   *payment.Service
}

func NewWebhookHandler(r *reconcile.Reconciler, p *payment.Service) *WebhookHandler {
	return &WebhookHandler{reconciler: r, payments: p}
}

// DeliveryReport handles POST /webhooks/delivery. Unknown message ids are
// acknowledged so the gateway stops retrying them.
func (h *WebhookHandler) DeliveryReport(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "DeliveryReport")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	cb, err := gateway.ParseCallback(c.Request)
	if err != nil {
		slog.WarnContext(logCtx, "Malformed delivery callback", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: err.Error()})
		return
	}
	logCtx = logging.ContextWithMessageID(logCtx, cb.MessageID)

	result, err := h.reconciler.Apply(logCtx, cb)
	switch {
	case errors.Is(err, reconcile.ErrUnknownMessage):
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "unknown message id"})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"status": result})
	}
}

// PaymentCallback handles POST /webhooks/payments/:provider
func (h *WebhookHandler) PaymentCallback(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "PaymentCallback")
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "failed to read body"})
		return
	}

	res, err := h.payments.HandleCallback(logCtx, provider, body)
	if err != nil {
		slog.WarnContext(logCtx, "Payment callback not applied", slog.String("provider", provider), slog.Any("error", err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
