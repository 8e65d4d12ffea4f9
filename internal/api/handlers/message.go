package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/dispatch"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

type MessageHandler struct {
	dispatcher *dispatch.Orchestrator
}

func NewMessageHandler(d *dispatch.Orchestrator) *MessageHandler {
	return &MessageHandler{dispatcher: d}
}

// SendMessage handles POST /messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "SendMessage")

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid request body: " + err.Error()})
		return
	}

	rec, err := h.dispatcher.SendSingle(logCtx, userID(c), req.Recipient, req.Message, req.Signature)
	if err == nil {
		c.JSON(http.StatusCreated, rec)
		return
	}
	if rec == nil {
		respondError(c, err)
		return
	}

	// an attempt was made and recorded; return the record with the outcome
	code := errorCode(err)
	body := dto.ErrorResponse{Code: code, Error: errormapper.Message(code, err.Error()), Record: rec}
	if rej, ok := gateway.IsRejected(err); ok {
		body.GatewayCode = rej.Code
		body.Error = rej.Message
	}
	if code == errormapper.ErrorCodeSystemError {
		slog.ErrorContext(logCtx, "Single send failed", slog.Any("error", err))
	}
	c.JSON(errormapper.HTTPStatus(code), body)
}

