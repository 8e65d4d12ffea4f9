package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/logging"
)

// BalanceReader is satisfied by *ledger.Ledger.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

type BalanceHandler struct {
	ledger BalanceReader
}

func NewBalanceHandler(l BalanceReader) *BalanceHandler {
	return &BalanceHandler{ledger: l}
}

// GetBalance handles GET /balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "GetBalance")
	credits, err := h.ledger.Balance(logCtx, userID(c))
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to read balance", slog.Any("error", err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{UserID: userID(c), Credits: credits})
}
