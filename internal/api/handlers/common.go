package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

const (
	DefaultLimit  = 20
	MaxLimit      = 100
	DefaultOffset = 0

	UserIDHeader = "X-User-ID"
	APIKeyHeader = "X-API-Key"

	userIDKey = "user_id"
)

// parsePagination extracts limit and offset from query params with validation and defaults.
func parsePagination(c *gin.Context) (limit, offset int32) {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(DefaultLimit))
	offsetStr := c.DefaultQuery("offset", strconv.Itoa(DefaultOffset))

	limit64, err := strconv.ParseInt(limitStr, 10, 32)
	if err != nil || limit64 <= 0 {
		limit = DefaultLimit
	} else if limit64 > MaxLimit {
		slog.WarnContext(c.Request.Context(), "Requested limit exceeds maximum, capping.", slog.Int64("requested", limit64), slog.Int("max", MaxLimit))
		limit = MaxLimit
	} else {
		limit = int32(limit64)
	}

	offset64, err := strconv.ParseInt(offsetStr, 10, 32)
	if err != nil || offset64 < 0 {
		offset = DefaultOffset
	} else {
		offset = int32(offset64)
	}

	return limit, offset
}

// parseIDParam reads a positive int64 path parameter.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequireUser takes the caller's identity from the header set by the upstream
// auth layer and puts it on the request context for logging.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(UserIDHeader)
		if id == "" {
			abortWithCode(c, errormapper.ErrorCodeUnauthorized, "missing "+UserIDHeader+" header")
			return
		}
		c.Set(userIDKey, id)
		c.Request = c.Request.WithContext(logging.ContextWithUserID(c.Request.Context(), id))
		c.Next()
	}
}
