package middleware

import (
	"log/slog"

	"glxy/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

// RequestID tags every request with an id (taken from the caller when it
// sends one) and stores a logger carrying it in the request context.
func RequestID(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = logger.Get()
	}
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)

		l := base.With("request_id", id)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), l))
		c.Next()
	}
}
