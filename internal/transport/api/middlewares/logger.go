package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"
)

// Logger пишет в лог каждый запрос. Каждому запросу присваивается id: берется из заголовка X-Request-ID
// или генерируется, и возвращается клиенту в том же заголовке.
func Logger(l *logrus.Logger) gin.HandlerFunc {
	entry := l.WithFields(logrus.Fields{
		"component": "transport",
		"module":    "http",
	})
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := logrus.Fields{
			"requestID": requestID,
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"size":      c.Writer.Size(),
		}
		if userID, ok := c.Get(CurrentUserIDKey); ok {
			fields["userID"] = userID
		}
		le := entry.WithFields(fields)

		if len(c.Errors) > 0 {
			le = le.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500: //nolint:mnd
			le.Error("request")
		case status >= 400: //nolint:mnd
			le.Warn("request")
		default:
			le.Info("request")
		}
	}
}
