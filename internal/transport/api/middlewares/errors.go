package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/gin-gonic/gin"
)

const partialFailureMessage = "operation partially applied, reconciliation required"

func statusErrorText(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusPaymentRequired:
		return "payment rejected"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not found"
	case http.StatusUnprocessableEntity:
		return "unprocessable entity"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "too many requests"
	case http.StatusBadGateway:
		return "payment gateway failure"
	default:
		return "internal server error"
	}
}

// StatusFromError переводит ошибку сервисного слоя в http статус.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrPartialFailure):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPasswordMissMatch):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Errors отдает клиенту первую ошибку из c.Errors. Текст публичных ошибок отдается как есть, вместо приватных
// отдается текст статуса. Ошибка валидации дополняется полем fields.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// тело уже отдано хендлером.
		if len(c.Errors) == 0 || c.Writer.Size() > 0 {
			return
		}

		// обрабатываем только первую ошибку
		firstErr := c.Errors[0]
		status := c.Writer.Status()

		body := gin.H{}
		var validationErr *domain.ValidationError
		var partialErr *domain.PartialFailureError
		switch {
		case errors.As(firstErr.Err, &validationErr):
			body["error"] = domain.ErrValidation.Error()
			body["fields"] = validationErr.Fields
		case errors.As(firstErr.Err, &partialErr):
			body["error"] = partialFailureMessage
			body["investmentID"] = partialErr.InvestmentID
		case firstErr.IsType(gin.ErrorTypePublic):
			body["error"] = firstErr.Error()
		default:
			body["error"] = statusErrorText(status)
		}

		accept := c.GetHeader("Accept")
		if strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json") {
			c.String(status, "%v", body["error"])
		} else {
			c.JSON(status, body)
		}
		c.Abort()
	}
}
