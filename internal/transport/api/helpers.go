package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// getUserIDFromContext берет из контекста gin ID текущего юзера. ID устанавливается в
// middlewares.AuthRequired. В случае, если значения в контексте нет или ошибка утверждения типа -
// вернется 0.
func getUserIDFromContext(c *gin.Context) int64 {
	userID, exist := c.Get(middlewares.CurrentUserIDKey)
	if !exist {
		return 0
	}
	id, ok := userID.(int64)
	if !ok {
		return 0
	}
	return id
}

func isAdminFromContext(c *gin.Context) bool {
	role, _ := c.Get(middlewares.CurrentUserRoleKey)
	return role == domain.RoleAdmin
}

// idParam читает положительный числовой параметр пути name. Некорректное значение - ошибка валидации.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		abortWithError(c, domain.NewValidationError(map[string]string{name: "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// abortWithError прерывает запрос с ошибкой сервисного слоя. Статус подбирается по виду ошибки,
// текст внутренних ошибок клиенту не отдается.
func abortWithError(c *gin.Context, err error) {
	status := middlewares.StatusFromError(err)
	errType := gin.ErrorTypePublic
	if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrPartialFailure) {
		errType = gin.ErrorTypePrivate
	}
	_ = c.Error(err).SetType(errType)
	c.Status(status)
	c.Abort()
}

// abortWithBindError прерывает запрос с ошибкой разбора тела. Нарушения тэгов binding отдаются как ошибка
// валидации по полям, остальное - 400.
func abortWithBindError(c *gin.Context, bindErr error) {
	var valErrs validator.ValidationErrors
	if errors.As(bindErr, &valErrs) {
		fields := make(map[string]string, len(valErrs))
		for _, fe := range valErrs {
			fields[fe.Field()] = "failed on the '" + fe.Tag() + "' rule"
		}
		abortWithError(c, domain.NewValidationError(fields))
		return
	}
	_ = c.Error(bindErr).SetType(gin.ErrorTypeBind)
	c.Status(http.StatusBadRequest)
	c.Abort()
}
