package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService UserServicer
}

func NewAuthHandler(userService UserServicer) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

type UserRegisterParams struct {
	Email     string `binding:"required,email,max_bytes=255" json:"email"`
	Password  string `binding:"required,min=6,max=72"        json:"password"`
	FirstName string `binding:"required,max_bytes=100"       json:"firstName"`
	LastName  string `binding:"required,max_bytes=100"       json:"lastName"`
	Phone     string `binding:"omitempty,max_bytes=20"       json:"phone"`
}

type UserResponse struct {
	ID        int64           `json:"id"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Phone     string          `json:"phone,omitempty"`
	Role      domain.RoleType `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// Register POST RouteGroup + RegisterRoute. Регистрирует пользователя и аутентифицирует его.
func (h *AuthHandler) Register(c *gin.Context) {
	var params UserRegisterParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	user, jwtToken, createErr := h.userService.Register(ctx, service.RegisterUserArgs{
		Email:     params.Email,
		Password:  params.Password,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
	})
	if createErr != nil {
		if errors.Is(createErr, domain.ErrDuplicateEmail) {
			_ = c.Error(createErr).SetType(gin.ErrorTypePrivate)
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "user with this email already exists"})
			return
		}
		abortWithError(c, createErr)
		return
	}

	c.Header("Authorization", "Bearer "+jwtToken)
	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user), "token": jwtToken})
}

type UserLoginParams struct {
	Email    string `binding:"required,email"       json:"email"`
	Password string `binding:"required,min=6,max=72" json:"password"`
}

// Login POST RouteGroup + LoginRoute. Аутентификация по паре email/пароль.
func (h *AuthHandler) Login(c *gin.Context) {
	var params UserLoginParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	user, token, err := h.userService.Login(ctx, service.LoginUserArgs{
		Email:    params.Email,
		Password: params.Password,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrPasswordMissMatch) {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		abortWithError(c, err)
		return
	}

	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user), "token": token})
}
