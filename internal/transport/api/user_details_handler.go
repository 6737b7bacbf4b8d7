package api

import (
	"context"
	"net/http"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/gin-gonic/gin"
)

type UserDetailsHandler struct {
	detailsSvs UserDetailsServicer
}

func NewUserDetailsHandler(detailsSvs UserDetailsServicer) *UserDetailsHandler {
	return &UserDetailsHandler{
		detailsSvs: detailsSvs,
	}
}

type UserDetailsParams struct {
	BankName      string `binding:"required,max_bytes=255"  json:"bankName"`
	AccountName   string `binding:"required,max_bytes=255"  json:"accountName"`
	AccountNumber string `binding:"required,account_number" json:"accountNumber"`
}

type UserDetailsResponse struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
}

func newUserDetailsResponse(d *domain.UserDetails) UserDetailsResponse {
	return UserDetailsResponse{
		BankName:      d.Bank,
		AccountName:   d.AccountName,
		AccountNumber: d.AccountNumber,
	}
}

// Create POST RouteGroup + UserRoute. Реквизиты создаются один раз, повтор - 409.
func (h *UserDetailsHandler) Create(c *gin.Context) {
	h.save(c, h.detailsSvs.Create, http.StatusCreated)
}

// Upsert PUT RouteGroup + UserRoute. Создает реквизиты или перезаписывает существующие.
func (h *UserDetailsHandler) Upsert(c *gin.Context) {
	h.save(c, h.detailsSvs.Upsert, http.StatusOK)
}

// Show GET RouteGroup + UserRoute.
func (h *UserDetailsHandler) Show(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	details, err := h.detailsSvs.Get(ctx, getUserIDFromContext(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserDetailsResponse(details))
}

func (h *UserDetailsHandler) save(
	c *gin.Context,
	saveFn func(context.Context, service.UserDetailsArgs) (*domain.UserDetails, error),
	status int,
) {
	var params UserDetailsParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	details, err := saveFn(ctx, service.UserDetailsArgs{
		UserID:        getUserIDFromContext(c),
		Bank:          params.BankName,
		AccountName:   params.AccountName,
		AccountNumber: params.AccountNumber,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(status, newUserDetailsResponse(details))
}
