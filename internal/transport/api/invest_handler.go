package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type InvestHandler struct {
	ledger    LedgerServicer
	lifecycle LifecycleServicer
	payouts   PayoutServicer
	// lifecycleTimeout срок покупки и отмены. Должен покрывать запрос к платежному шлюзу.
	lifecycleTimeout time.Duration
}

func NewInvestHandler(
	ledger LedgerServicer,
	lifecycle LifecycleServicer,
	payouts PayoutServicer,
	lifecycleTimeout time.Duration,
) *InvestHandler {
	if lifecycleTimeout <= 0 {
		lifecycleTimeout = DefaultLifecycleTimeout
	}
	return &InvestHandler{
		ledger:           ledger,
		lifecycle:        lifecycle,
		payouts:          payouts,
		lifecycleTimeout: lifecycleTimeout,
	}
}

type InvestmentResponse struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	PackageID int64           `json:"packageId"`
	Units     int64           `json:"units"`
	TxRef     string          `json:"txRef"`
	Amount    decimal.Decimal `json:"amount"`
	DueAmount decimal.Decimal `json:"dueAmount"`
	DueDate   time.Time       `json:"dueDate"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newInvestmentResponse(inv *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:        inv.ID,
		UserID:    inv.UserID,
		PackageID: inv.PackageID,
		Units:     inv.Units,
		TxRef:     inv.TxRef,
		Amount:    inv.Amount,
		DueAmount: inv.DueAmount,
		DueDate:   inv.DueDate,
		CreatedAt: inv.CreatedAt,
	}
}

func newInvestmentsResponse(investments []domain.Investment) []InvestmentResponse {
	response := make([]InvestmentResponse, len(investments))
	for i := range investments {
		response[i] = newInvestmentResponse(&investments[i])
	}
	return response
}

// Index GET RouteGroup + InvestRoute. Все инвестиции, только для админа.
func (h *InvestHandler) Index(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	investments, err := h.ledger.ListAll(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvestmentsResponse(investments))
}

// UserIndex GET RouteGroup + InvestUserRoute. Инвестиции текущего юзера.
func (h *InvestHandler) UserIndex(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	investments, err := h.ledger.ListByUser(ctx, getUserIDFromContext(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newInvestmentsResponse(investments))
}

// Show GET RouteGroup + InvestRoute/:id. Доступно владельцу и админу.
func (h *InvestHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	investment, err := h.ledger.FindByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if investment.UserID != getUserIDFromContext(c) && !isAdminFromContext(c) {
		abortWithError(c, domain.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, newInvestmentResponse(investment))
}

type PurchaseParams struct {
	PackageID int64  `binding:"required,min=1"         json:"packageId"`
	Units     int64  `binding:"required,min=1"         json:"units"`
	TxRef     string `binding:"required,max_bytes=255" json:"txRef"`
}

// Create POST RouteGroup + InvestRoute. Покупка юнитов пакета по оплаченной транзакции.
func (h *InvestHandler) Create(c *gin.Context) {
	var params PurchaseParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	ctx, cancel := context.WithTimeout(c, h.lifecycleTimeout)
	defer cancel()

	investment, err := h.lifecycle.Purchase(ctx, service.PurchaseArgs{
		UserID:    getUserIDFromContext(c),
		PackageID: params.PackageID,
		Units:     params.Units,
		TxRef:     params.TxRef,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newInvestmentResponse(investment))
}

type CancelResponse struct {
	Message      string `json:"message"`
	RefundStatus string `json:"refundStatus,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Cancel DELETE RouteGroup + InvestRoute/:id. Отмена инвестиции с возвратом денег, владельцем или админом.
func (h *InvestHandler) Cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, h.lifecycleTimeout)
	defer cancel()

	result, err := h.lifecycle.Cancel(ctx, service.CancelArgs{
		InvestmentID: id,
		ActorID:      getUserIDFromContext(c),
		ActorIsAdmin: isAdminFromContext(c),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CancelResponse{
		Message:      "investment cancelled",
		RefundStatus: result.RefundStatus,
		Note:         result.Note,
	})
}

// Settle POST RouteGroup + InvestRoute/:id/settle. Только для админа: удаляет инвестицию и возвращает юниты
// пакету, если возврат денег подтвержден вне системы.
func (h *InvestHandler) Settle(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	if err := h.lifecycle.Settle(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Payouts GET RouteGroup + InvestRoute/:id/payouts. Доступно владельцу и админу.
func (h *InvestHandler) Payouts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	payouts, err := h.payouts.ListByInvestment(ctx, id, getUserIDFromContext(c), isAdminFromContext(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]PayoutResponse, len(payouts))
	for i := range payouts {
		response[i] = newPayoutResponse(&payouts[i])
	}
	c.JSON(http.StatusOK, response)
}
