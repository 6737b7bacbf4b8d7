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

type PayoutHandler struct {
	payoutSvs PayoutServicer
}

func NewPayoutHandler(payoutSvs PayoutServicer) *PayoutHandler {
	return &PayoutHandler{
		payoutSvs: payoutSvs,
	}
}

type PayoutParams struct {
	InvestmentID int64           `binding:"required,min=1"         json:"investmentId"`
	TxRef        string          `binding:"required,max_bytes=255" json:"txRef"`
	Amount       decimal.Decimal `json:"amount"`
}

type PayoutResponse struct {
	ID           int64           `json:"id"`
	InvestmentID int64           `json:"investmentId"`
	TxRef        string          `json:"txRef"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func newPayoutResponse(p *domain.Payout) PayoutResponse {
	return PayoutResponse{
		ID:           p.ID,
		InvestmentID: p.InvestmentID,
		TxRef:        p.TxRef,
		Amount:       p.Amount,
		CreatedAt:    p.CreatedAt,
	}
}

// Create POST RouteGroup + PayoutRoute. Только для админа.
func (h *PayoutHandler) Create(c *gin.Context) {
	var params PayoutParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	ctx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	payout, err := h.payoutSvs.Record(ctx, service.RecordPayoutArgs{
		InvestmentID: params.InvestmentID,
		TxRef:        params.TxRef,
		Amount:       params.Amount,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPayoutResponse(payout))
}
