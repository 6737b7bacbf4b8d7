package repoargs

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateInvestment struct {
	UserID    int64
	PackageID int64
	Units     int64
	TxRef     string
	Amount    decimal.Decimal
	DueAmount decimal.Decimal
	DueDate   time.Time
}

type CreatePayout struct {
	InvestmentID int64
	TxRef        string
	Amount       decimal.Decimal
}
