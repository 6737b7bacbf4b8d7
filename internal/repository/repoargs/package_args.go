package repoargs

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePackage аргументы создания пакета. units_left при создании равен Units.
type CreatePackage struct {
	Title          string
	Description    string
	Cost           decimal.Decimal
	DurationMonths int64
	StartDate      time.Time
	Units          int64
	ROI            decimal.Decimal
}

type UpdatePackage struct {
	ID int64
	CreatePackage
}
