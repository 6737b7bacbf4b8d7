package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthDuration длительность "месяца" пакета. Пакеты считают срок в 30-дневных месяцах.
const MonthDuration = 30 * 24 * time.Hour

// CancellationGracePeriod сколько времени после старта пакета инвестицию еще можно отменить.
const CancellationGracePeriod = 24 * time.Hour

type User struct {
	ID                int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Email             string
	EncryptedPassword string
	FirstName         string
	LastName          string
	Phone             string
	Role              RoleType
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Package struct {
	ID             int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Title          string
	Description    string
	Cost           decimal.Decimal
	DurationMonths int64
	StartDate      time.Time
	Units          int64
	UnitsLeft      int64
	ROI            decimal.Decimal
}

// Terms возвращает условия пакета, необходимые для расчета инвестиции.
func (p *Package) Terms() *PackageTerms {
	return &PackageTerms{
		PackageID:      p.ID,
		Title:          p.Title,
		Cost:           p.Cost,
		DurationMonths: p.DurationMonths,
		StartDate:      p.StartDate,
		ROI:            p.ROI,
		UnitsLeft:      p.UnitsLeft,
	}
}

// PackageTerms срез пакета на момент чтения. UnitsLeft может устареть сразу после чтения,
// поэтому списание юнитов всегда выполняется условным апдейтом в хранилище.
type PackageTerms struct {
	PackageID      int64
	Title          string
	Cost           decimal.Decimal
	DurationMonths int64
	StartDate      time.Time
	ROI            decimal.Decimal
	UnitsLeft      int64
}

// DueDate дата выплаты: старт пакета + длительность в 30-дневных месяцах.
func (t *PackageTerms) DueDate() time.Time {
	return t.StartDate.Add(time.Duration(t.DurationMonths) * MonthDuration)
}

// CancellationDeadline последний момент, когда инвестицию в пакет еще можно отменить.
func (t *PackageTerms) CancellationDeadline() time.Time {
	return t.StartDate.Add(CancellationGracePeriod)
}

type Investment struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int64
	PackageID int64
	Units     int64
	TxRef     string
	Amount    decimal.Decimal
	DueAmount decimal.Decimal
	DueDate   time.Time
}

type UserDetails struct {
	ID            int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UserID        int64
	Bank          string
	AccountName   string
	AccountNumber string
}

type Payout struct {
	ID           int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	InvestmentID int64
	TxRef        string
	Amount       decimal.Decimal
}
