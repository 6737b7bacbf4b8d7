package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
)

// UserServicer интерфейс исключительно для моков.
type UserServicer interface {
	Register(ctx context.Context, args service.RegisterUserArgs) (*domain.User, string, error)
	Login(ctx context.Context, args service.LoginUserArgs) (*domain.User, string, error)
}

type UserDetailsServicer interface {
	Create(ctx context.Context, args service.UserDetailsArgs) (*domain.UserDetails, error)
	Upsert(ctx context.Context, args service.UserDetailsArgs) (*domain.UserDetails, error)
	Get(ctx context.Context, userID int64) (*domain.UserDetails, error)
}

type PackageServicer interface {
	List(ctx context.Context) ([]domain.Package, error)
	Get(ctx context.Context, id int64) (*domain.Package, error)
	Create(ctx context.Context, args service.PackageArgs) (*domain.Package, error)
	Update(ctx context.Context, id int64, args service.PackageArgs) (*domain.Package, error)
	Delete(ctx context.Context, id int64) error
}

type LedgerServicer interface {
	FindByID(ctx context.Context, id int64) (*domain.Investment, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Investment, error)
	ListAll(ctx context.Context) ([]domain.Investment, error)
}

type LifecycleServicer interface {
	Purchase(ctx context.Context, args service.PurchaseArgs) (*domain.Investment, error)
	Cancel(ctx context.Context, args service.CancelArgs) (*service.CancelResult, error)
	Settle(ctx context.Context, investmentID int64) error
}

type PayoutServicer interface {
	Record(ctx context.Context, args service.RecordPayoutArgs) (*domain.Payout, error)
	ListByInvestment(ctx context.Context, investmentID int64, actorID int64, actorIsAdmin bool) ([]domain.Payout, error)
}
