package service

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(password string, hashedPassword string) bool
}

type UserRepository interface {
	CreateUser(ctx context.Context, user repoargs.CreateUser) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
}

type PackageRepository interface {
	Create(ctx context.Context, args repoargs.CreatePackage) (*domain.Package, error)
	Update(ctx context.Context, args repoargs.UpdatePackage) (*domain.Package, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Package, error)
	List(ctx context.Context) ([]domain.Package, error)
	Reserve(ctx context.Context, id int64, units int64) (int64, error)
	Release(ctx context.Context, id int64, units int64) (int64, error)
}

type InvestmentRepository interface {
	Create(ctx context.Context, args repoargs.CreateInvestment) (*domain.Investment, error)
	ExistsByTxRef(ctx context.Context, txRef string) (bool, error)
	FindByID(ctx context.Context, id int64) (*domain.Investment, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error)
	List(ctx context.Context) ([]domain.Investment, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type UserDetailsRepository interface {
	Create(ctx context.Context, args repoargs.UpsertUserDetails) (*domain.UserDetails, error)
	Upsert(ctx context.Context, args repoargs.UpsertUserDetails) (*domain.UserDetails, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.UserDetails, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, args repoargs.CreatePayout) (*domain.Payout, error)
	GetByInvestmentID(ctx context.Context, investmentID int64) ([]domain.Payout, error)
}

// PaymentGateway внешний платежный шлюз. Отказ шлюза возвращается как *domain.GatewayError.
type PaymentGateway interface {
	Verify(ctx context.Context, txRef string) (*domain.PaymentVerification, error)
	Refund(ctx context.Context, txRef string, note string) (*domain.RefundResult, error)
}

// Notifier ставит сборку письма в очередь на отправку. compose выполняется вне вызывающей горутины.
// Не блокирует и не возвращает ошибок.
type Notifier interface {
	Compose(compose domain.MailComposer)
}

// PackageCache кеш каталога пакетов. При отсутствии записи возвращает domain.ErrCacheMiss.
type PackageCache interface {
	GetPackage(ctx context.Context, id int64) (*domain.Package, error)
	SetPackage(ctx context.Context, pkg *domain.Package) error
	GetPackages(ctx context.Context) ([]domain.Package, error)
	SetPackages(ctx context.Context, packages []domain.Package) error
	Invalidate(ctx context.Context, id int64) error
}
