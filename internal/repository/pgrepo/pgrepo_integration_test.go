package pgrepo_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/logger"
	"github.com/fsdevblog/peerinvest/internal/repository/pgrepo"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const migrationsDir = "../../db/migrations"

type RepositoryTestSuite struct {
	suite.Suite
	pool *pgxpool.Pool

	users       *pgrepo.UserRepository
	packages    *pgrepo.PackageRepository
	investments *pgrepo.InvestmentRepository
	details     *pgrepo.UserDetailsRepository
	payouts     *pgrepo.PayoutRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupSuite() {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("peerinvest"),
		postgres.WithUsername("peerinvest"),
		postgres.WithPassword("peerinvest"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(s.T(), ctr)
	s.Require().NoError(err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgrepo.Connect(ctx, pgrepo.ConnectArgs{
		DSN:           dsn,
		MigrationsDir: migrationsDir,
		MaxAttempts:   5,
		RetryInterval: time.Second,
	}, logger.New(io.Discard, ""))
	s.Require().NoError(err)
	s.pool = pool

	s.users = pgrepo.NewUserRepository(pool)
	s.packages = pgrepo.NewPackageRepository(pool)
	s.investments = pgrepo.NewInvestmentRepository(pool)
	s.details = pgrepo.NewUserDetailsRepository(pool)
	s.payouts = pgrepo.NewPayoutRepository(pool)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *RepositoryTestSuite) createUser() *domain.User {
	user, err := s.users.CreateUser(s.T().Context(), repoargs.CreateUser{
		Email:     gofakeit.Email(),
		Password:  "hash",
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Role:      domain.RoleUser,
	})
	s.Require().NoError(err)
	return user
}

func (s *RepositoryTestSuite) createPackage(units int64) *domain.Package {
	pkg, err := s.packages.Create(s.T().Context(), repoargs.CreatePackage{
		Title:          gofakeit.UUID(),
		Description:    gofakeit.Sentence(5),
		Cost:           decimal.NewFromInt(1000),
		DurationMonths: 6,
		StartDate:      time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		Units:          units,
		ROI:            decimal.NewFromInt(20),
	})
	s.Require().NoError(err)
	return pkg
}

func (s *RepositoryTestSuite) createInvestment(userID, packageID int64, txRef string) (*domain.Investment, error) {
	return s.investments.Create(s.T().Context(), repoargs.CreateInvestment{
		UserID:    userID,
		PackageID: packageID,
		Units:     1,
		TxRef:     txRef,
		Amount:    decimal.NewFromInt(1000),
		DueAmount: decimal.NewFromInt(1200),
		DueDate:   time.Now().AddDate(0, 6, 0).UTC(),
	})
}

func (s *RepositoryTestSuite) TestUsers() {
	user := s.createUser()

	found, err := s.users.FindUserByEmail(s.T().Context(), user.Email)
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)

	_, err = s.users.CreateUser(s.T().Context(), repoargs.CreateUser{Email: user.Email, Password: "x", Role: domain.RoleUser})
	s.ErrorIs(err, domain.ErrDuplicateKey)

	_, err = s.users.FindUserByID(s.T().Context(), -1)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestPackageCreate() {
	pkg := s.createPackage(10)
	s.Equal(int64(10), pkg.UnitsLeft)
	s.True(decimal.NewFromInt(1000).Equal(pkg.Cost))

	_, err := s.packages.Create(s.T().Context(), repoargs.CreatePackage{
		Title:          pkg.Title,
		Cost:           decimal.NewFromInt(1),
		DurationMonths: 1,
		StartDate:      time.Now(),
		Units:          1,
		ROI:            decimal.Zero,
	})
	s.ErrorIs(err, domain.ErrDuplicateKey)
}

// Конкурентные покупки не продают больше юнитов, чем есть в пакете.
func (s *RepositoryTestSuite) TestReserve_Concurrent() {
	const units, buyers = 10, 25
	pkg := s.createPackage(units)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.packages.Reserve(context.Background(), pkg.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrRecordNotFound) {
				s.Failf("unexpected reserve error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(units, succeeded)
	reloaded, err := s.packages.FindByID(s.T().Context(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), reloaded.UnitsLeft)
}

func (s *RepositoryTestSuite) TestReserveRelease() {
	pkg := s.createPackage(5)

	left, err := s.packages.Reserve(s.T().Context(), pkg.ID, 3)
	s.Require().NoError(err)
	s.Equal(int64(2), left)

	_, err = s.packages.Reserve(s.T().Context(), pkg.ID, 3)
	s.ErrorIs(err, domain.ErrRecordNotFound)

	left, err = s.packages.Release(s.T().Context(), pkg.ID, 3)
	s.Require().NoError(err)
	s.Equal(int64(5), left)

	_, err = s.packages.Release(s.T().Context(), pkg.ID, 1)
	s.ErrorIs(err, domain.ErrCheckViolation)

	_, err = s.packages.Release(s.T().Context(), -1, 1)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestInvestments() {
	user := s.createUser()
	pkg := s.createPackage(10)
	txRef := gofakeit.UUID()

	investment, err := s.createInvestment(user.ID, pkg.ID, txRef)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(1200).Equal(investment.DueAmount))

	_, err = s.createInvestment(user.ID, pkg.ID, txRef)
	s.ErrorIs(err, domain.ErrDuplicateKey)

	exists, err := s.investments.ExistsByTxRef(s.T().Context(), txRef)
	s.Require().NoError(err)
	s.True(exists)

	list, err := s.investments.GetByUserID(s.T().Context(), user.ID)
	s.Require().NoError(err)
	s.Len(list, 1)

	// пакет с инвестициями удалить нельзя.
	s.ErrorIs(s.packages.Delete(s.T().Context(), pkg.ID), domain.ErrForeignKey)

	deleted, err := s.investments.Delete(s.T().Context(), investment.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.investments.Delete(s.T().Context(), investment.ID)
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *RepositoryTestSuite) TestUserDetails() {
	user := s.createUser()
	args := repoargs.UpsertUserDetails{UserID: user.ID, Bank: "First Bank", AccountName: "Ada", AccountNumber: "0123456789"}

	_, err := s.details.Create(s.T().Context(), args)
	s.Require().NoError(err)

	_, err = s.details.Create(s.T().Context(), args)
	s.ErrorIs(err, domain.ErrDuplicateKey)

	args.Bank = "GT Bank"
	updated, err := s.details.Upsert(s.T().Context(), args)
	s.Require().NoError(err)
	s.Equal("GT Bank", updated.Bank)

	args.AccountNumber = "12345"
	_, err = s.details.Upsert(s.T().Context(), args)
	s.ErrorIs(err, domain.ErrCheckViolation)
}

func (s *RepositoryTestSuite) TestPayouts() {
	user := s.createUser()
	pkg := s.createPackage(10)
	investment, err := s.createInvestment(user.ID, pkg.ID, gofakeit.UUID())
	s.Require().NoError(err)

	args := repoargs.CreatePayout{InvestmentID: investment.ID, TxRef: gofakeit.UUID(), Amount: decimal.NewFromInt(1200)}
	_, err = s.payouts.Create(s.T().Context(), args)
	s.Require().NoError(err)

	_, err = s.payouts.Create(s.T().Context(), args)
	s.ErrorIs(err, domain.ErrDuplicateKey)

	payouts, err := s.payouts.GetByInvestmentID(s.T().Context(), investment.ID)
	s.Require().NoError(err)
	s.Len(payouts, 1)
}

// Откат транзакции unit of work отменяет удаление инвестиции и возврат юнитов.
func (s *RepositoryTestSuite) TestUnitOfWorkRollback() {
	user := s.createUser()
	pkg := s.createPackage(10)
	_, err := s.packages.Reserve(s.T().Context(), pkg.ID, 1)
	s.Require().NoError(err)
	investment, err := s.createInvestment(user.ID, pkg.ID, gofakeit.UUID())
	s.Require().NoError(err)

	u := uow.NewUnitOfWork(s.pool)
	s.Require().NoError(u.Register(uow.RepositoryName(domain.PackageRepoName), func(db uow.DBTX) uow.Repository {
		return pgrepo.NewPackageRepository(db)
	}))
	s.Require().NoError(u.Register(uow.RepositoryName(domain.InvestmentRepoName), func(db uow.DBTX) uow.Repository {
		return pgrepo.NewInvestmentRepository(db)
	}))

	abort := errors.New("abort")
	err = u.Do(s.T().Context(), func(ctx context.Context, tx uow.TX) error {
		investments, getErr := uow.GetAs[*pgrepo.InvestmentRepository](tx, uow.RepositoryName(domain.InvestmentRepoName))
		s.Require().NoError(getErr)
		packages, getErr := uow.GetAs[*pgrepo.PackageRepository](tx, uow.RepositoryName(domain.PackageRepoName))
		s.Require().NoError(getErr)

		if _, delErr := investments.Delete(ctx, investment.ID); delErr != nil {
			return delErr
		}
		if _, relErr := packages.Release(ctx, pkg.ID, 1); relErr != nil {
			return relErr
		}
		return abort
	})
	s.Require().ErrorIs(err, abort)

	_, err = s.investments.FindByID(s.T().Context(), investment.ID)
	s.Require().NoError(err)
	reloaded, err := s.packages.FindByID(s.T().Context(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(int64(9), reloaded.UnitsLeft)
}
