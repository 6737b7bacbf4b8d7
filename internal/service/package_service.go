package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PackageService каталог пакетов. Чтение идет через кеш, изменения доступны только админу и сбрасывают кеш.
type PackageService struct {
	uow         uow.UOW
	packageRepo PackageRepository
	cache       PackageCache
	l           *logrus.Entry
}

func NewPackageService(u uow.UOW, cache PackageCache, l *logrus.Logger) (*PackageService, error) {
	packageRepo, err := uow.GetRepositoryAs[PackageRepository](u, uow.RepositoryName(domain.PackageRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &PackageService{
		uow:         u,
		packageRepo: packageRepo,
		cache:       cache,
		l: l.WithFields(logrus.Fields{
			"component": "service",
			"module":    "package",
		}),
	}, nil
}

type PackageArgs struct {
	Title          string
	Description    string
	Cost           decimal.Decimal
	DurationMonths int64
	StartDate      time.Time
	Units          int64
	ROI            decimal.Decimal
}

func (s *PackageService) List(ctx context.Context) ([]domain.Package, error) {
	if s.cache != nil {
		packages, cacheErr := s.cache.GetPackages(ctx)
		if cacheErr == nil {
			return packages, nil
		}
		s.logCacheErr(cacheErr, "get packages")
	}

	packages, err := s.packageRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}

	if s.cache != nil {
		if setErr := s.cache.SetPackages(ctx, packages); setErr != nil {
			s.logCacheErr(setErr, "set packages")
		}
	}
	return packages, nil
}

func (s *PackageService) Get(ctx context.Context, id int64) (*domain.Package, error) {
	if s.cache != nil {
		pkg, cacheErr := s.cache.GetPackage(ctx, id)
		if cacheErr == nil {
			return pkg, nil
		}
		s.logCacheErr(cacheErr, "get package")
	}

	pkg, err := s.packageRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("getting package: %w", err)
	}

	if s.cache != nil {
		if setErr := s.cache.SetPackage(ctx, pkg); setErr != nil {
			s.logCacheErr(setErr, "set package")
		}
	}
	return pkg, nil
}

// Create создает пакет. Остаток юнитов нового пакета равен общему количеству.
func (s *PackageService) Create(ctx context.Context, args PackageArgs) (*domain.Package, error) {
	if fields := validatePackageArgs(args); len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	pkg, err := s.packageRepo.Create(ctx, repoargs.CreatePackage(args))
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateTitle
		}
		return nil, fmt.Errorf("creating package: %w", err)
	}

	s.invalidate(ctx, pkg.ID)
	return pkg, nil
}

// Update перезаписывает условия пакета. Изменение общего количества юнитов сдвигает остаток на ту же величину;
// если остаток стал бы отрицательным, возвращается domain.ErrInsufficientUnits.
func (s *PackageService) Update(ctx context.Context, id int64, args PackageArgs) (*domain.Package, error) {
	if fields := validatePackageArgs(args); len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	pkg, err := s.packageRepo.Update(ctx, repoargs.UpdatePackage{
		ID:            id,
		CreatePackage: repoargs.CreatePackage(args),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateKey):
			return nil, domain.ErrDuplicateTitle
		case errors.Is(err, domain.ErrRecordNotFound):
			// апдейт не затронул строк: пакета нет или юнитов уже продано больше нового количества.
			if _, findErr := s.packageRepo.FindByID(ctx, id); findErr != nil {
				if errors.Is(findErr, domain.ErrRecordNotFound) {
					return nil, domain.ErrPackageNotFound
				}
				return nil, fmt.Errorf("updating package: %w", findErr)
			}
			return nil, domain.ErrInsufficientUnits
		default:
			return nil, fmt.Errorf("updating package: %w", err)
		}
	}

	s.invalidate(ctx, id)
	return pkg, nil
}

// Delete удаляет пакет. Пакет, на который ссылаются инвестиции, удалить нельзя: domain.ErrPackageInUse.
func (s *PackageService) Delete(ctx context.Context, id int64) error {
	if err := s.packageRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return domain.ErrPackageNotFound
		case errors.Is(err, domain.ErrForeignKey):
			return domain.ErrPackageInUse
		default:
			return fmt.Errorf("deleting package: %w", err)
		}
	}

	s.invalidate(ctx, id)
	return nil
}

func validatePackageArgs(args PackageArgs) map[string]string {
	var fields = make(map[string]string)
	if args.Title == "" {
		fields["title"] = "must not be empty"
	}
	if !args.Cost.IsPositive() {
		fields["cost"] = "must be positive"
	}
	if args.DurationMonths < 1 {
		fields["duration"] = "must be at least 1"
	}
	if args.Units < 1 {
		fields["units"] = "must be at least 1"
	}
	if args.ROI.IsNegative() || args.ROI.GreaterThan(decimal.NewFromInt(100)) { //nolint:mnd
		fields["roi"] = "must be between 0 and 100"
	}
	if args.StartDate.IsZero() {
		fields["startDate"] = "must be set"
	}
	return fields
}

func (s *PackageService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logCacheErr(err, "invalidate")
	}
}

func (s *PackageService) logCacheErr(err error, op string) {
	if errors.Is(err, domain.ErrCacheMiss) {
		return
	}
	s.l.WithError(err).Warnf("package cache: %s", op)
}
