package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/sirupsen/logrus"
)

// PackageInventory единственный владелец остатка юнитов пакета. Списание и возврат юнитов выполняются
// атомарным условным апдейтом в хранилище, а не чтением с последующей записью.
type PackageInventory struct {
	uow         uow.UOW
	packageRepo PackageRepository
	cache       PackageCache
	l           *logrus.Entry
}

func NewPackageInventory(u uow.UOW, cache PackageCache, l *logrus.Logger) (*PackageInventory, error) {
	packageRepo, err := uow.GetRepositoryAs[PackageRepository](u, uow.RepositoryName(domain.PackageRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &PackageInventory{
		uow:         u,
		packageRepo: packageRepo,
		cache:       cache,
		l: l.WithFields(logrus.Fields{
			"component": "service",
			"module":    "package_inventory",
		}),
	}, nil
}

// GetTerms возвращает условия пакета или domain.ErrPackageNotFound.
func (p *PackageInventory) GetTerms(ctx context.Context, packageID int64) (*domain.PackageTerms, error) {
	pkg, err := p.packageRepo.FindByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("getting package terms: %w", err)
	}
	return pkg.Terms(), nil
}

// Reserve списывает units юнитов пакета и возвращает новый остаток.
// Если условный апдейт не затронул ни одной строки, повторным чтением выясняется причина:
// пакета нет (domain.ErrPackageNotFound) или юнитов не хватает (domain.ErrInsufficientUnits).
func (p *PackageInventory) Reserve(ctx context.Context, packageID int64, units int64) (int64, error) {
	if units < 1 {
		return 0, domain.NewValidationError(map[string]string{"units": "must be at least 1"})
	}

	unitsLeft, err := p.packageRepo.Reserve(ctx, packageID, units)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return 0, fmt.Errorf("reserving units: %w", err)
		}
		if _, findErr := p.packageRepo.FindByID(ctx, packageID); findErr != nil {
			if errors.Is(findErr, domain.ErrRecordNotFound) {
				return 0, domain.ErrPackageNotFound
			}
			return 0, fmt.Errorf("reserving units: %w", findErr)
		}
		return 0, domain.ErrInsufficientUnits
	}

	p.Invalidate(ctx, packageID)
	return unitsLeft, nil
}

// Release возвращает units юнитов пакету и возвращает новый остаток.
func (p *PackageInventory) Release(ctx context.Context, packageID int64, units int64) (int64, error) {
	unitsLeft, err := p.release(ctx, p.packageRepo, packageID, units)
	if err != nil {
		return 0, err
	}
	p.Invalidate(ctx, packageID)
	return unitsLeft, nil
}

// ReleaseTx то же, что Release, но в рамках транзакции tx. Кеш не сбрасывается: это делает вызывающий
// после коммита через Invalidate.
func (p *PackageInventory) ReleaseTx(ctx context.Context, tx uow.TX, packageID int64, units int64) (int64, error) {
	repo, repoErr := uow.GetAs[PackageRepository](tx, uow.RepositoryName(domain.PackageRepoName))
	if repoErr != nil {
		return 0, repoErr //nolint:wrapcheck
	}
	return p.release(ctx, repo, packageID, units)
}

func (p *PackageInventory) release(
	ctx context.Context,
	repo PackageRepository,
	packageID int64,
	units int64,
) (int64, error) {
	if units < 1 {
		return 0, domain.NewValidationError(map[string]string{"units": "must be at least 1"})
	}

	unitsLeft, err := repo.Release(ctx, packageID, units)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return 0, domain.ErrPackageNotFound
		}
		return 0, fmt.Errorf("releasing units: %w", err)
	}
	return unitsLeft, nil
}

// Invalidate сбрасывает кеш каталога для пакета. Ошибка кеша только логируется.
func (p *PackageInventory) Invalidate(ctx context.Context, packageID int64) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, packageID); err != nil {
		p.l.WithError(err).WithField("packageID", packageID).Warn("invalidate package cache")
	}
}
