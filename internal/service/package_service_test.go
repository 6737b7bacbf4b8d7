package service

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/internal/service/mocks"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	uowmocks "github.com/fsdevblog/peerinvest/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type PackageServiceTestSuite struct {
	suite.Suite
	mockUOW         *uowmocks.MockUOW
	mockPackageRepo *mocks.MockPackageRepository
	mockCache       *mocks.MockPackageCache
	packageService  *PackageService
}

func TestPackageServiceSuite(t *testing.T) {
	suite.Run(t, new(PackageServiceTestSuite))
}

func (s *PackageServiceTestSuite) SetupTest() {
	mockCtrl := gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(mockCtrl)
	s.mockPackageRepo = mocks.NewMockPackageRepository(mockCtrl)
	s.mockCache = mocks.NewMockPackageCache(mockCtrl)

	s.mockUOW.EXPECT().GetRepository(uow.RepositoryName(domain.PackageRepoName)).
		Return(s.mockPackageRepo, nil).AnyTimes()

	l := logrus.New()
	l.SetOutput(io.Discard)

	packageService, err := NewPackageService(s.mockUOW, s.mockCache, l)
	s.Require().NoError(err)
	s.packageService = packageService
}

func validPackageArgs() PackageArgs {
	return PackageArgs{
		Title:          "Gold",
		Description:    "gold package",
		Cost:           decimal.NewFromInt(1000),
		DurationMonths: 1,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Units:          10,
		ROI:            decimal.NewFromInt(10),
	}
}

func (s *PackageServiceTestSuite) TestList() {
	s.Run("cache hit", func() {
		s.mockCache.EXPECT().GetPackages(gomock.Any()).Return([]domain.Package{*testPackage()}, nil)

		packages, err := s.packageService.List(s.T().Context())
		s.Require().NoError(err)
		s.Len(packages, 1)
	})

	s.Run("cache miss", func() {
		packages := []domain.Package{*testPackage()}
		s.mockCache.EXPECT().GetPackages(gomock.Any()).Return(nil, domain.ErrCacheMiss)
		s.mockPackageRepo.EXPECT().List(gomock.Any()).Return(packages, nil)
		s.mockCache.EXPECT().SetPackages(gomock.Any(), packages).Return(nil)

		got, err := s.packageService.List(s.T().Context())
		s.Require().NoError(err)
		s.Equal(packages, got)
	})

	s.Run("cache unavailable", func() {
		s.mockCache.EXPECT().GetPackages(gomock.Any()).Return(nil, errors.New("redis down"))
		s.mockPackageRepo.EXPECT().List(gomock.Any()).Return([]domain.Package{}, nil)
		s.mockCache.EXPECT().SetPackages(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		got, err := s.packageService.List(s.T().Context())
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *PackageServiceTestSuite) TestGet() {
	s.Run("cache miss", func() {
		pkg := testPackage()
		s.mockCache.EXPECT().GetPackage(gomock.Any(), int64(1)).Return(nil, domain.ErrCacheMiss)
		s.mockPackageRepo.EXPECT().FindByID(gomock.Any(), int64(1)).Return(pkg, nil)
		s.mockCache.EXPECT().SetPackage(gomock.Any(), pkg).Return(nil)

		got, err := s.packageService.Get(s.T().Context(), 1)
		s.Require().NoError(err)
		s.Equal(pkg, got)
	})

	s.Run("not found", func() {
		s.mockCache.EXPECT().GetPackage(gomock.Any(), int64(2)).Return(nil, domain.ErrCacheMiss)
		s.mockPackageRepo.EXPECT().FindByID(gomock.Any(), int64(2)).Return(nil, domain.ErrRecordNotFound)

		_, err := s.packageService.Get(s.T().Context(), 2)
		s.Require().ErrorIs(err, domain.ErrPackageNotFound)
	})
}

func (s *PackageServiceTestSuite) TestCreate() {
	args := validPackageArgs()

	s.Run("ok", func() {
		s.mockPackageRepo.EXPECT().Create(gomock.Any(), repoargs.CreatePackage(args)).Return(testPackage(), nil)
		s.mockCache.EXPECT().Invalidate(gomock.Any(), int64(1)).Return(nil)

		pkg, err := s.packageService.Create(s.T().Context(), args)
		s.Require().NoError(err)
		s.Equal(int64(10), pkg.UnitsLeft)
	})

	s.Run("duplicate title", func() {
		s.mockPackageRepo.EXPECT().Create(gomock.Any(), repoargs.CreatePackage(args)).Return(nil, domain.ErrDuplicateKey)

		_, err := s.packageService.Create(s.T().Context(), args)
		s.Require().ErrorIs(err, domain.ErrDuplicateTitle)
	})

	s.Run("validation", func() {
		invalid := PackageArgs{ROI: decimal.NewFromInt(101)}

		_, err := s.packageService.Create(s.T().Context(), invalid)
		var validationErr *domain.ValidationError
		s.Require().ErrorAs(err, &validationErr)
		for _, field := range []string{"title", "cost", "duration", "units", "roi", "startDate"} {
			s.Contains(validationErr.Fields, field)
		}
	})
}

func (s *PackageServiceTestSuite) TestUpdate() {
	args := validPackageArgs()
	updateArgs := repoargs.UpdatePackage{ID: 1, CreatePackage: repoargs.CreatePackage(args)}

	s.Run("ok", func() {
		s.mockPackageRepo.EXPECT().Update(gomock.Any(), updateArgs).Return(testPackage(), nil)
		s.mockCache.EXPECT().Invalidate(gomock.Any(), int64(1)).Return(nil)

		_, err := s.packageService.Update(s.T().Context(), 1, args)
		s.Require().NoError(err)
	})

	s.Run("units below sold", func() {
		s.mockPackageRepo.EXPECT().Update(gomock.Any(), updateArgs).Return(nil, domain.ErrRecordNotFound)
		s.mockPackageRepo.EXPECT().FindByID(gomock.Any(), int64(1)).Return(testPackage(), nil)

		_, err := s.packageService.Update(s.T().Context(), 1, args)
		s.Require().ErrorIs(err, domain.ErrInsufficientUnits)
	})

	s.Run("not found", func() {
		missing := repoargs.UpdatePackage{ID: 9, CreatePackage: repoargs.CreatePackage(args)}
		s.mockPackageRepo.EXPECT().Update(gomock.Any(), missing).Return(nil, domain.ErrRecordNotFound)
		s.mockPackageRepo.EXPECT().FindByID(gomock.Any(), int64(9)).Return(nil, domain.ErrRecordNotFound)

		_, err := s.packageService.Update(s.T().Context(), 9, args)
		s.Require().ErrorIs(err, domain.ErrPackageNotFound)
	})
}

func (s *PackageServiceTestSuite) TestDelete() {
	s.mockPackageRepo.EXPECT().Delete(gomock.Any(), int64(1)).Return(nil)
	s.mockCache.EXPECT().Invalidate(gomock.Any(), int64(1)).Return(nil)
	s.Require().NoError(s.packageService.Delete(s.T().Context(), 1))

	s.mockPackageRepo.EXPECT().Delete(gomock.Any(), int64(2)).Return(domain.ErrForeignKey)
	s.Require().ErrorIs(s.packageService.Delete(s.T().Context(), 2), domain.ErrPackageInUse)

	s.mockPackageRepo.EXPECT().Delete(gomock.Any(), int64(3)).Return(domain.ErrRecordNotFound)
	s.Require().ErrorIs(s.packageService.Delete(s.T().Context(), 3), domain.ErrPackageNotFound)
}
