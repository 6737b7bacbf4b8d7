package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
)

// UserDetailsService банковские реквизиты юзера, по одной записи на юзера.
type UserDetailsService struct {
	detailsRepo UserDetailsRepository
}

func NewUserDetailsService(u uow.UOW) (*UserDetailsService, error) {
	detailsRepo, err := uow.GetRepositoryAs[UserDetailsRepository](
		u,
		uow.RepositoryName(domain.UserDetailsRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &UserDetailsService{detailsRepo: detailsRepo}, nil
}

type UserDetailsArgs struct {
	UserID        int64
	Bank          string
	AccountName   string
	AccountNumber string
}

// Create сохраняет реквизиты. Если они уже есть - domain.ErrDetailsPresent.
func (s *UserDetailsService) Create(ctx context.Context, args UserDetailsArgs) (*domain.UserDetails, error) {
	if fields := validateUserDetailsArgs(args); len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	details, err := s.detailsRepo.Create(ctx, repoargs.UpsertUserDetails(args))
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDetailsPresent
		}
		return nil, fmt.Errorf("creating user details: %w", err)
	}
	return details, nil
}

// Upsert создает реквизиты, если их нет, иначе перезаписывает.
func (s *UserDetailsService) Upsert(ctx context.Context, args UserDetailsArgs) (*domain.UserDetails, error) {
	if fields := validateUserDetailsArgs(args); len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	details, err := s.detailsRepo.Upsert(ctx, repoargs.UpsertUserDetails(args))
	if err != nil {
		return nil, fmt.Errorf("upserting user details: %w", err)
	}
	return details, nil
}

func (s *UserDetailsService) Get(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	details, err := s.detailsRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrDetailsNotFound
		}
		return nil, fmt.Errorf("getting user details: %w", err)
	}
	return details, nil
}

func validateUserDetailsArgs(args UserDetailsArgs) map[string]string {
	var fields = make(map[string]string)
	if args.Bank == "" {
		fields["bankName"] = "must not be empty"
	}
	if args.AccountName == "" {
		fields["accountName"] = "must not be empty"
	}
	if !IsAccountNumber(args.AccountNumber) {
		fields["accountNumber"] = "must be exactly 10 digits"
	}
	return fields
}

// IsAccountNumber проверяет, что номер счета состоит ровно из 10 цифр.
func IsAccountNumber(s string) bool {
	if len(s) != 10 { //nolint:mnd
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
