package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/internal/service/tokens"
	"github.com/fsdevblog/peerinvest/pkg/uow"
)

const defaultJWTTokenExpire = 1 * time.Hour

type UserService struct {
	uow            uow.UOW
	userRepo       UserRepository
	psswd          PasswordHasher
	jwtTokenSecret []byte
	jwtTokenExpire time.Duration
	adminEmails    map[string]struct{}
}

func NewUserService(u uow.UOW, jwtTokenSecret []byte, psswd PasswordHasher) (*UserService, error) {
	userRepo, userRepoErr := uow.GetRepositoryAs[UserRepository](u, uow.RepositoryName(domain.UserRepoName))
	if userRepoErr != nil {
		return nil, userRepoErr //nolint:wrapcheck
	}
	return &UserService{
		uow:            u,
		userRepo:       userRepo,
		psswd:          psswd,
		jwtTokenSecret: jwtTokenSecret,
		jwtTokenExpire: defaultJWTTokenExpire,
		adminEmails:    make(map[string]struct{}),
	}, nil
}

// SetTokenExpire устанавливает время жизни выдаваемых jwt токенов.
func (s *UserService) SetTokenExpire(expire time.Duration) *UserService {
	if expire > 0 {
		s.jwtTokenExpire = expire
	}
	return s
}

// SetAdminEmails задает список email, регистрация с которыми дает роль админа.
func (s *UserService) SetAdminEmails(emails []string) *UserService {
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			s.adminEmails[email] = struct{}{}
		}
	}
	return s
}

type RegisterUserArgs struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register создает юзера в базе данных. После успешного создания генерирует jwt token. Возвращает 3 значения:
// созданный юзер, токен и ошибку. Занятый email - domain.ErrDuplicateEmail.
func (s *UserService) Register(ctx context.Context, args RegisterUserArgs) (*domain.User, string, error) {
	password, hashErr := s.psswd.HashPassword(args.Password)
	if hashErr != nil {
		return nil, "", fmt.Errorf("registering user: %s", hashErr.Error())
	}

	var user *domain.User
	var token string
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var userErr, tokenErr error
		userRepo, userRepoErr := uow.GetAs[UserRepository](tx, uow.RepositoryName(domain.UserRepoName))
		if userRepoErr != nil {
			return userRepoErr //nolint:wrapcheck
		}
		user, userErr = userRepo.CreateUser(c, repoargs.CreateUser{
			Email:     args.Email,
			Password:  password,
			FirstName: args.FirstName,
			LastName:  args.LastName,
			Phone:     args.Phone,
			Role:      s.roleFor(args.Email),
		})
		if userErr != nil {
			if errors.Is(userErr, domain.ErrDuplicateKey) {
				return domain.ErrDuplicateEmail
			}
			return userErr //nolint:wrapcheck
		}

		token, tokenErr = tokens.GenerateUserJWT(user.ID, user.Role, s.jwtTokenExpire, s.jwtTokenSecret)
		if tokenErr != nil {
			return tokenErr //nolint:wrapcheck
		}
		return nil
	})

	if txErr != nil {
		return nil, "", fmt.Errorf("registering user: %w", txErr)
	}
	return user, token, nil
}

type LoginUserArgs struct {
	Email    string
	Password string
}

// Login проверяет email и пароль и выдает jwt token. Возвращает domain.ErrUserNotFound
// или domain.ErrPasswordMissMatch.
func (s *UserService) Login(ctx context.Context, args LoginUserArgs) (*domain.User, string, error) {
	user, userErr := s.userRepo.FindUserByEmail(ctx, args.Email)
	if userErr != nil {
		if errors.Is(userErr, domain.ErrRecordNotFound) {
			return nil, "", domain.ErrUserNotFound
		}
		return nil, "", fmt.Errorf("login user: %w", userErr)
	}

	if !s.psswd.ComparePassword(args.Password, user.EncryptedPassword) {
		return nil, "", domain.ErrPasswordMissMatch
	}

	token, tokenErr := tokens.GenerateUserJWT(user.ID, user.Role, s.jwtTokenExpire, s.jwtTokenSecret)
	if tokenErr != nil {
		return nil, "", fmt.Errorf("login user: %w", tokenErr)
	}
	return user, token, nil
}

func (s *UserService) roleFor(email string) domain.RoleType {
	if _, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}
