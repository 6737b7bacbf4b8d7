package repoargs

import "github.com/fsdevblog/peerinvest/internal/domain"

type CreateUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      domain.RoleType
}

type UpsertUserDetails struct {
	UserID        int64
	Bank          string
	AccountName   string
	AccountNumber string
}
