package pgrepo

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const userDetailsColumns = `id, created_at, updated_at, user_id, bank, account_name, account_number`

type UserDetailsRepository struct {
	conn uow.DBTX
}

func NewUserDetailsRepository(conn uow.DBTX) *UserDetailsRepository {
	return &UserDetailsRepository{conn: conn}
}

// Create создает банковские реквизиты. Если они уже есть у юзера - domain.ErrDuplicateKey.
func (r *UserDetailsRepository) Create(
	ctx context.Context,
	args repoargs.UpsertUserDetails,
) (*domain.UserDetails, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO user_details (user_id, bank, account_name, account_number)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userDetailsColumns,
		args.UserID, args.Bank, args.AccountName, args.AccountNumber,
	)
	details, err := scanUserDetails(row)
	if err != nil {
		return nil, convertErr(err, "creating user details for user %d", args.UserID)
	}
	return details, nil
}

// Upsert создает реквизиты, если их нет, иначе перезаписывает.
func (r *UserDetailsRepository) Upsert(
	ctx context.Context,
	args repoargs.UpsertUserDetails,
) (*domain.UserDetails, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO user_details (user_id, bank, account_name, account_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET bank           = EXCLUDED.bank,
		    account_name   = EXCLUDED.account_name,
		    account_number = EXCLUDED.account_number,
		    updated_at     = now()
		RETURNING `+userDetailsColumns,
		args.UserID, args.Bank, args.AccountName, args.AccountNumber,
	)
	details, err := scanUserDetails(row)
	if err != nil {
		return nil, convertErr(err, "upserting user details for user %d", args.UserID)
	}
	return details, nil
}

func (r *UserDetailsRepository) FindByUserID(ctx context.Context, userID int64) (*domain.UserDetails, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userDetailsColumns+` FROM user_details WHERE user_id = $1`, userID)
	details, err := scanUserDetails(row)
	if err != nil {
		return nil, convertErr(err, "finding user details for user %d", userID)
	}
	return details, nil
}

func scanUserDetails(row pgx.Row) (*domain.UserDetails, error) {
	var details domain.UserDetails
	if err := row.Scan(
		&details.ID,
		&details.CreatedAt,
		&details.UpdatedAt,
		&details.UserID,
		&details.Bank,
		&details.AccountName,
		&details.AccountNumber,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &details, nil
}
