package pgrepo

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const investmentColumns = `id, created_at, updated_at, user_id, package_id, units, tx_ref, amount, due_amount, due_date`

type InvestmentRepository struct {
	conn uow.DBTX
}

func NewInvestmentRepository(conn uow.DBTX) *InvestmentRepository {
	return &InvestmentRepository{conn: conn}
}

// Create сохраняет инвестицию. Уникальный индекс по tx_ref не дает двум конкурентным покупкам с одной
// транзакцией сохраниться обеим: вторая получит domain.ErrDuplicateKey.
func (i *InvestmentRepository) Create(
	ctx context.Context,
	args repoargs.CreateInvestment,
) (*domain.Investment, error) {
	row := i.conn.QueryRow(ctx, `
		INSERT INTO investments (user_id, package_id, units, tx_ref, amount, due_amount, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+investmentColumns,
		args.UserID, args.PackageID, args.Units, args.TxRef, args.Amount, args.DueAmount, args.DueDate,
	)
	investment, err := scanInvestment(row)
	if err != nil {
		return nil, convertErr(err, "creating investment with tx `%s`", args.TxRef)
	}
	return investment, nil
}

func (i *InvestmentRepository) ExistsByTxRef(ctx context.Context, txRef string) (bool, error) {
	var exists bool
	err := i.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM investments WHERE tx_ref = $1)`, txRef).Scan(&exists)
	if err != nil {
		return false, convertErr(err, "checking investment tx `%s`", txRef)
	}
	return exists, nil
}

func (i *InvestmentRepository) FindByID(ctx context.Context, id int64) (*domain.Investment, error) {
	row := i.conn.QueryRow(ctx, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id)
	investment, err := scanInvestment(row)
	if err != nil {
		return nil, convertErr(err, "finding investment by id %d", id)
	}
	return investment, nil
}

// GetByUserID возвращает инвестиции юзера, отсортированные по дате создания по убыванию.
func (i *InvestmentRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error) {
	rows, err := i.conn.Query(ctx, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting investments by userID %d", userID)
	}
	return collectInvestments(rows)
}

func (i *InvestmentRepository) List(ctx context.Context) ([]domain.Investment, error) {
	rows, err := i.conn.Query(ctx, `SELECT `+investmentColumns+` FROM investments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, convertErr(err, "listing investments")
	}
	return collectInvestments(rows)
}

// Delete удаляет инвестицию. Отсутствие записи ошибкой не считается: возвращается false.
func (i *InvestmentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := i.conn.Exec(ctx, `DELETE FROM investments WHERE id = $1`, id)
	if err != nil {
		return false, convertErr(err, "deleting investment with id %d", id)
	}
	return tag.RowsAffected() > 0, nil
}

func collectInvestments(rows pgx.Rows) ([]domain.Investment, error) {
	defer rows.Close()

	var investments = make([]domain.Investment, 0)
	for rows.Next() {
		investment, err := scanInvestment(rows)
		if err != nil {
			return nil, convertErr(err, "scanning investment")
		}
		investments = append(investments, *investment)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, "reading investments")
	}
	return investments, nil
}

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var investment domain.Investment
	if err := row.Scan(
		&investment.ID,
		&investment.CreatedAt,
		&investment.UpdatedAt,
		&investment.UserID,
		&investment.PackageID,
		&investment.Units,
		&investment.TxRef,
		&investment.Amount,
		&investment.DueAmount,
		&investment.DueDate,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &investment, nil
}
