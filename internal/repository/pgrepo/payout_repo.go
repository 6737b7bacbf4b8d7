package pgrepo

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, created_at, updated_at, investment_id, tx_ref, amount`

type PayoutRepository struct {
	conn uow.DBTX
}

func NewPayoutRepository(conn uow.DBTX) *PayoutRepository {
	return &PayoutRepository{conn: conn}
}

func (r *PayoutRepository) Create(ctx context.Context, args repoargs.CreatePayout) (*domain.Payout, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO payouts (investment_id, tx_ref, amount)
		VALUES ($1, $2, $3)
		RETURNING `+payoutColumns,
		args.InvestmentID, args.TxRef, args.Amount,
	)
	payout, err := scanPayout(row)
	if err != nil {
		return nil, convertErr(err, "creating payout with tx `%s`", args.TxRef)
	}
	return payout, nil
}

func (r *PayoutRepository) GetByInvestmentID(ctx context.Context, investmentID int64) ([]domain.Payout, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE investment_id = $1
		ORDER BY created_at, id`,
		investmentID,
	)
	if err != nil {
		return nil, convertErr(err, "getting payouts by investment %d", investmentID)
	}
	defer rows.Close()

	var payouts = make([]domain.Payout, 0)
	for rows.Next() {
		payout, scanErr := scanPayout(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning payout")
		}
		payouts = append(payouts, *payout)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "reading payouts")
	}
	return payouts, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var payout domain.Payout
	if err := row.Scan(
		&payout.ID,
		&payout.CreatedAt,
		&payout.UpdatedAt,
		&payout.InvestmentID,
		&payout.TxRef,
		&payout.Amount,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &payout, nil
}
