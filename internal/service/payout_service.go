package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/shopspring/decimal"
)

// PayoutService журнал выплат по инвестициям. Записи только добавляются.
type PayoutService struct {
	payoutRepo PayoutRepository
	ledger     *InvestmentLedger
}

func NewPayoutService(u uow.UOW, ledger *InvestmentLedger) (*PayoutService, error) {
	payoutRepo, err := uow.GetRepositoryAs[PayoutRepository](u, uow.RepositoryName(domain.PayoutRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &PayoutService{
		payoutRepo: payoutRepo,
		ledger:     ledger,
	}, nil
}

type RecordPayoutArgs struct {
	InvestmentID int64
	TxRef        string
	Amount       decimal.Decimal
}

// Record записывает выплату. Повтор транзакции выплаты - domain.ErrDuplicatePayout.
func (s *PayoutService) Record(ctx context.Context, args RecordPayoutArgs) (*domain.Payout, error) {
	var fields = make(map[string]string)
	if args.TxRef == "" {
		fields["txRef"] = "must not be empty"
	}
	if !args.Amount.IsPositive() {
		fields["amount"] = "must be positive"
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	payout, err := s.payoutRepo.Create(ctx, repoargs.CreatePayout(args))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateKey):
			return nil, domain.ErrDuplicatePayout
		case errors.Is(err, domain.ErrForeignKey):
			return nil, domain.ErrInvestmentNotFound
		default:
			return nil, fmt.Errorf("recording payout: %w", err)
		}
	}
	return payout, nil
}

// ListByInvestment возвращает выплаты по инвестиции. Смотреть их может владелец инвестиции или админ.
func (s *PayoutService) ListByInvestment(
	ctx context.Context,
	investmentID int64,
	actorID int64,
	actorIsAdmin bool,
) ([]domain.Payout, error) {
	investment, findErr := s.ledger.FindByID(ctx, investmentID)
	if findErr != nil {
		return nil, findErr //nolint:wrapcheck
	}
	if !actorIsAdmin && investment.UserID != actorID {
		return nil, domain.ErrForbidden
	}

	payouts, err := s.payoutRepo.GetByInvestmentID(ctx, investmentID)
	if err != nil {
		return nil, fmt.Errorf("listing payouts: %w", err)
	}
	return payouts, nil
}
