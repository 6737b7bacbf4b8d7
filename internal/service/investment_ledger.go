package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
)

// InvestmentLedger единственный владелец записей об инвестициях.
type InvestmentLedger struct {
	uow            uow.UOW
	investmentRepo InvestmentRepository
}

func NewInvestmentLedger(u uow.UOW) (*InvestmentLedger, error) {
	investmentRepo, err := uow.GetRepositoryAs[InvestmentRepository](
		u,
		uow.RepositoryName(domain.InvestmentRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &InvestmentLedger{
		uow:            u,
		investmentRepo: investmentRepo,
	}, nil
}

// IsDuplicateTransaction проверяет, есть ли уже инвестиция с такой платежной транзакцией.
func (l *InvestmentLedger) IsDuplicateTransaction(ctx context.Context, txRef string) (bool, error) {
	exists, err := l.investmentRepo.ExistsByTxRef(ctx, txRef)
	if err != nil {
		return false, fmt.Errorf("checking duplicate transaction: %w", err)
	}
	return exists, nil
}

// Create сохраняет инвестицию. Уникальность txRef проверяется хранилищем в момент записи,
// нарушение возвращается как domain.ErrDuplicateTransaction.
func (l *InvestmentLedger) Create(ctx context.Context, args repoargs.CreateInvestment) (*domain.Investment, error) {
	investment, err := l.investmentRepo.Create(ctx, args)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("creating investment: %w", err)
	}
	return investment, nil
}

func (l *InvestmentLedger) FindByID(ctx context.Context, id int64) (*domain.Investment, error) {
	investment, err := l.investmentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("finding investment: %w", err)
	}
	return investment, nil
}

// ListByUser возвращает инвестиции юзера, отсортированные по дате создания по убыванию. Может вернуть пустой срез.
func (l *InvestmentLedger) ListByUser(ctx context.Context, userID int64) ([]domain.Investment, error) {
	investments, err := l.investmentRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user investments: %w", err)
	}
	return investments, nil
}

func (l *InvestmentLedger) ListAll(ctx context.Context) ([]domain.Investment, error) {
	investments, err := l.investmentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing investments: %w", err)
	}
	return investments, nil
}

// Delete удаляет инвестицию. Удаление идемпотентно: для отсутствующей записи возвращается false без ошибки.
func (l *InvestmentLedger) Delete(ctx context.Context, id int64) (bool, error) {
	return l.delete(ctx, l.investmentRepo, id)
}

// DeleteTx то же, что Delete, но в рамках транзакции tx.
func (l *InvestmentLedger) DeleteTx(ctx context.Context, tx uow.TX, id int64) (bool, error) {
	repo, repoErr := uow.GetAs[InvestmentRepository](tx, uow.RepositoryName(domain.InvestmentRepoName))
	if repoErr != nil {
		return false, repoErr //nolint:wrapcheck
	}
	return l.delete(ctx, repo, id)
}

func (l *InvestmentLedger) delete(ctx context.Context, repo InvestmentRepository, id int64) (bool, error) {
	deleted, err := repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting investment: %w", err)
	}
	return deleted, nil
}
