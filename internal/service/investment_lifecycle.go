package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/metrics"
	"github.com/fsdevblog/peerinvest/internal/repository/repoargs"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	purchaseMailSubject  = "Investment Notification"
	cancellationNoteTmpl = "Cancelled investment: %s"
	startDateLayout      = "02/01/2006"

	// committedStepTimeout срок шагов, выполняемых после того, как деньги уже приняты или возвращены шлюзом.
	committedStepTimeout = 5 * time.Second
)

var minorUnitsInMajor = decimal.NewFromInt(100) //nolint:gochecknoglobals

// Clock источник текущего времени.
type Clock func() time.Time

type InvestmentLifecycleArgs struct {
	UOW       uow.UOW
	Inventory *PackageInventory
	Ledger    *InvestmentLedger
	Gateway   PaymentGateway
	Notifier  Notifier
	MailFrom  string
	Clock     Clock
	Logger    *logrus.Logger
}

// InvestmentLifecycle оркестрирует покупку и отмену инвестиций: платежный шлюз, остаток юнитов пакета,
// записи об инвестициях и уведомления.
type InvestmentLifecycle struct {
	uow       uow.UOW
	inventory *PackageInventory
	ledger    *InvestmentLedger
	userRepo  UserRepository
	payouts   PayoutRepository
	gateway   PaymentGateway
	notifier  Notifier
	mailFrom  string
	now       Clock
	l         *logrus.Entry
}

func NewInvestmentLifecycle(args InvestmentLifecycleArgs) (*InvestmentLifecycle, error) {
	if args.Inventory == nil || args.Ledger == nil || args.Gateway == nil || args.Notifier == nil {
		return nil, errors.New("investment lifecycle: inventory, ledger, gateway and notifier are required")
	}
	userRepo, err := uow.GetRepositoryAs[UserRepository](args.UOW, uow.RepositoryName(domain.UserRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	payoutRepo, err := uow.GetRepositoryAs[PayoutRepository](args.UOW, uow.RepositoryName(domain.PayoutRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	now := args.Clock
	if now == nil {
		now = time.Now
	}
	return &InvestmentLifecycle{
		uow:       args.UOW,
		inventory: args.Inventory,
		ledger:    args.Ledger,
		userRepo:  userRepo,
		payouts:   payoutRepo,
		gateway:   args.Gateway,
		notifier:  args.Notifier,
		mailFrom:  args.MailFrom,
		now:       now,
		l: args.Logger.WithFields(logrus.Fields{
			"component": "service",
			"module":    "investment_lifecycle",
		}),
	}, nil
}

type PurchaseArgs struct {
	UserID    int64
	PackageID int64
	Units     int64
	TxRef     string
}

// Purchase покупает units юнитов пакета по оплаченной транзакции TxRef.
//
// Алгоритм работы:
//  1. Проверяет аргументы и отсутствие инвестиции с той же транзакцией.
//  2. Читает условия пакета и считает сумму, сумму к выплате и дату выплаты.
//  3. Проверяет платеж в шлюзе. Платеж принимается только при статусе "success", оплаченной сумме не меньше
//     требуемой и достаточном остатке юнитов. Иначе *domain.PaymentRejectedError, ничего не меняется.
//     Отказ шлюза с кодом 4xx (например, неизвестная транзакция) тоже *domain.PaymentRejectedError.
//  4. Сохраняет инвестицию. Ошибка сохранения прерывает покупку без изменения остатка.
//  5. Списывает юниты. Если списание не удалось, запись уже существует: возвращается *domain.PartialFailureError,
//     запись не удаляется и требует ручной сверки.
//  6. Ставит письмо в очередь уведомлений. Адресат загружается уже в очереди, ошибки уведомления на результат
//     не влияют.
//
// Шаги 4 и 5 выполняются после принятого платежа, поэтому не зависят от отмены ctx и ограничены
// committedStepTimeout.
func (s *InvestmentLifecycle) Purchase(ctx context.Context, args PurchaseArgs) (*domain.Investment, error) {
	investment, err := s.purchase(ctx, args)
	metrics.Purchases.WithLabelValues(purchaseResult(err)).Inc()
	return investment, err
}

func (s *InvestmentLifecycle) purchase(ctx context.Context, args PurchaseArgs) (*domain.Investment, error) {
	if fields := validatePurchaseArgs(args); len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}

	duplicate, dupErr := s.ledger.IsDuplicateTransaction(ctx, args.TxRef)
	if dupErr != nil {
		return nil, fmt.Errorf("purchase: %w", dupErr)
	}
	if duplicate {
		return nil, domain.ErrDuplicateTransaction
	}

	terms, termsErr := s.inventory.GetTerms(ctx, args.PackageID)
	if termsErr != nil {
		return nil, termsErr //nolint:wrapcheck
	}

	amount := terms.Cost.Mul(decimal.NewFromInt(args.Units))
	dueAmount := amount.Add(amount.Mul(terms.ROI).Div(decimal.NewFromInt(100))) //nolint:mnd

	verification, verifyErr := s.gateway.Verify(ctx, args.TxRef)
	if verifyErr != nil {
		var gwErr *domain.GatewayError
		if errors.As(verifyErr, &gwErr) && gwErr.IsClientError() {
			return nil, domain.NewPaymentRejectedError(fmt.Sprintf("gateway rejected transaction: %s", gwErr.Message))
		}
		return nil, fmt.Errorf("purchase: verifying payment: %w", verifyErr)
	}
	if rejectErr := acceptPayment(verification, amount, args.Units, terms.UnitsLeft); rejectErr != nil {
		return nil, rejectErr
	}

	ctx, cancel := committedContext(ctx)
	defer cancel()

	investment, createErr := s.ledger.Create(ctx, repoargs.CreateInvestment{
		UserID:    args.UserID,
		PackageID: args.PackageID,
		Units:     args.Units,
		TxRef:     args.TxRef,
		Amount:    amount,
		DueAmount: dueAmount,
		DueDate:   terms.DueDate(),
	})
	if createErr != nil {
		return nil, createErr //nolint:wrapcheck
	}

	if _, reserveErr := s.inventory.Reserve(ctx, args.PackageID, args.Units); reserveErr != nil {
		s.l.WithError(reserveErr).WithFields(logrus.Fields{
			"investmentID": investment.ID,
			"packageID":    args.PackageID,
			"txRef":        args.TxRef,
			"units":        args.Units,
		}).Error("investment created but units were not reserved, reconciliation required")
		return nil, &domain.PartialFailureError{
			Op:           "purchase",
			InvestmentID: investment.ID,
			TxRef:        investment.TxRef,
			Err:          reserveErr,
		}
	}

	s.notifyPurchase(investment, terms)
	return investment, nil
}

// committedContext контекст для шагов после движения денег: сохраняет значения ctx, но не его отмену.
func committedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), committedStepTimeout)
}

func validatePurchaseArgs(args PurchaseArgs) map[string]string {
	var fields = make(map[string]string)
	if args.Units < 1 {
		fields["units"] = "must be at least 1"
	}
	if args.TxRef == "" {
		fields["txRef"] = "must not be empty"
	}
	return fields
}

// acceptPayment правило приема платежа. Все три условия обязательны.
func acceptPayment(
	verification *domain.PaymentVerification,
	amount decimal.Decimal,
	units int64,
	unitsLeft int64,
) error {
	if verification.Status != domain.GatewayStatusSuccess {
		return domain.NewPaymentRejectedError(fmt.Sprintf("transaction status is %q", verification.Status))
	}
	paid := decimal.NewFromInt(verification.AmountMinor).Div(minorUnitsInMajor)
	if paid.LessThan(amount) {
		return domain.NewPaymentRejectedError(
			fmt.Sprintf("paid %s is less than required %s", paid.StringFixed(2), amount.StringFixed(2)),
		)
	}
	if units > unitsLeft {
		return domain.NewPaymentRejectedError(fmt.Sprintf("only %d units left", unitsLeft))
	}
	return nil
}

// notifyPurchase ставит в Notifier сборку письма о покупке. Юзер загружается при сборке, вне запроса.
func (s *InvestmentLifecycle) notifyPurchase(investment *domain.Investment, terms *domain.PackageTerms) {
	s.notifier.Compose(func(ctx context.Context) (domain.Mail, error) {
		return s.purchaseMail(ctx, investment, terms)
	})
}

func (s *InvestmentLifecycle) purchaseMail(
	ctx context.Context,
	investment *domain.Investment,
	terms *domain.PackageTerms,
) (domain.Mail, error) {
	user, err := s.userRepo.FindUserByID(ctx, investment.UserID)
	if err != nil {
		return domain.Mail{}, fmt.Errorf("purchase notification for investment %d: %w", investment.ID, err)
	}
	body := fmt.Sprintf(
		"<p>Hello %s,<br/>You have successfully purchased %d units of %s.</p><p>Package start date is: %s</p>",
		html.EscapeString(user.LastName),
		investment.Units,
		html.EscapeString(terms.Title),
		terms.StartDate.Format(startDateLayout),
	)
	return domain.Mail{
		From:    s.mailFrom,
		To:      user.Email,
		Subject: purchaseMailSubject,
		HTML:    body,
	}, nil
}

type CancelArgs struct {
	InvestmentID int64
	ActorID      int64
	ActorIsAdmin bool
}

// CancelResult итог отмены. RefundStatus статус возврата из шлюза, пустой если шлюз сообщил, что транзакция
// уже полностью возвращена; тогда Note содержит сообщение шлюза.
type CancelResult struct {
	RefundStatus string
	Note         string
}

// Cancel отменяет инвестицию и возвращает деньги через шлюз.
//
// Алгоритм работы:
//  1. Загружает инвестицию и проверяет, что отменяет владелец или админ.
//  2. Загружает условия пакета. Отмена возможна пока now <= startDate + 24h, иначе
//     domain.ErrCancellationWindowClosed.
//  3. Инвестицию с выплатами отменить нельзя: domain.ErrInvestmentHasPayouts до обращения к шлюзу.
//  4. Запрашивает возврат в шлюзе. Статусы "pending" и "success", а также отказ шлюза с сообщением о полностью
//     возвращенной транзакции считаются успехом.
//  5. При успехе в одной транзакции удаляет инвестицию и возвращает юниты пакету.
//     Любой другой ответ шлюза - domain.ErrRefundFailed без изменений.
//
// Начатый возврат и следующее за ним удаление не зависят от отмены ctx: возврат ограничен таймаутом клиента
// шлюза, удаление committedStepTimeout.
func (s *InvestmentLifecycle) Cancel(ctx context.Context, args CancelArgs) (*CancelResult, error) {
	result, err := s.cancel(ctx, args)
	metrics.Cancellations.WithLabelValues(cancelResult(err)).Inc()
	return result, err
}

func (s *InvestmentLifecycle) cancel(ctx context.Context, args CancelArgs) (*CancelResult, error) {
	investment, findErr := s.ledger.FindByID(ctx, args.InvestmentID)
	if findErr != nil {
		return nil, findErr //nolint:wrapcheck
	}
	if !args.ActorIsAdmin && investment.UserID != args.ActorID {
		return nil, domain.ErrForbidden
	}

	terms, termsErr := s.inventory.GetTerms(ctx, investment.PackageID)
	if termsErr != nil {
		return nil, termsErr //nolint:wrapcheck
	}
	if s.now().After(terms.CancellationDeadline()) {
		return nil, domain.ErrCancellationWindowClosed
	}

	payouts, payoutsErr := s.payouts.GetByInvestmentID(ctx, investment.ID)
	if payoutsErr != nil {
		return nil, fmt.Errorf("cancel: loading payouts: %w", payoutsErr)
	}
	if len(payouts) > 0 {
		return nil, domain.ErrInvestmentHasPayouts
	}

	result, refundErr := s.refund(context.WithoutCancel(ctx), investment, terms)
	if refundErr != nil {
		return nil, refundErr
	}

	settleCtx, cancel := committedContext(ctx)
	defer cancel()

	if settleErr := s.settle(settleCtx, investment); settleErr != nil {
		s.l.WithError(settleErr).WithFields(logrus.Fields{
			"investmentID": investment.ID,
			"txRef":        investment.TxRef,
		}).Error("refund accepted but investment was not settled, reconciliation required")
		return nil, &domain.PartialFailureError{
			Op:           "cancel",
			InvestmentID: investment.ID,
			TxRef:        investment.TxRef,
			Err:          settleErr,
		}
	}
	return result, nil
}

func (s *InvestmentLifecycle) refund(
	ctx context.Context,
	investment *domain.Investment,
	terms *domain.PackageTerms,
) (*CancelResult, error) {
	refund, err := s.gateway.Refund(ctx, investment.TxRef, fmt.Sprintf(cancellationNoteTmpl, terms.Title))
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) && gwErr.Message == domain.GatewayMessageFullyReversed {
			return &CancelResult{Note: gwErr.Message}, nil
		}
		s.l.WithError(err).WithField("investmentID", investment.ID).Warn("refund failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrRefundFailed, err)
	}

	switch refund.Status {
	case domain.GatewayStatusPending, domain.GatewayStatusSuccess:
		return &CancelResult{RefundStatus: refund.Status}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected refund status %q", domain.ErrRefundFailed, refund.Status)
	}
}

// Settle удаляет инвестицию и возвращает юниты пакету без обращения к шлюзу. Используется админом, когда возврат
// подтвержден вне системы. Повторный вызов ничего не меняет.
func (s *InvestmentLifecycle) Settle(ctx context.Context, investmentID int64) error {
	investment, findErr := s.ledger.FindByID(ctx, investmentID)
	if findErr != nil {
		return findErr //nolint:wrapcheck
	}
	if err := s.settle(ctx, investment); err != nil {
		return fmt.Errorf("settling investment: %w", err)
	}
	return nil
}

// settle удаляет запись и возвращает юниты в одной транзакции. Юниты возвращаются только если запись
// действительно была удалена, поэтому повтор не вернет их дважды.
func (s *InvestmentLifecycle) settle(ctx context.Context, investment *domain.Investment) error {
	var released bool
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		deleted, deleteErr := s.ledger.DeleteTx(c, tx, investment.ID)
		if errors.Is(deleteErr, domain.ErrForeignKey) {
			return domain.ErrInvestmentHasPayouts
		}
		if deleteErr != nil {
			return deleteErr
		}
		if !deleted {
			return nil
		}
		if _, releaseErr := s.inventory.ReleaseTx(c, tx, investment.PackageID, investment.Units); releaseErr != nil {
			return releaseErr
		}
		released = true
		return nil
	})
	if txErr != nil {
		return txErr //nolint:wrapcheck
	}
	if released {
		s.inventory.Invalidate(ctx, investment.PackageID)
	}
	return nil
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, domain.ErrPartialFailure):
		return metrics.ResultPartial
	case errors.Is(err, domain.ErrPaymentRejected),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailure
	}
}

func cancelResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, domain.ErrPartialFailure):
		return metrics.ResultPartial
	case errors.Is(err, domain.ErrRefundFailed):
		return metrics.ResultFailure
	default:
		return metrics.ResultRejected
	}
}
