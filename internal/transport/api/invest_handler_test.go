package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvestHandlerTestSuite struct {
	handlerSuite
}

func TestInvestHandlerSuite(t *testing.T) {
	suite.Run(t, new(InvestHandlerTestSuite))
}

func testDomainInvestment(id, userID int64) *domain.Investment {
	return &domain.Investment{
		ID:        id,
		UserID:    userID,
		PackageID: 7,
		Units:     2,
		TxRef:     "tx-1",
		Amount:    decimal.NewFromInt(2000),
		DueAmount: decimal.NewFromInt(2400),
		DueDate:   time.Date(2027, time.April, 30, 0, 0, 0, 0, time.UTC),
	}
}

func (s *InvestHandlerTestSuite) TestIndex() {
	s.mockLedger.EXPECT().ListAll(gomock.Any()).
		Return([]domain.Investment{*testDomainInvestment(1, testUserID), *testDomainInvestment(2, otherUserID)}, nil)

	status, body := s.request(http.MethodGet, InvestRoute, nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var res []InvestmentResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Len(res, 2)

	status, _ = s.request(http.MethodGet, InvestRoute, nil, s.userToken)
	s.Equal(http.StatusForbidden, status)
}

func (s *InvestHandlerTestSuite) TestUserIndex() {
	s.mockLedger.EXPECT().ListByUser(gomock.Any(), testUserID).
		Return([]domain.Investment{*testDomainInvestment(1, testUserID)}, nil)

	status, body := s.request(http.MethodGet, InvestUserRoute, nil, s.userToken)
	s.Require().Equal(http.StatusOK, status)
	var res []InvestmentResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Require().Len(res, 1)
	s.Equal("tx-1", res[0].TxRef)
	s.True(decimal.NewFromInt(2400).Equal(res[0].DueAmount))

	status, _ = s.request(http.MethodGet, InvestUserRoute, nil, "")
	s.Equal(http.StatusUnauthorized, status)
}

func (s *InvestHandlerTestSuite) TestShow() {
	s.mockLedger.EXPECT().FindByID(gomock.Any(), int64(1)).Return(testDomainInvestment(1, testUserID), nil).Times(3)
	s.mockLedger.EXPECT().FindByID(gomock.Any(), int64(2)).Return(nil, domain.ErrInvestmentNotFound)

	cases := []struct {
		name       string
		url        string
		token      string
		wantStatus int
	}{
		{name: "owner", url: InvestRoute + "/1", token: s.userToken, wantStatus: http.StatusOK},
		{name: "admin", url: InvestRoute + "/1", token: s.adminToken, wantStatus: http.StatusOK},
		{name: "another user", url: InvestRoute + "/1", token: s.otherToken, wantStatus: http.StatusForbidden},
		{name: "not found", url: InvestRoute + "/2", token: s.userToken, wantStatus: http.StatusNotFound},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			status, _ := s.request(http.MethodGet, tt.url, nil, tt.token)
			s.Equal(tt.wantStatus, status)
		})
	}
}

func (s *InvestHandlerTestSuite) TestCreate() {
	okArgs := service.PurchaseArgs{UserID: testUserID, PackageID: 7, Units: 2, TxRef: "tx-ok"}
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), okArgs).Return(testDomainInvestment(1, testUserID), nil)
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), service.PurchaseArgs{UserID: testUserID, PackageID: 7, Units: 2, TxRef: "tx-dup"}).
		Return(nil, domain.ErrDuplicateTransaction)
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), service.PurchaseArgs{UserID: testUserID, PackageID: 7, Units: 2, TxRef: "tx-low"}).
		Return(nil, domain.NewPaymentRejectedError("amount paid is less than required"))
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), service.PurchaseArgs{UserID: testUserID, PackageID: 7, Units: 2, TxRef: "tx-units"}).
		Return(nil, domain.ErrInsufficientUnits)
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), service.PurchaseArgs{UserID: testUserID, PackageID: 8, Units: 2, TxRef: "tx-404"}).
		Return(nil, domain.ErrPackageNotFound)
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), service.PurchaseArgs{UserID: testUserID, PackageID: 7, Units: 2, TxRef: "tx-gw"}).
		Return(nil, domain.NewGatewayError(http.StatusServiceUnavailable, "maintenance"))

	cases := []struct {
		name       string
		payload    PurchaseParams
		token      string
		wantStatus int
	}{
		{name: "ok", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-ok"}, token: s.userToken, wantStatus: http.StatusCreated},
		{name: "duplicate tx", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-dup"}, token: s.userToken, wantStatus: http.StatusConflict},
		{name: "payment rejected", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-low"}, token: s.userToken, wantStatus: http.StatusPaymentRequired},
		{name: "insufficient units", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-units"}, token: s.userToken, wantStatus: http.StatusUnprocessableEntity},
		{name: "package not found", payload: PurchaseParams{PackageID: 8, Units: 2, TxRef: "tx-404"}, token: s.userToken, wantStatus: http.StatusNotFound},
		{name: "gateway failure", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-gw"}, token: s.userToken, wantStatus: http.StatusBadGateway},
		{name: "zero units", payload: PurchaseParams{PackageID: 7, TxRef: "tx-zero"}, token: s.userToken, wantStatus: http.StatusUnprocessableEntity},
		{name: "anonymous", payload: PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-ok"}, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			status, _ := s.request(http.MethodPost, InvestRoute, tt.payload, tt.token)
			s.Equal(tt.wantStatus, status)
		})
	}
}

func (s *InvestHandlerTestSuite) TestCreate_PartialFailure() {
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(nil, &domain.PartialFailureError{
		Op:           "purchase",
		InvestmentID: 42,
		TxRef:        "tx-partial",
		Err:          domain.ErrInsufficientUnits,
	})

	status, body := s.request(http.MethodPost, InvestRoute, PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-partial"}, s.userToken)
	s.Require().Equal(http.StatusInternalServerError, status)

	var res struct {
		Error        string `json:"error"`
		InvestmentID int64  `json:"investmentID"`
	}
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Equal(int64(42), res.InvestmentID)
	s.Contains(res.Error, "reconciliation")
}

func (s *InvestHandlerTestSuite) TestCreate_RateLimited() {
	router, err := New(RouterArgs{
		Lifecycle:         s.mockLifecycle,
		JWTSecretKey:      s.jwtSecret,
		PurchaseRateLimit: 0.001,
		PurchaseBurst:     1,
	})
	s.Require().NoError(err)
	s.router = router

	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), gomock.Any()).Return(testDomainInvestment(1, testUserID), nil).Times(2)

	payload := PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-1"}
	status, _ := s.request(http.MethodPost, InvestRoute, payload, s.userToken)
	s.Equal(http.StatusCreated, status)

	status, _ = s.request(http.MethodPost, InvestRoute, payload, s.userToken)
	s.Equal(http.StatusTooManyRequests, status)

	// у другого юзера свой лимит.
	status, _ = s.request(http.MethodPost, InvestRoute, payload, s.otherToken)
	s.Equal(http.StatusCreated, status)
}

func (s *InvestHandlerTestSuite) TestLifecycleTimeoutCoversGateway() {
	const lifecycleTimeout = 20 * time.Second
	router, err := New(RouterArgs{
		Lifecycle:         s.mockLifecycle,
		JWTSecretKey:      s.jwtSecret,
		LifecycleTimeout:  lifecycleTimeout,
		PurchaseRateLimit: 1,
		PurchaseBurst:     100,
	})
	s.Require().NoError(err)
	s.router = router

	// срок покупки и отмены задается роутером, а не общим DefaultServiceTimeout.
	assertDeadline := func(ctx context.Context) {
		deadline, ok := ctx.Deadline()
		s.Require().True(ok)
		s.Greater(time.Until(deadline), DefaultServiceTimeout)
		s.LessOrEqual(time.Until(deadline), lifecycleTimeout)
	}
	s.mockLifecycle.EXPECT().Purchase(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ service.PurchaseArgs) (*domain.Investment, error) {
			assertDeadline(ctx)
			return testDomainInvestment(1, testUserID), nil
		})
	s.mockLifecycle.EXPECT().Cancel(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ service.CancelArgs) (*service.CancelResult, error) {
			assertDeadline(ctx)
			return &service.CancelResult{RefundStatus: domain.GatewayStatusPending}, nil
		})

	status, _ := s.request(http.MethodPost, InvestRoute, PurchaseParams{PackageID: 7, Units: 2, TxRef: "tx-1"}, s.userToken)
	s.Equal(http.StatusCreated, status)

	status, _ = s.request(http.MethodDelete, InvestRoute+"/1", nil, s.userToken)
	s.Equal(http.StatusOK, status)
}

func (s *InvestHandlerTestSuite) TestCancel() {
	s.mockLifecycle.EXPECT().
		Cancel(gomock.Any(), service.CancelArgs{InvestmentID: 1, ActorID: testUserID}).
		Return(&service.CancelResult{RefundStatus: domain.GatewayStatusPending}, nil)
	s.mockLifecycle.EXPECT().
		Cancel(gomock.Any(), service.CancelArgs{InvestmentID: 1, ActorID: testAdminID, ActorIsAdmin: true}).
		Return(&service.CancelResult{Note: domain.GatewayMessageFullyReversed}, nil)
	s.mockLifecycle.EXPECT().
		Cancel(gomock.Any(), service.CancelArgs{InvestmentID: 1, ActorID: otherUserID}).
		Return(nil, domain.ErrForbidden)
	s.mockLifecycle.EXPECT().
		Cancel(gomock.Any(), service.CancelArgs{InvestmentID: 2, ActorID: testUserID}).
		Return(nil, domain.ErrCancellationWindowClosed)
	s.mockLifecycle.EXPECT().
		Cancel(gomock.Any(), service.CancelArgs{InvestmentID: 3, ActorID: testUserID}).
		Return(nil, domain.ErrRefundFailed)

	cases := []struct {
		name       string
		url        string
		token      string
		wantStatus int
		wantBody   CancelResponse
	}{
		{
			name:       "owner",
			url:        InvestRoute + "/1",
			token:      s.userToken,
			wantStatus: http.StatusOK,
			wantBody:   CancelResponse{Message: "investment cancelled", RefundStatus: domain.GatewayStatusPending},
		},
		{
			name:       "admin, already reversed",
			url:        InvestRoute + "/1",
			token:      s.adminToken,
			wantStatus: http.StatusOK,
			wantBody:   CancelResponse{Message: "investment cancelled", Note: domain.GatewayMessageFullyReversed},
		},
		{name: "another user", url: InvestRoute + "/1", token: s.otherToken, wantStatus: http.StatusForbidden},
		{name: "window closed", url: InvestRoute + "/2", token: s.userToken, wantStatus: http.StatusUnprocessableEntity},
		{name: "refund failed", url: InvestRoute + "/3", token: s.userToken, wantStatus: http.StatusBadGateway},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			status, body := s.request(http.MethodDelete, tt.url, nil, tt.token)
			s.Require().Equal(tt.wantStatus, status)
			if tt.wantStatus == http.StatusOK {
				var res CancelResponse
				s.Require().NoError(json.Unmarshal(body, &res))
				s.Equal(tt.wantBody, res)
			}
		})
	}
}

func (s *InvestHandlerTestSuite) TestSettle() {
	s.mockLifecycle.EXPECT().Settle(gomock.Any(), int64(1)).Return(nil)
	s.mockLifecycle.EXPECT().Settle(gomock.Any(), int64(2)).Return(domain.ErrInvestmentNotFound)

	status, _ := s.request(http.MethodPost, InvestRoute+"/1/settle", nil, s.adminToken)
	s.Equal(http.StatusNoContent, status)

	status, _ = s.request(http.MethodPost, InvestRoute+"/2/settle", nil, s.adminToken)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.request(http.MethodPost, InvestRoute+"/1/settle", nil, s.userToken)
	s.Equal(http.StatusForbidden, status)
}

func (s *InvestHandlerTestSuite) TestPayouts() {
	s.mockPayoutService.EXPECT().ListByInvestment(gomock.Any(), int64(1), testUserID, false).
		Return([]domain.Payout{{ID: 3, InvestmentID: 1, TxRef: "payout-1", Amount: decimal.NewFromInt(2400)}}, nil)
	s.mockPayoutService.EXPECT().ListByInvestment(gomock.Any(), int64(1), otherUserID, false).
		Return(nil, domain.ErrForbidden)

	status, body := s.request(http.MethodGet, InvestRoute+"/1/payouts", nil, s.userToken)
	s.Require().Equal(http.StatusOK, status)
	var res []PayoutResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Require().Len(res, 1)
	s.Equal("payout-1", res[0].TxRef)

	status, _ = s.request(http.MethodGet, InvestRoute+"/1/payouts", nil, s.otherToken)
	s.Equal(http.StatusForbidden, status)
}
