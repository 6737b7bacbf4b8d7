package api

import (
	"net/http"
	"testing"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PayoutHandlerTestSuite struct {
	handlerSuite
}

func TestPayoutHandlerSuite(t *testing.T) {
	suite.Run(t, new(PayoutHandlerTestSuite))
}

func (s *PayoutHandlerTestSuite) TestCreate() {
	s.mockPayoutService.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, args service.RecordPayoutArgs) (*domain.Payout, error) {
			s.Equal(int64(1), args.InvestmentID)
			s.Equal("payout-1", args.TxRef)
			s.True(decimal.RequireFromString("2400.50").Equal(args.Amount))
			return &domain.Payout{ID: 3, InvestmentID: 1, TxRef: args.TxRef, Amount: args.Amount}, nil
		})
	s.mockPayoutService.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil, domain.ErrDuplicatePayout)

	payload := map[string]any{"investmentId": 1, "txRef": "payout-1", "amount": "2400.50"}

	cases := []struct {
		name       string
		payload    any
		token      string
		wantStatus int
	}{
		{name: "ok", payload: payload, token: s.adminToken, wantStatus: http.StatusCreated},
		{name: "duplicate", payload: payload, token: s.adminToken, wantStatus: http.StatusConflict},
		{name: "missing tx ref", payload: map[string]any{"investmentId": 1}, token: s.adminToken, wantStatus: http.StatusUnprocessableEntity},
		{name: "not admin", payload: payload, token: s.userToken, wantStatus: http.StatusForbidden},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			status, _ := s.request(http.MethodPost, PayoutRoute, tt.payload, tt.token)
			s.Equal(tt.wantStatus, status)
		})
	}
}
