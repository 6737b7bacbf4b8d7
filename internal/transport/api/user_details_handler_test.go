package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

type UserDetailsHandlerTestSuite struct {
	handlerSuite
}

func TestUserDetailsHandlerSuite(t *testing.T) {
	suite.Run(t, new(UserDetailsHandlerTestSuite))
}

func (s *UserDetailsHandlerTestSuite) TestCreate() {
	args := service.UserDetailsArgs{
		UserID:        testUserID,
		Bank:          "First Bank",
		AccountName:   "Ada Obi",
		AccountNumber: "0123456789",
	}
	details := &domain.UserDetails{
		ID:            1,
		UserID:        testUserID,
		Bank:          args.Bank,
		AccountName:   args.AccountName,
		AccountNumber: args.AccountNumber,
	}
	s.mockDetailsService.EXPECT().Create(gomock.Any(), args).Return(details, nil)
	s.mockDetailsService.EXPECT().Create(gomock.Any(), args).Return(nil, domain.ErrDetailsPresent)

	payload := UserDetailsParams{BankName: args.Bank, AccountName: args.AccountName, AccountNumber: args.AccountNumber}

	status, body := s.request(http.MethodPost, UserRoute, payload, s.userToken)
	s.Require().Equal(http.StatusCreated, status)
	var res UserDetailsResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Equal("0123456789", res.AccountNumber)
	s.Equal("First Bank", res.BankName)

	status, _ = s.request(http.MethodPost, UserRoute, payload, s.userToken)
	s.Equal(http.StatusConflict, status)
}

func (s *UserDetailsHandlerTestSuite) TestCreate_AccountNumber() {
	cases := []struct {
		name          string
		accountNumber string
	}{
		{name: "too short", accountNumber: "123456789"},
		{name: "too long", accountNumber: "01234567890"},
		{name: "letters", accountNumber: "012345678a"},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			status, body := s.request(http.MethodPost, UserRoute, UserDetailsParams{
				BankName:      "First Bank",
				AccountName:   "Ada Obi",
				AccountNumber: tt.accountNumber,
			}, s.userToken)
			s.Require().Equal(http.StatusUnprocessableEntity, status)
			_, fields := s.errorBody(body)
			s.Contains(fields, "accountNumber")
		})
	}
}

func (s *UserDetailsHandlerTestSuite) TestUpsert() {
	s.mockDetailsService.EXPECT().Upsert(gomock.Any(), service.UserDetailsArgs{
		UserID:        testUserID,
		Bank:          "GT Bank",
		AccountName:   "Ada Obi",
		AccountNumber: "9876543210",
	}).Return(&domain.UserDetails{Bank: "GT Bank", AccountName: "Ada Obi", AccountNumber: "9876543210"}, nil)

	status, _ := s.request(http.MethodPut, UserRoute, UserDetailsParams{
		BankName:      "GT Bank",
		AccountName:   "Ada Obi",
		AccountNumber: "9876543210",
	}, s.userToken)
	s.Equal(http.StatusOK, status)
}

func (s *UserDetailsHandlerTestSuite) TestShow() {
	s.mockDetailsService.EXPECT().Get(gomock.Any(), testUserID).
		Return(&domain.UserDetails{Bank: "GT Bank", AccountName: "Ada Obi", AccountNumber: "9876543210"}, nil)
	s.mockDetailsService.EXPECT().Get(gomock.Any(), otherUserID).Return(nil, domain.ErrDetailsNotFound)

	status, _ := s.request(http.MethodGet, UserRoute, nil, s.userToken)
	s.Equal(http.StatusOK, status)

	status, _ = s.request(http.MethodGet, UserRoute, nil, s.otherToken)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.request(http.MethodGet, UserRoute, nil, "")
	s.Equal(http.StatusUnauthorized, status)
}
