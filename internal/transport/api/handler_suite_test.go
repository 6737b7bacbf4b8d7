package api

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/logger"
	"github.com/fsdevblog/peerinvest/internal/service/tokens"
	"github.com/fsdevblog/peerinvest/internal/transport/api/mocks"
	"github.com/fsdevblog/peerinvest/internal/transport/api/testutils"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

const (
	testUserID  int64 = 1
	otherUserID int64 = 2
	testAdminID int64 = 99
)

// handlerSuite общая часть сьютов хендлеров: роутер на моках сервисов и токены трех пользователей.
type handlerSuite struct {
	suite.Suite
	router *gin.Engine

	mockUserService    *mocks.MockUserServicer
	mockDetailsService *mocks.MockUserDetailsServicer
	mockPackageService *mocks.MockPackageServicer
	mockLedger         *mocks.MockLedgerServicer
	mockLifecycle      *mocks.MockLifecycleServicer
	mockPayoutService  *mocks.MockPayoutServicer

	jwtSecret  []byte
	userToken  string
	otherToken string
	adminToken string
}

func (s *handlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	mockCtrl := gomock.NewController(s.T())

	s.mockUserService = mocks.NewMockUserServicer(mockCtrl)
	s.mockDetailsService = mocks.NewMockUserDetailsServicer(mockCtrl)
	s.mockPackageService = mocks.NewMockPackageServicer(mockCtrl)
	s.mockLedger = mocks.NewMockLedgerServicer(mockCtrl)
	s.mockLifecycle = mocks.NewMockLifecycleServicer(mockCtrl)
	s.mockPayoutService = mocks.NewMockPayoutServicer(mockCtrl)
	s.jwtSecret = []byte("super secret key")

	router, err := New(RouterArgs{
		Logger:             logger.New(io.Discard, ""),
		UserService:        s.mockUserService,
		UserDetailsService: s.mockDetailsService,
		PackageService:     s.mockPackageService,
		Ledger:             s.mockLedger,
		Lifecycle:          s.mockLifecycle,
		PayoutService:      s.mockPayoutService,
		JWTSecretKey:       s.jwtSecret,
		PurchaseRateLimit:  1,
		PurchaseBurst:      100,
	})
	s.Require().NoError(err)
	s.router = router

	s.userToken = s.token(testUserID, domain.RoleUser)
	s.otherToken = s.token(otherUserID, domain.RoleUser)
	s.adminToken = s.token(testAdminID, domain.RoleAdmin)
}

func (s *handlerSuite) token(id int64, role domain.RoleType) string {
	token, err := tokens.GenerateUserJWT(id, role, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	return token
}

// request выполняет запрос к роутеру. payload сериализуется в json, если это не []byte. Возвращает статус
// и тело ответа.
func (s *handlerSuite) request(method, url string, payload any, token string) (int, []byte) {
	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(p)
	default:
		raw, err := json.Marshal(p)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}

	opts := []func(*testutils.RequestOptions){testutils.WithHeader("Content-Type", "application/json")}
	if token != "" {
		opts = append(opts, testutils.WithHeader("Authorization", "Bearer "+token))
	}

	res, err := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: method,
		URL:    RouteGroup + url,
		Body:   body,
	}, opts...)
	s.Require().NoError(err)
	defer func() {
		s.Require().NoError(res.Body.Close())
	}()

	resBody, readErr := io.ReadAll(res.Body)
	s.Require().NoError(readErr)
	return res.StatusCode, resBody
}

// errorBody разбирает тело ошибки в формате middlewares.Errors.
func (s *handlerSuite) errorBody(raw []byte) (string, map[string]string) {
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	s.Require().NoError(json.Unmarshal(raw, &body), string(raw))
	return body.Error, body.Fields
}
