package api

import (
	"time"

	"github.com/fsdevblog/peerinvest/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultServiceTimeout = 3 * time.Second
	// DefaultLifecycleTimeout срок покупки и отмены инвестиции, включающий запрос к платежному шлюзу.
	DefaultLifecycleTimeout = 30 * time.Second

	DefaultPurchaseRateLimit rate.Limit = 1
	DefaultPurchaseBurst                = 5
)

const (
	RouteGroup      = "/api"
	RegisterRoute   = "/auth/register"
	LoginRoute      = "/auth/login"
	PackageRoute    = "/package"
	InvestRoute     = "/invest"
	InvestUserRoute = "/invest/u"
	PayoutRoute     = "/payout"
	UserRoute       = "/user"
	MetricsRoute    = "/metrics"
)

type RouterArgs struct {
	Logger             *logrus.Logger
	UserService        UserServicer
	UserDetailsService UserDetailsServicer
	PackageService     PackageServicer
	Ledger             LedgerServicer
	Lifecycle          LifecycleServicer
	PayoutService      PayoutServicer
	JWTSecretKey       []byte
	// LifecycleTimeout срок покупки и отмены. Должен быть больше таймаута платежного шлюза.
	// 0 - DefaultLifecycleTimeout.
	LifecycleTimeout time.Duration
	// PurchaseRateLimit покупок в секунду на юзера. 0 - значение по умолчанию.
	PurchaseRateLimit rate.Limit
	PurchaseBurst     int
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	purchaseLimit := args.PurchaseRateLimit
	if purchaseLimit <= 0 {
		purchaseLimit = DefaultPurchaseRateLimit
	}
	purchaseBurst := args.PurchaseBurst
	if purchaseBurst <= 0 {
		purchaseBurst = DefaultPurchaseBurst
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Metrics())
	r.Use(middlewares.Errors())

	r.GET(MetricsRoute, gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(args.UserService)
	packageHandler := NewPackageHandler(args.PackageService)
	investHandler := NewInvestHandler(args.Ledger, args.Lifecycle, args.PayoutService, args.LifecycleTimeout)
	payoutHandler := NewPayoutHandler(args.PayoutService)
	detailsHandler := NewUserDetailsHandler(args.UserDetailsService)

	api := r.Group(RouteGroup)

	api.POST(RegisterRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Register)
	api.POST(LoginRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Login)

	api.GET(PackageRoute, packageHandler.Index)
	api.GET(PackageRoute+"/:id", packageHandler.Show)

	// ниже все роуты группы требуют авторизованного пользователя.
	authorized := api.Group("", middlewares.AuthRequired(args.JWTSecretKey))

	authorized.GET(InvestUserRoute, investHandler.UserIndex)
	authorized.GET(InvestRoute+"/:id", investHandler.Show)
	authorized.POST(InvestRoute, middlewares.RateLimit(purchaseLimit, purchaseBurst), investHandler.Create)
	authorized.DELETE(InvestRoute+"/:id", investHandler.Cancel)
	authorized.GET(InvestRoute+"/:id/payouts", investHandler.Payouts)

	authorized.POST(UserRoute, detailsHandler.Create)
	authorized.PUT(UserRoute, detailsHandler.Upsert)
	authorized.GET(UserRoute, detailsHandler.Show)

	admin := authorized.Group("", middlewares.AdminRequired())

	admin.POST(PackageRoute, packageHandler.Create)
	admin.PUT(PackageRoute+"/:id", packageHandler.Update)
	admin.DELETE(PackageRoute+"/:id", packageHandler.Delete)

	admin.GET(InvestRoute, investHandler.Index)
	admin.POST(InvestRoute+"/:id/settle", investHandler.Settle)

	admin.POST(PayoutRoute, payoutHandler.Create)

	return r, nil
}
