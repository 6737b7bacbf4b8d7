package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsdevblog/peerinvest/internal/cache"
	"github.com/fsdevblog/peerinvest/internal/config"
	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/repository/pgrepo"
	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/fsdevblog/peerinvest/internal/transport/api"
	"github.com/fsdevblog/peerinvest/internal/transport/notify"
	"github.com/fsdevblog/peerinvest/internal/transport/paystack"
	"github.com/fsdevblog/peerinvest/pkg/uow"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout   = 10 * time.Second
	amqpRetries       = 10
	amqpRetryDelay    = 3 * time.Second
	amqpPrefetchCount = 10
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Infof("Starting app with config: %s", a.Config)
	conn, connErr := pgrepo.Connect(notifyCtx, pgrepo.ConnectArgs{
		DSN:           a.Config.DatabaseDSN,
		MigrationsDir: a.Config.MigrationsDir,
	}, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork, uowErr := initUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("app run: %s", uowErr.Error())
	}

	packageCache, closeCache, cacheErr := a.initCache(notifyCtx)
	if cacheErr != nil {
		return fmt.Errorf("app run: %s", cacheErr.Error())
	}
	defer closeCache()

	sender, closeSender, senderErr := a.initSender(notifyCtx)
	if senderErr != nil {
		return fmt.Errorf("app run: %s", senderErr.Error())
	}
	defer closeSender()

	dispatcher := notify.NewDispatcher(notify.DispatcherArgs{
		Sender:     sender,
		Workers:    a.Config.NotifyWorkers,
		BufferSize: a.Config.NotifyBuffer,
		Logger:     a.Logger,
	})

	services, sErr := service.Factory(unitOfWork, service.FactoryArgs{
		JWTSecret:   []byte(a.Config.JWTUserSecret),
		TokenExpire: a.Config.JWTTokenTTL,
		AdminEmails: a.Config.AdminEmails,
		MailFrom:    a.Config.MailFrom,
		Gateway:     paystack.New(a.Config.PaystackBaseURL, a.Config.PaystackSecret, a.Config.GatewayTimeout),
		Notifier:    dispatcher,
		Cache:       packageCache,
		Logger:      a.Logger,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	router, routerErr := api.New(api.RouterArgs{
		Logger:             a.Logger,
		UserService:        services.UserService,
		UserDetailsService: services.UserDetailsService,
		PackageService:     services.PackageService,
		Ledger:             services.Ledger,
		Lifecycle:          services.Lifecycle,
		PayoutService:      services.PayoutService,
		JWTSecretKey:       []byte(a.Config.JWTUserSecret),
		LifecycleTimeout:   lifecycleTimeout(a.Config.GatewayTimeout),
		PurchaseRateLimit:  rate.Limit(a.Config.RateLimitRPS),
		PurchaseBurst:      a.Config.RateLimitBurst,
	})
	if routerErr != nil {
		return fmt.Errorf("app run: %s", routerErr.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(notifyCtx)
	}()

	srv := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	errChan := make(chan error, 1)
	go func() {
		if runErr := srv.ListenAndServe(); runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			errChan <- runErr
		}
	}()

	var runErr error
	select {
	case <-notifyCtx.Done():
		runErr = notifyCtx.Err()
	case runErr = <-errChan:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(notifyCtx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.WithError(err).Error("http server shutdown")
	}

	// диспетчер дописывает очередь писем после отмены контекста.
	wg.Wait()
	stats := dispatcher.Stats()
	a.Logger.WithFields(logrus.Fields{
		"sent":    stats.Sent,
		"failed":  stats.Failed,
		"dropped": stats.Dropped,
	}).Info("notifications dispatcher stopped")

	return runErr
}

// initCache подключает redis кеш каталога пакетов. Пустой REDIS_ADDR отключает кеш.
func (a *App) initCache(ctx context.Context) (service.PackageCache, func(), error) {
	if a.Config.RedisAddr == "" {
		a.Logger.Info("package cache disabled")
		return nil, func() {}, nil
	}
	packageCache, err := cache.Connect(ctx, cache.ConnectArgs{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
		TTL:      a.Config.CacheTTL,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "init cache")
	}
	return packageCache, func() {
		if closeErr := packageCache.Close(); closeErr != nil {
			a.Logger.WithError(closeErr).Warn("close package cache")
		}
	}, nil
}

// initSender выбирает транспорт доставки писем по NOTIFY_TRANSPORT.
func (a *App) initSender(ctx context.Context) (notify.Sender, func(), error) {
	switch a.Config.NotifyTransport {
	case config.NotifyTransportSMTP:
		return notify.NewSMTPSender(notify.SMTPArgs{
			Host:     a.Config.SMTPHost,
			Port:     a.Config.SMTPPort,
			User:     a.Config.SMTPUser,
			Password: a.Config.SMTPPassword,
		}), func() {}, nil
	case config.NotifyTransportAMQP:
		conn, connErr := notify.ConnectAMQP(ctx, a.Config.AMQPURI, amqpRetries, amqpRetryDelay)
		if connErr != nil {
			return nil, nil, pkgerrors.Wrap(connErr, "init notify sender")
		}
		ch, chErr := notify.DeclareQueue(conn, a.Config.NotifyQueue, amqpPrefetchCount)
		if chErr != nil {
			_ = conn.Close()
			return nil, nil, pkgerrors.Wrap(chErr, "init notify sender")
		}
		return notify.NewQueuePublisher(ch, a.Config.NotifyQueue), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	default:
		return notify.NewLogSender(a.Logger), func() {}, nil
	}
}

func initUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	factories := map[domain.RepositoryName]uow.RepositoryFactory{
		domain.UserRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewUserRepository(dbtx)
		},
		domain.PackageRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewPackageRepository(dbtx)
		},
		domain.InvestmentRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewInvestmentRepository(dbtx)
		},
		domain.UserDetailsRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewUserDetailsRepository(dbtx)
		},
		domain.PayoutRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewPayoutRepository(dbtx)
		},
	}
	for name, factory := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factory); regErr != nil {
			return nil, fmt.Errorf("init UOW: %s", regErr.Error())
		}
	}

	return unitOfWork, nil
}

// lifecycleTimeout срок обработки покупки и отмены: запрос к шлюзу плюс запас на обращения к базе.
func lifecycleTimeout(gatewayTimeout time.Duration) time.Duration {
	return gatewayTimeout + 2*api.DefaultServiceTimeout
}
