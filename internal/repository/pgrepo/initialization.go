package pgrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	// драйвер postgres для применения миграций.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// источник миграций из файлов (*.sql).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts   uint = 30
	defaultRetryInterval      = 3 * time.Second
)

type ConnectArgs struct {
	DSN           string
	MigrationsDir string
	MaxAttempts   uint
	RetryInterval time.Duration
}

// Connect подключается к postgres, повторяя попытки пока база не поднимется, и применяет миграции.
func Connect(ctx context.Context, args ConnectArgs, l *logrus.Logger) (*pgxpool.Pool, error) {
	maxAttempts := args.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryInterval := args.RetryInterval
	if retryInterval == 0 {
		retryInterval = defaultRetryInterval
	}

	log := l.WithFields(logrus.Fields{
		"component": "repository",
		"module":    "pgrepo",
	})

	var attempts uint
	for {
		conn, connErr := newPostgresConnection(ctx, args.DSN)
		if connErr == nil {
			if err := postgresMigrate(args.MigrationsDir, args.DSN); err != nil {
				conn.Close()
				return nil, err
			}
			return conn, nil
		}

		attempts++
		if attempts >= maxAttempts {
			return nil, errors.Wrapf(connErr, "init postgres connection after %d attempts", attempts)
		}
		log.WithError(connErr).
			WithField("CurrentAttempt", fmt.Sprintf("#%d / %d", attempts, maxAttempts)).
			Warnf("init postgres connection error, retrying in %.f seconds", retryInterval.Seconds())

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "init postgres connection")
		case <-time.After(retryInterval):
		}
	}
}

func newPostgresConnection(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, confErr := pgxpool.ParseConfig(dsn)
	if confErr != nil {
		return nil, errors.Wrap(confErr, "parse postgres config")
	}
	pool, poolErr := pgxpool.NewWithConfig(ctx, poolConfig)
	if poolErr != nil {
		return nil, errors.Wrap(poolErr, "create pool")
	}

	// Проверяем, что соединение работает (Ping)
	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, errors.Wrap(pingErr, "connect to postgres")
	}

	return pool, nil
}

func postgresMigrate(dir string, dsn string) error {
	m, mErr := migrate.New("file://"+dir, dsn)
	if mErr != nil {
		return errors.Wrap(mErr, "create migrate instance")
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate schema")
	}
	return nil
}
