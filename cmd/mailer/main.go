package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/peerinvest/internal/config"
	"github.com/fsdevblog/peerinvest/internal/logger"
	"github.com/fsdevblog/peerinvest/internal/transport/notify"
	"github.com/sirupsen/logrus"
)

const (
	connectRetries = 10
	connectDelay   = 3 * time.Second
)

func main() {
	conf := config.MustLoadMailerConfig()
	l := logger.New(os.Stdout, conf.LogLevel)

	if err := run(conf, l); err != nil {
		l.WithError(err).Fatal("mailer stopped")
	}
	l.Info("graceful shutdown")
}

func run(conf *config.MailerConfig, l *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := notify.ConnectAMQP(ctx, conf.AMQPURI, connectRetries, connectDelay)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := notify.DeclareQueue(conn, conf.NotifyQueue, conf.Concurrency)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		_ = ch.Close()
	}()

	consumer := notify.NewQueueConsumer(notify.QueueConsumerArgs{
		Channel: ch,
		Queue:   conf.NotifyQueue,
		Sender: notify.NewSMTPSender(notify.SMTPArgs{
			Host:     conf.SMTPHost,
			Port:     conf.SMTPPort,
			User:     conf.SMTPUser,
			Password: conf.SMTPPassword,
		}),
		Concurrency: conf.Concurrency,
		Logger:      l,
	})

	if runErr := consumer.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr //nolint:wrapcheck
	}
	return nil
}
