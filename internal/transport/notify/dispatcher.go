// Package notify доставка уведомлений. Dispatcher принимает письма без блокировки вызывающего и отправляет
// их пулом воркеров через Sender: напрямую по SMTP, в очередь AMQP или в лог.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/metrics"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const (
	defaultWorkers      = 4
	defaultBufferSize   = 100
	defaultSendTimeout  = 10 * time.Second
	defaultMaxAttempts  = 3
	defaultRetryDelay   = time.Second
	defaultDrainTimeout = 15 * time.Second
)

type DispatcherArgs struct {
	Sender      Sender
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *logrus.Logger
}

// DispatcherStats счетчики доставки с момента создания диспетчера.
type DispatcherStats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

// Dispatcher очередь уведомлений с ограниченным буфером и пулом воркеров. Реализует service.Notifier.
type Dispatcher struct {
	sender      Sender
	queue       chan domain.MailComposer
	workers     int
	sendTimeout time.Duration
	maxAttempts int
	retryDelay  time.Duration

	stopped *atomic.Bool
	sent    *atomic.Int64
	failed  *atomic.Int64
	dropped *atomic.Int64

	l *logrus.Entry
}

func NewDispatcher(args DispatcherArgs) *Dispatcher {
	d := &Dispatcher{
		sender:      args.Sender,
		workers:     args.Workers,
		sendTimeout: args.SendTimeout,
		maxAttempts: args.MaxAttempts,
		retryDelay:  args.RetryDelay,
		stopped:     atomic.NewBool(false),
		sent:        atomic.NewInt64(0),
		failed:      atomic.NewInt64(0),
		dropped:     atomic.NewInt64(0),
		l: args.Logger.WithFields(logrus.Fields{
			"component": "notify",
			"module":    "dispatcher",
		}),
	}
	if d.workers <= 0 {
		d.workers = defaultWorkers
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = defaultSendTimeout
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.retryDelay <= 0 {
		d.retryDelay = defaultRetryDelay
	}
	bufferSize := args.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	d.queue = make(chan domain.MailComposer, bufferSize)
	return d
}

// Notify ставит готовое письмо в очередь и сразу возвращает управление.
func (d *Dispatcher) Notify(mail domain.Mail) {
	d.Compose(func(context.Context) (domain.Mail, error) {
		return mail, nil
	})
}

// Compose ставит в очередь сборку письма. compose выполняется воркером перед отправкой, поэтому загрузка
// адресата не задерживает вызывающего. Если буфер полон или диспетчер остановлен, письмо отбрасывается
// с записью в лог.
func (d *Dispatcher) Compose(compose domain.MailComposer) {
	if d.stopped.Load() {
		d.drop("dispatcher stopped")
		return
	}
	select {
	case d.queue <- compose:
	default:
		d.drop("queue is full")
	}
}

// Run запускает воркеров и блокируется до отмены контекста. После отмены новые письма не принимаются,
// а оставшиеся в буфере отправляются в пределах defaultDrainTimeout.
func (d *Dispatcher) Run(ctx context.Context) {
	d.l.WithFields(logrus.Fields{
		"workers": d.workers,
		"buffer":  cap(d.queue),
	}).Info("Starting")

	wg := new(sync.WaitGroup)
	wg.Add(d.workers)
	for i := range d.workers {
		go d.worker(ctx, wg, i+1)
	}

	<-ctx.Done()
	d.stopped.Store(true)
	wg.Wait()

	d.l.WithField("pending", len(d.queue)).Info("Got stop signal, draining queue...")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDrainTimeout)
	defer cancel()
	for {
		select {
		case compose := <-d.queue:
			d.deliver(drainCtx, 0, compose)
		default:
			d.l.WithFields(logrus.Fields{
				"sent":    d.sent.Load(),
				"failed":  d.failed.Load(),
				"dropped": d.dropped.Load(),
			}).Info("Stopped")
			return
		}
	}
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case compose := <-d.queue:
			d.deliver(ctx, workerID, compose)
		}
	}
}

// deliver собирает письмо и отправляет его, повторяя попытки с паузой. Отмена ctx прерывает только ожидание
// повтора: начатая отправка доводится до конца в пределах sendTimeout. Ошибка сборки не повторяется.
func (d *Dispatcher) deliver(ctx context.Context, workerID int, compose domain.MailComposer) {
	l := d.l.WithField("worker", workerID)

	composeCtx, cancelCompose := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	mail, composeErr := compose(composeCtx)
	cancelCompose()
	if composeErr != nil {
		d.fail(l, composeErr)
		return
	}
	l = l.WithFields(logrus.Fields{
		"to":      mail.To,
		"subject": mail.Subject,
	})

	for attempt := 1; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
		err := d.sender.Send(sendCtx, mail)
		cancel()

		if err == nil {
			d.sent.Inc()
			metrics.Notifications.WithLabelValues(metrics.ResultSuccess).Inc()
			l.WithField("attempt", attempt).Debug("notification sent")
			return
		}

		if attempt >= d.maxAttempts {
			d.fail(l.WithField("attempt", attempt), err)
			return
		}
		l.WithError(err).WithField("attempt", attempt).Warn("send notification, retrying")

		select {
		case <-ctx.Done():
			d.fail(l.WithField("attempt", attempt), err)
			return
		case <-time.After(backoff(d.retryDelay, attempt)):
		}
	}
}

func (d *Dispatcher) fail(l *logrus.Entry, err error) {
	d.failed.Inc()
	metrics.Notifications.WithLabelValues(metrics.ResultFailure).Inc()
	l.WithError(err).Error("send notification")
}

func (d *Dispatcher) drop(reason string) {
	d.dropped.Inc()
	metrics.Notifications.WithLabelValues(metrics.ResultDropped).Inc()
	d.l.Errorf("notification dropped: %s", reason)
}
