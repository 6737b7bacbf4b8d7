package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const (
	DefaultQueueName          = "peerinvest.notifications"
	defaultConsumerConcurrent = 10
)

var ErrDeliveriesClosed = errors.New("amqp deliveries channel closed")

// Publisher часть *amqp.Channel для публикации.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer часть *amqp.Channel для чтения очереди.
type Consumer interface {
	Consume(
		queue, consumer string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp.Table,
	) (<-chan amqp.Delivery, error)
}

// ConnectAMQP подключается к брокеру, повторяя попытки retries раз с паузой delay.
func ConnectAMQP(ctx context.Context, uri string, retries int, delay time.Duration) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		conn, err := amqp.Dial(uri)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("amqp connect: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("amqp connect after %d attempts: %w", retries, lastErr)
}

// DeclareQueue открывает канал и объявляет долговечную очередь уведомлений.
func DeclareQueue(conn *amqp.Connection, queue string, prefetch int) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if prefetch > 0 {
		if err = ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("amqp qos: %w", err)
		}
	}
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp declare queue %s: %w", queue, err)
	}
	return ch, nil
}

// QueuePublisher Sender, который публикует письма в очередь. Доставку выполняет QueueConsumer.
type QueuePublisher struct {
	ch    Publisher
	queue string
	mu    sync.Mutex
}

func NewQueuePublisher(ch Publisher, queue string) *QueuePublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &QueuePublisher{ch: ch, queue: queue}
}

func (p *QueuePublisher) Send(_ context.Context, mail domain.Mail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	// amqp.Channel не предназначен для конкурентной публикации.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

type QueueConsumerArgs struct {
	Channel     Consumer
	Queue       string
	Sender      Sender
	Concurrency int
	SendTimeout time.Duration
	Logger      *logrus.Logger
}

// QueueConsumer читает письма из очереди и отправляет их через Sender. Успешная отправка подтверждается,
// неудачная возвращается в очередь. Сообщение, которое не удалось разобрать, отбрасывается.
type QueueConsumer struct {
	ch          Consumer
	queue       string
	sender      Sender
	concurrency int
	sendTimeout time.Duration
	l           *logrus.Entry
}

func NewQueueConsumer(args QueueConsumerArgs) *QueueConsumer {
	c := &QueueConsumer{
		ch:          args.Channel,
		queue:       args.Queue,
		sender:      args.Sender,
		concurrency: args.Concurrency,
		sendTimeout: args.SendTimeout,
		l: args.Logger.WithFields(logrus.Fields{
			"component": "notify",
			"module":    "queue_consumer",
		}),
	}
	if c.queue == "" {
		c.queue = DefaultQueueName
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConsumerConcurrent
	}
	if c.sendTimeout <= 0 {
		c.sendTimeout = defaultSendTimeout
	}
	return c
}

// Run обрабатывает сообщения до отмены контекста. Возвращает ErrDeliveriesClosed, если брокер закрыл канал.
// Перед возвратом дожидается обработки уже полученных сообщений.
func (c *QueueConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume %s: %w", c.queue, err)
	}
	c.l.WithFields(logrus.Fields{
		"queue":       c.queue,
		"concurrency": c.concurrency,
	}).Info("Starting")

	wg := new(sync.WaitGroup)
	defer wg.Wait()

	sem := make(chan struct{}, c.concurrency)
	for {
		select {
		case <-ctx.Done():
			c.l.Info("Got stop signal, exiting...")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() {
					<-sem
					wg.Done()
				}()
				c.handle(ctx, d)
			}()
		}
	}
}

func (c *QueueConsumer) handle(ctx context.Context, d amqp.Delivery) {
	l := c.l.WithField("messageID", d.MessageId)

	var mail domain.Mail
	if err := json.Unmarshal(d.Body, &mail); err != nil {
		l.WithError(err).Error("malformed notification, discarding")
		if nackErr := d.Nack(false, false); nackErr != nil {
			l.WithError(nackErr).Error("nack message")
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sendTimeout)
	defer cancel()

	if err := c.sender.Send(sendCtx, mail); err != nil {
		l.WithError(err).WithField("to", mail.To).Error("deliver notification, requeueing")
		if nackErr := d.Nack(false, true); nackErr != nil {
			l.WithError(nackErr).Error("nack message")
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		l.WithError(ackErr).Error("ack message")
		return
	}
	l.WithField("to", mail.To).Debug("notification delivered")
}

// LogSender пишет письма в лог вместо отправки. Используется, когда транспорт уведомлений не настроен.
type LogSender struct {
	l *logrus.Entry
}

func NewLogSender(l *logrus.Logger) *LogSender {
	return &LogSender{l: l.WithFields(logrus.Fields{
		"component": "notify",
		"module":    "log_sender",
	})}
}

func (s *LogSender) Send(_ context.Context, mail domain.Mail) error {
	s.l.WithFields(logrus.Fields{
		"from":    mail.From,
		"to":      mail.To,
		"subject": mail.Subject,
	}).Info(mail.HTML)
	return nil
}
