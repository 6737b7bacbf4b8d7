package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/transport/notify/mocks"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type DispatcherTestSuite struct {
	suite.Suite
	mockSender *mocks.MockSender
	logger     *logrus.Logger
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.mockSender = mocks.NewMockSender(ctrl)
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
}

func (s *DispatcherTestSuite) newDispatcher(buffer int) *Dispatcher {
	return NewDispatcher(DispatcherArgs{
		Sender:      s.mockSender,
		Workers:     2,
		BufferSize:  buffer,
		SendTimeout: time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Logger:      s.logger,
	})
}

// run запускает диспетчер и возвращает функцию остановки, дожидающуюся завершения Run.
func (s *DispatcherTestSuite) run(d *Dispatcher) func() {
	ctx, cancel := context.WithCancel(s.T().Context())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func testMail(to string) domain.Mail {
	return domain.Mail{From: "noreply@peerinvest.io", To: to, Subject: "Investment Notification", HTML: "<p>hi</p>"}
}

func (s *DispatcherTestSuite) TestDeliver() {
	d := s.newDispatcher(10)
	mail := testMail("a@example.com")

	s.mockSender.EXPECT().Send(gomock.Any(), mail).Return(nil)

	stop := s.run(d)
	d.Notify(mail)

	s.Eventually(func() bool { return d.Stats().Sent == 1 }, time.Second, 5*time.Millisecond)
	stop()
	s.Equal(DispatcherStats{Sent: 1}, d.Stats())
}

func (s *DispatcherTestSuite) TestRetryThenSuccess() {
	d := s.newDispatcher(10)
	mail := testMail("a@example.com")

	gomock.InOrder(
		s.mockSender.EXPECT().Send(gomock.Any(), mail).Return(errors.New("smtp: 421 try later")),
		s.mockSender.EXPECT().Send(gomock.Any(), mail).Return(nil),
	)

	stop := s.run(d)
	d.Notify(mail)

	s.Eventually(func() bool { return d.Stats().Sent == 1 }, time.Second, 5*time.Millisecond)
	stop()
	s.Zero(d.Stats().Failed)
}

func (s *DispatcherTestSuite) TestGiveUpAfterMaxAttempts() {
	d := s.newDispatcher(10)
	mail := testMail("a@example.com")

	s.mockSender.EXPECT().Send(gomock.Any(), mail).Return(errors.New("smtp: 550 mailbox unavailable")).Times(3)

	stop := s.run(d)
	d.Notify(mail)

	s.Eventually(func() bool { return d.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	stop()
	s.Zero(d.Stats().Sent)
}

func (s *DispatcherTestSuite) TestNotifyNeverBlocks() {
	d := s.newDispatcher(1)

	// диспетчер не запущен: первое письмо занимает буфер, второе отбрасывается.
	done := make(chan struct{})
	go func() {
		d.Notify(testMail("a@example.com"))
		d.Notify(testMail("b@example.com"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("Notify blocked")
	}
	s.Equal(int64(1), d.Stats().Dropped)
}

func (s *DispatcherTestSuite) TestDrainOnShutdown() {
	d := s.newDispatcher(10)

	var mu sync.Mutex
	var delivered []string
	s.mockSender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, mail domain.Mail) error {
			mu.Lock()
			defer mu.Unlock()
			delivered = append(delivered, mail.To)
			return nil
		}).Times(3)

	d.Notify(testMail("a@example.com"))
	d.Notify(testMail("b@example.com"))
	d.Notify(testMail("c@example.com"))

	ctx, cancel := context.WithCancel(s.T().Context())
	cancel()
	d.Run(ctx)

	s.ElementsMatch([]string{"a@example.com", "b@example.com", "c@example.com"}, delivered)
	s.Equal(int64(3), d.Stats().Sent)
}

func (s *DispatcherTestSuite) TestNotifyAfterStopIsDropped() {
	d := s.newDispatcher(10)

	ctx, cancel := context.WithCancel(s.T().Context())
	cancel()
	d.Run(ctx)

	d.Notify(testMail("late@example.com"))
	s.Equal(DispatcherStats{Dropped: 1}, d.Stats())
}

func (s *DispatcherTestSuite) TestComposeRunsInWorker() {
	d := s.newDispatcher(10)
	mail := testMail("a@example.com")

	// сборка письма блокируется до запуска воркеров, а Compose возвращается сразу.
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		d.Compose(func(ctx context.Context) (domain.Mail, error) {
			<-release
			return mail, ctx.Err()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("Compose blocked")
	}

	s.mockSender.EXPECT().Send(gomock.Any(), mail).Return(nil)
	stop := s.run(d)
	close(release)

	s.Eventually(func() bool { return d.Stats().Sent == 1 }, time.Second, 5*time.Millisecond)
	stop()
}

func (s *DispatcherTestSuite) TestComposeFailureIsNotSent() {
	d := s.newDispatcher(10)

	s.mockSender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	stop := s.run(d)
	d.Compose(func(context.Context) (domain.Mail, error) {
		return domain.Mail{}, errors.New("user not found")
	})

	s.Eventually(func() bool { return d.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	stop()
	s.Zero(d.Stats().Sent)
}
