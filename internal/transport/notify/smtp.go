package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
)

var ErrStartTLSUnsupported = errors.New("smtp server does not support STARTTLS")

// smtpClient часть *smtp.Client, которой пользуется SMTPSender.
type smtpClient interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type SMTPArgs struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPSender отправляет письма по SMTP. Соединение шифруется через STARTTLS, при заданном User
// выполняется PLAIN авторизация.
type SMTPSender struct {
	args SMTPArgs
	dial func(ctx context.Context, addr string) (smtpClient, error)
}

func NewSMTPSender(args SMTPArgs) *SMTPSender {
	s := &SMTPSender{args: args}
	s.dial = s.dialTCP
	return s
}

func (s *SMTPSender) Send(ctx context.Context, mail domain.Mail) error {
	addr := net.JoinHostPort(s.args.Host, strconv.Itoa(s.args.Port))
	client, dialErr := s.dial(ctx, addr)
	if dialErr != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, dialErr)
	}
	// после успешного Quit соединение уже закрыто, ошибка повторного закрытия не интересна.
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return ErrStartTLSUnsupported
	}
	if err := client.StartTLS(&tls.Config{ServerName: s.args.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}

	if s.args.User != "" {
		auth := smtp.PlainAuth("", s.args.User, s.args.Password, s.args.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(mail.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(mail.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, dataErr := client.Data()
	if dataErr != nil {
		return fmt.Errorf("smtp data: %w", dataErr)
	}
	if _, err := w.Write(buildMessage(mail)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close message: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

func (s *SMTPSender) dialTCP(ctx context.Context, addr string) (smtpClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, s.args.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err //nolint:wrapcheck
	}
	return client, nil
}

// buildMessage собирает письмо с html телом. Тема кодируется по RFC 2047.
func buildMessage(mail domain.Mail) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + mail.From + "\r\n")
	buf.WriteString("To: " + mail.To + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", mail.Subject) + "\r\n")
	buf.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(mail.HTML)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
