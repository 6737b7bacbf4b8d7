package notify

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/peerinvest/internal/domain"
)

// Sender доставляет письмо адресату или в очередь доставки.
type Sender interface {
	Send(ctx context.Context, mail domain.Mail) error
}
