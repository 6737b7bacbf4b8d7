package notify

import (
	"math/rand/v2"
	"time"
)

const backoffSpread = 0.15

// backoff пауза перед повтором attempt: base*attempt, рассыпанная на ±15%, чтобы воркеры не повторяли
// отправку синхронно.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	factor := 1 - backoffSpread + rand.Float64()*2*backoffSpread // nolint:gosec
	return time.Duration(float64(base) * float64(attempt) * factor)
}
