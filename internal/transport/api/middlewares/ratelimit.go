package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// minLimiterIdleTTL сколько минимум хранится лимитер ключа без запросов.
const minLimiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiters лимитеры по ключам. Лимитеры, к которым не обращались дольше idleTTL, удаляются при
// очередном обращении, но не чаще раза в idleTTL. За idleTTL лимитер успевает полностью восстановиться,
// поэтому удаление не меняет решений о лимите.
type keyedLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	entries   map[any]*limiterEntry
}

func newKeyedLimiters(limit rate.Limit, burst int, now func() time.Time) *keyedLimiters {
	idleTTL := minLimiterIdleTTL
	if limit > 0 && limit != rate.Inf {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idleTTL {
			idleTTL = refill
		}
	}
	return &keyedLimiters{
		limit:     limit,
		burst:     burst,
		idleTTL:   idleTTL,
		now:       now,
		lastSweep: now(),
		entries:   make(map[any]*limiterEntry),
	}
}

func (k *keyedLimiters) allow(key any) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.sweep(now)

	entry, ok := k.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (k *keyedLimiters) sweep(now time.Time) {
	if now.Sub(k.lastSweep) < k.idleTTL {
		return
	}
	for key, entry := range k.entries {
		if now.Sub(entry.lastSeen) >= k.idleTTL {
			delete(k.entries, key)
		}
	}
	k.lastSweep = now
}

func (k *keyedLimiters) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// RateLimit ограничивает частоту запросов для каждого юзера отдельно. Для неавторизованных запросов ключом
// служит ip клиента. Должен стоять после AuthRequired, если ограничение нужно по юзеру.
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	limiters := newKeyedLimiters(limit, burst, time.Now)

	return func(c *gin.Context) {
		key, ok := c.Get(CurrentUserIDKey)
		if !ok {
			key = c.ClientIP()
		}
		if !limiters.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": statusErrorText(http.StatusTooManyRequests)})
			return
		}
		c.Next()
	}
}
