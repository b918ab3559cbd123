package ratelimit

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Costs weights each route class against the per-client budget. Query and
// upload routes fan out into embedding and generation calls downstream, so
// they draw more than plain reads.
type Costs struct {
	Query  int
	Upload int
	Read   int
}

type Config struct {
	TokensPerMinute int
	Burst           int
	Costs           Costs
	Logger          *zap.Logger
}

type budget struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// Limiter meters per-client token budgets, keyed by user id when the
// caller identifies itself and by remote address otherwise.
type Limiter struct {
	mu      sync.RWMutex
	clients map[string]*budget

	burst        float64
	refillPerSec float64
	costs        Costs
	logger       *zap.Logger
	done         chan struct{}
}

func New(cfg Config) *Limiter {
	if cfg.TokensPerMinute <= 0 {
		cfg.TokensPerMinute = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.TokensPerMinute
	}
	if cfg.Costs == (Costs{}) {
		cfg.Costs = Costs{Query: 5, Upload: 10, Read: 1}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Limiter{
		clients:      make(map[string]*budget),
		burst:        float64(cfg.Burst),
		refillPerSec: float64(cfg.TokensPerMinute) / 60.0,
		costs:        cfg.Costs,
		logger:       cfg.Logger,
		done:         make(chan struct{}),
	}

	go l.evictIdle()

	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("X-User-ID")
		if key == "" {
			key = c.IP()
		}

		cost := l.routeCost(c.Method(), c.Path())
		if !l.Allow(key, cost) {
			l.logger.Warn("Request budget exhausted",
				zap.String("client", key),
				zap.String("path", c.Path()),
				zap.Int("cost", cost),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

// routeCost classes a request by what it triggers: answer pipeline runs
// and document ingestion are metered heavier than reads.
func (l *Limiter) routeCost(method, path string) int {
	switch {
	case method == fiber.MethodPost && strings.HasSuffix(path, "/query"),
		strings.HasPrefix(path, "/ws"):
		return l.costs.Query
	case method == fiber.MethodPost && strings.HasSuffix(path, "/documents"):
		return l.costs.Upload
	default:
		return l.costs.Read
	}
}

// Allow reports whether the client's budget covers the cost and, if so,
// deducts it.
func (l *Limiter) Allow(key string, cost int) bool {
	l.mu.RLock()
	b, ok := l.clients[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		b, ok = l.clients[key]
		if !ok {
			b = &budget{tokens: l.burst, last: time.Now()}
			l.clients[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens = min(l.burst, b.tokens+now.Sub(b.last).Seconds()*l.refillPerSec)
	b.last = now

	if b.tokens < float64(cost) {
		return false
	}
	b.tokens -= float64(cost)
	return true
}

func (l *Limiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, b := range l.clients {
				b.mu.Lock()
				idle := now.Sub(b.last) > 10*time.Minute
				b.mu.Unlock()
				if idle {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	close(l.done)
}
