package ratelimit

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestAllowDrainsBudgetByCost(t *testing.T) {
	l := New(Config{
		TokensPerMinute: 60,
		Burst:           10,
		Costs:           Costs{Query: 5, Upload: 10, Read: 1},
	})
	defer l.Stop()

	assert.True(t, l.Allow("user1", 5))
	assert.True(t, l.Allow("user1", 5))
	assert.False(t, l.Allow("user1", 5))

	assert.True(t, l.Allow("user2", 1))
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New(Config{TokensPerMinute: 600, Burst: 10})
	defer l.Stop()

	assert.True(t, l.Allow("user1", 10))
	assert.False(t, l.Allow("user1", 1))

	l.mu.RLock()
	b := l.clients["user1"]
	l.mu.RUnlock()
	b.mu.Lock()
	b.last = time.Now().Add(-time.Minute)
	b.mu.Unlock()

	assert.True(t, l.Allow("user1", 10))
}

func TestRouteCost(t *testing.T) {
	l := New(Config{})
	defer l.Stop()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"query submission", fiber.MethodPost, "/api/v1/query", l.costs.Query},
		{"websocket query", fiber.MethodGet, "/ws/query", l.costs.Query},
		{"document upload", fiber.MethodPost, "/api/v1/documents", l.costs.Upload},
		{"document listing", fiber.MethodGet, "/api/v1/documents", l.costs.Read},
		{"health check", fiber.MethodGet, "/api/v1/health", l.costs.Read},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.routeCost(tt.method, tt.path))
		})
	}
}
