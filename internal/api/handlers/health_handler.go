package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evidence-agent/backend/internal/cache/redis"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/internal/vector"
)

type HealthHandler struct {
	llm   llm.Service
	index vector.Index
	db    *sqlite.Client
	cache *redis.Client
}

func NewHealthHandler(svc llm.Service, index vector.Index, db *sqlite.Client, cache *redis.Client) *HealthHandler {
	return &HealthHandler{llm: svc, index: index, db: db, cache: cache}
}

// Health reports per-component status. The service is degraded, not down,
// when a single dependency fails.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	components := fiber.Map{}
	healthy := true

	if err := h.db.Ping(); err != nil {
		components["storage"] = "unhealthy"
		healthy = false
	} else {
		storage := fiber.Map{"status": "healthy"}
		if n, err := h.db.CountDocuments(); err == nil {
			storage["documents"] = n
		}
		components["storage"] = storage
	}

	if err := h.llm.Ping(c.Context()); err != nil {
		components["llm"] = "unhealthy"
		healthy = false
	} else {
		components["llm"] = "healthy"
	}

	stats, err := h.index.Stats(c.Context())
	if err != nil {
		components["vector_index"] = "unhealthy"
		healthy = false
	} else {
		components["vector_index"] = fiber.Map{
			"status":        "healthy",
			"total_vectors": stats.TotalVectors,
			"dimension":     stats.Dimension,
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(c.Context()); err != nil {
			components["cache"] = "unhealthy"
		} else {
			components["cache"] = "healthy"
		}
	}

	status := "healthy"
	code := fiber.StatusOK
	if !healthy {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"components": components,
		"time":       time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
