package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/cache/redis"
	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/metrics"
	"github.com/evidence-agent/backend/internal/pipeline"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/pkg/logger"
	"github.com/evidence-agent/backend/pkg/utils"
)

const answerCacheTTL = 30 * time.Minute

// QueryResponse is the JSON payload returned for a processed query.
type QueryResponse struct {
	QueryID    string             `json:"query_id"`
	AnswerID   string             `json:"answer_id"`
	Content    string             `json:"content"`
	Status     string             `json:"status"`
	Domain     string             `json:"domain"`
	Confidence *float64           `json:"confidence,omitempty"`
	Disclaimer string             `json:"disclaimer"`
	Citations  []CitationResponse `json:"citations"`
	LatencyMS  int64              `json:"latency_ms"`
	Cached     bool               `json:"cached,omitempty"`
}

type CitationResponse struct {
	ID           string   `json:"id"`
	PassageID    string   `json:"passage_id"`
	DocumentID   string   `json:"document_id"`
	ClaimText    string   `json:"claim_text"`
	CitationText string   `json:"citation_text"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

type QueryHandler struct {
	pipeline *pipeline.Pipeline
	db       *sqlite.Client
	cache    *redis.Client
}

// NewQueryHandler wires the query endpoints. cache may be nil.
func NewQueryHandler(p *pipeline.Pipeline, db *sqlite.Client, cache *redis.Client) *QueryHandler {
	return &QueryHandler{pipeline: p, db: db, cache: cache}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
		UserID string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	query, err := domain.NewQuery(
		fmt.Sprintf("qry_%s", uuid.New().String()[:8]),
		req.Query,
		req.UserID,
		domain.QueryDomain(req.Domain),
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	queryHash := utils.HashText(query.Content)
	if h.cache != nil {
		var cached QueryResponse
		hit, err := h.cache.GetAnswer(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			cached.Cached = true
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	start := time.Now()
	processed, answer, err := h.pipeline.Process(c.Context(), query, nil)
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}
	latency := time.Since(start)
	metrics.QueryTotal.WithLabelValues("ok").Inc()

	h.persist(processed, answer, latency)

	resp := buildQueryResponse(processed, answer, latency)
	if h.cache != nil {
		if err := h.cache.SetAnswer(c.Context(), queryHash, resp, answerCacheTTL); err != nil {
			logger.Warn("Failed to cache answer", zap.Error(err))
		}
	}

	return c.JSON(resp)
}

func (h *QueryHandler) persist(query domain.Query, answer domain.Answer, latency time.Duration) {
	if err := h.db.InsertAnswer(answer); err != nil {
		logger.Error("Failed to persist answer", zap.Error(err))
	}

	record := sqlite.QueryRecord{
		ID:        query.ID,
		UserID:    query.UserID,
		Content:   query.Content,
		Domain:    query.Domain,
		Status:    query.Status,
		AnswerID:  answer.ID,
		LatencyMS: latency.Milliseconds(),
		CreatedAt: query.CreatedAt,
	}
	if err := h.db.InsertQueryRecord(record); err != nil {
		logger.Error("Failed to persist query record", zap.Error(err))
	}
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)
	records, err := h.db.GetQueryHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to get query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get query history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"query_id":   r.ID,
			"content":    r.Content,
			"domain":     string(r.Domain),
			"status":     string(r.Status),
			"answer_id":  r.AnswerID,
			"latency_ms": r.LatencyMS,
			"created_at": r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func (h *QueryHandler) GetAnswer(c *fiber.Ctx) error {
	id := c.Params("id")

	answer, err := h.db.GetAnswer(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Answer not found",
		})
	}

	return c.JSON(buildAnswerBody(answer))
}

func (h *QueryHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		AnswerID string `json:"answer_id"`
		Helpful  bool   `json:"helpful"`
		Comment  string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.AnswerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "answer_id is required",
		})
	}

	if err := h.db.StoreFeedback(req.AnswerID, req.Helpful, req.Comment); err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}

func buildQueryResponse(query domain.Query, answer domain.Answer, latency time.Duration) QueryResponse {
	return QueryResponse{
		QueryID:    query.ID,
		AnswerID:   answer.ID,
		Content:    answer.DisplayContent(),
		Status:     string(answer.Status),
		Domain:     string(query.Domain),
		Confidence: answer.Confidence,
		Disclaimer: answer.Disclaimer,
		Citations:  buildCitations(answer.Citations),
		LatencyMS:  latency.Milliseconds(),
	}
}

func buildAnswerBody(answer domain.Answer) fiber.Map {
	return fiber.Map{
		"answer_id":  answer.ID,
		"query_id":   answer.QueryID,
		"content":    answer.DisplayContent(),
		"status":     string(answer.Status),
		"confidence": answer.Confidence,
		"disclaimer": answer.Disclaimer,
		"citations":  buildCitations(answer.Citations),
	}
}

func buildCitations(citations []domain.Citation) []CitationResponse {
	out := make([]CitationResponse, 0, len(citations))
	for _, c := range citations {
		out = append(out, CitationResponse{
			ID:           c.ID,
			PassageID:    c.PassageID,
			DocumentID:   c.DocumentID,
			ClaimText:    c.ClaimText,
			CitationText: c.CitationText,
			Confidence:   c.Confidence,
		})
	}
	return out
}
