package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/pipeline"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	pipeline *pipeline.Pipeline
	db       *sqlite.Client
}

func NewWebSocketHandler(p *pipeline.Pipeline, db *sqlite.Client) *WebSocketHandler {
	return &WebSocketHandler{pipeline: p, db: db}
}

// HandleConnection processes queries over a websocket, streaming stage
// progress events followed by the answer text word by word.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			Domain  string `json:"domain"`
			UserID  string `json:"user_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if err := h.streamAnswer(c, msg.Content, msg.Domain, msg.UserID); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, content, queryDomain, userID string) error {
	query, err := domain.NewQuery(
		fmt.Sprintf("qry_%s", uuid.New().String()[:8]),
		content,
		userID,
		domain.QueryDomain(queryDomain),
	)
	if err != nil {
		h.sendError(c, err.Error())
		return nil
	}

	start := time.Now()
	processed, answer, err := h.pipeline.Process(context.Background(), query, func(stage, message string) {
		c.WriteJSON(map[string]interface{}{
			"type":    "stage",
			"stage":   stage,
			"content": message,
		})
	})
	if err != nil {
		return err
	}
	latency := time.Since(start)

	if err := h.db.InsertAnswer(answer); err != nil {
		logger.Error("Failed to persist answer", zap.Error(err))
	}
	record := sqlite.QueryRecord{
		ID:        processed.ID,
		UserID:    processed.UserID,
		Content:   processed.Content,
		Domain:    processed.Domain,
		Status:    processed.Status,
		AnswerID:  answer.ID,
		LatencyMS: latency.Milliseconds(),
		CreatedAt: processed.CreatedAt,
	}
	if err := h.db.InsertQueryRecord(record); err != nil {
		logger.Error("Failed to persist query record", zap.Error(err))
	}

	words := strings.Fields(answer.DisplayContent())
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "chunk",
			"content": chunk,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"query_id":   query.ID,
		"answer_id":  answer.ID,
		"status":     string(answer.Status),
		"confidence": answer.Confidence,
		"disclaimer": answer.Disclaimer,
		"citations":  buildCitations(answer.Citations),
		"latency_ms": latency.Milliseconds(),
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
