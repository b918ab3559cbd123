package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/evaluation"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/pkg/logger"
)

type EvaluationHandler struct {
	db        *sqlite.Client
	evaluator *evaluation.Evaluator
}

func NewEvaluationHandler(db *sqlite.Client, evaluator *evaluation.Evaluator) *EvaluationHandler {
	return &EvaluationHandler{db: db, evaluator: evaluator}
}

// EvaluateAnswer scores a persisted answer's grounding against its own
// citations.
func (h *EvaluationHandler) EvaluateAnswer(c *fiber.Ctx) error {
	id := c.Params("id")

	answer, err := h.db.GetAnswer(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Answer not found",
		})
	}

	report, err := h.evaluator.EvaluateAnswer(c.Context(), answer)
	if err != nil {
		logger.Error("Failed to evaluate answer", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to evaluate answer",
		})
	}

	return c.JSON(report)
}
