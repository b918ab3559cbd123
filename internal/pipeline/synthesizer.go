package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/pkg/logger"
)

const defaultBaselineConfidence = 0.8

// Synthesizer produces a draft answer grounded exclusively in the validated
// passages, or an explicit insufficient-evidence signal. A generation
// failure degrades to insufficient evidence rather than propagating.
type Synthesizer struct {
	llm                llm.Service
	baselineConfidence float64
}

func NewSynthesizer(svc llm.Service, baselineConfidence float64) *Synthesizer {
	if baselineConfidence <= 0 || baselineConfidence > 1 {
		baselineConfidence = defaultBaselineConfidence
	}
	return &Synthesizer{llm: svc, baselineConfidence: baselineConfidence}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query domain.Query, passages []domain.Passage) (domain.Answer, error) {
	answerID := fmt.Sprintf("ans_%s", uuid.New().String()[:8])

	contexts := make([]string, 0, len(passages))
	for _, p := range passages {
		contexts = append(contexts, p.Content)
	}

	generated, err := s.llm.Generate(ctx, query.Content, contexts)
	if err != nil {
		logger.Warn("answer generation failed, emitting insufficient evidence",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		return domain.NewAnswer(answerID, query.ID, "", domain.AnswerInsufficientEvidence, nil)
	}

	// The explanatory boilerplate is never stored as content: a refusal
	// signals absence of evidence through status alone.
	if strings.Contains(strings.ToLower(generated), strings.ToLower(domain.InsufficientEvidenceMessage)) {
		logger.Info("generation refused, insufficient evidence",
			zap.String("query_id", query.ID),
			zap.Int("passages", len(passages)),
		)
		return domain.NewAnswer(answerID, query.ID, "", domain.AnswerInsufficientEvidence, nil)
	}

	confidence := s.baselineConfidence

	logger.Info("answer synthesized",
		zap.String("query_id", query.ID),
		zap.String("answer_id", answerID),
		zap.Int("passages", len(passages)),
	)

	return domain.NewAnswer(answerID, query.ID, generated, domain.AnswerComplete, &confidence)
}
