// Package evaluation scores how well a finished answer is grounded in the
// evidence it cites. Read-only: it never alters answers.
package evaluation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/pkg/logger"
)

// Grounding classifications.
const (
	ClassGrounded          = "grounded"
	ClassPartiallyGrounded = "partially_grounded"
	ClassUngrounded        = "ungrounded"
)

type Evaluator struct {
	llm llm.Service
}

func NewEvaluator(svc llm.Service) *Evaluator {
	return &Evaluator{llm: svc}
}

// GroundingReport summarizes an answer's evidential support.
type GroundingReport struct {
	AnswerID           string  `json:"answer_id"`
	Classification     string  `json:"classification"`
	CitationCount      int     `json:"citation_count"`
	AvgClaimConfidence float64 `json:"avg_claim_confidence"`
	EvidenceSimilarity float64 `json:"evidence_similarity"`
}

// EvaluateAnswer scores the answer against its own citations: mean claim
// confidence plus cosine similarity between the answer text and the cited
// evidence text.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, answer domain.Answer) (GroundingReport, error) {
	report := GroundingReport{
		AnswerID:      answer.ID,
		CitationCount: len(answer.Citations),
	}

	if answer.Status != domain.AnswerComplete || answer.Content == "" {
		report.Classification = ClassUngrounded
		return report, nil
	}
	if len(answer.Citations) == 0 {
		report.Classification = ClassUngrounded
		return report, nil
	}

	var totalConfidence float64
	scored := 0
	var evidence strings.Builder
	for _, c := range answer.Citations {
		if c.Confidence != nil {
			totalConfidence += *c.Confidence
			scored++
		}
		evidence.WriteString(c.CitationText)
		evidence.WriteString(" ")
	}
	if scored > 0 {
		report.AvgClaimConfidence = totalConfidence / float64(scored)
	}

	similarity, err := e.similarity(ctx, answer.Content, evidence.String())
	if err != nil {
		logger.Warn("Failed to compute evidence similarity",
			zap.String("answer_id", answer.ID),
			zap.Error(err),
		)
	}
	report.EvidenceSimilarity = similarity

	report.Classification = classify(report)

	logger.Info("Answer evaluated",
		zap.String("answer_id", answer.ID),
		zap.String("classification", report.Classification),
		zap.Float64("similarity", report.EvidenceSimilarity),
	)

	return report, nil
}

func classify(r GroundingReport) string {
	switch {
	case r.AvgClaimConfidence >= 0.5 && r.EvidenceSimilarity >= 0.5:
		return ClassGrounded
	case r.AvgClaimConfidence > 0 || r.EvidenceSimilarity > 0:
		return ClassPartiallyGrounded
	default:
		return ClassUngrounded
	}
}

func (e *Evaluator) similarity(ctx context.Context, text1, text2 string) (float64, error) {
	emb1, err := e.llm.Embed(ctx, text1)
	if err != nil {
		return 0, err
	}
	emb2, err := e.llm.Embed(ctx, text2)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(emb1, emb2), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FormatReport renders a report as plain text for logs and CLIs.
func (e *Evaluator) FormatReport(r GroundingReport) string {
	return fmt.Sprintf(`Grounding Report
================

Answer: %s
Classification: %s
Citations: %d
Avg Claim Confidence: %.2f
Evidence Similarity: %.3f
`,
		r.AnswerID,
		r.Classification,
		r.CitationCount,
		r.AvgClaimConfidence,
		r.EvidenceSimilarity,
	)
}
