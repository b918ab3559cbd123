package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/pkg/logger"
)

// Phrases that state certainty or directives no grounded answer may carry.
var prohibitedPhrases = []string{
	"definitive diagnosis",
	"prescribe medication",
	"this treatment will cure",
	"guaranteed results",
	"you must do this",
	"definitely should",
	"always required",
}

// SafetyAssessment is the read-only verdict on an answer. It never mutates
// the answer it describes.
type SafetyAssessment struct {
	ContentSafe               bool
	RequiresDisclaimer        bool
	ConfidenceLevel           float64
	CitationCompliance        bool
	ProhibitedContentDetected []string
}

// Reviewer is the final pipeline stage: it softens overly assertive
// language and guarantees the disclaimer. It is the only stage allowed to
// downgrade a complete answer to insufficient evidence.
type Reviewer struct {
	llm llm.Service
}

func NewReviewer(svc llm.Service) *Reviewer {
	return &Reviewer{llm: svc}
}

// Review returns the finalized answer. Every answer leaves with the
// disclaimer attached, whatever its status.
func (r *Reviewer) Review(ctx context.Context, answer domain.Answer) domain.Answer {
	if answer.Status == domain.AnswerInsufficientEvidence {
		return answer.WithDisclaimer(domain.StandardDisclaimer)
	}

	rewritten, err := r.rewrite(ctx, answer.Content)
	if err != nil {
		logger.Warn("safety rewrite failed, keeping original content",
			zap.String("answer_id", answer.ID),
			zap.Error(err),
		)
		return answer.WithDisclaimer(domain.StandardDisclaimer)
	}

	rewritten = strings.TrimSpace(rewritten)

	// A rewrite that comes back empty or as a refusal means the content
	// could not be made safe. Downgrade rather than ship it.
	if rewritten == "" || strings.Contains(strings.ToLower(rewritten), strings.ToLower(domain.InsufficientEvidenceMessage)) {
		logger.Warn("safety rewrite rejected content, downgrading to insufficient evidence",
			zap.String("answer_id", answer.ID),
		)
		downgraded, derr := domain.NewAnswer(answer.ID, answer.QueryID, "", domain.AnswerInsufficientEvidence, nil)
		if derr != nil {
			return answer.WithDisclaimer(domain.StandardDisclaimer)
		}
		return downgraded.WithDisclaimer(domain.StandardDisclaimer)
	}

	logger.Info("safety review complete",
		zap.String("answer_id", answer.ID),
		zap.Bool("content_changed", rewritten != answer.Content),
	)

	return answer.WithContent(rewritten).WithDisclaimer(domain.StandardDisclaimer)
}

func (r *Reviewer) rewrite(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Review the following response for safety guidelines compliance. "+
			"Rewrite it to remove any definitive medical or legal advice, soften absolute statements, "+
			"and keep every factual claim intact. Do not add new claims.\n\n"+
			"Response: %s\n\nImproved response:",
		content,
	)
	return r.llm.Generate(ctx, prompt, nil)
}

// EvaluateSafety inspects an answer without changing it, for audit and
// metrics surfaces.
func (r *Reviewer) EvaluateSafety(answer domain.Answer) SafetyAssessment {
	detected := DetectProhibitedContent(answer.Content)

	confidence := 0.0
	if answer.Confidence != nil {
		confidence = *answer.Confidence
	}

	return SafetyAssessment{
		ContentSafe:               len(detected) == 0,
		RequiresDisclaimer:        true,
		ConfidenceLevel:           confidence,
		CitationCompliance:        answer.Status != domain.AnswerComplete || len(answer.Citations) > 0,
		ProhibitedContentDetected: detected,
	}
}

// DetectProhibitedContent returns the prohibited phrases present in the
// text, matched case-insensitively.
func DetectProhibitedContent(text string) []string {
	lower := strings.ToLower(text)
	var detected []string
	for _, phrase := range prohibitedPhrases {
		if strings.Contains(lower, phrase) {
			detected = append(detected, phrase)
		}
	}
	return detected
}
