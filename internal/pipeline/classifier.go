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

// Classifier labels a query as medical or legal, or leaves it unresolved.
// Classification failure is non-fatal: downstream stages handle an unknown
// domain gracefully.
type Classifier struct {
	llm llm.Service
}

func NewClassifier(svc llm.Service) *Classifier {
	return &Classifier{llm: svc}
}

// Classify is idempotent: a query that already carries a resolved domain is
// returned unchanged.
func (c *Classifier) Classify(ctx context.Context, query domain.Query) domain.Query {
	if query.Domain.Resolved() {
		logger.Debug("domain already known",
			zap.String("query_id", query.ID),
			zap.String("domain", string(query.Domain)),
		)
		return query
	}

	prompt := fmt.Sprintf(
		"Please classify the following query as either 'medical' or 'legal'. Respond with just one word: medical or legal.\n\nQuery: %s\n\nClassification:",
		query.Content,
	)

	response, err := c.llm.Generate(ctx, prompt, nil)
	if err != nil {
		logger.Warn("query classification failed, leaving domain unknown",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		return query
	}

	classified := parseDomainResponse(response)

	logger.Info("query classified",
		zap.String("query_id", query.ID),
		zap.String("domain", string(classified)),
	)

	return query.WithDomain(classified)
}

func parseDomainResponse(response string) domain.QueryDomain {
	lower := strings.ToLower(strings.TrimSpace(response))

	switch {
	case strings.Contains(lower, "medical"), strings.Contains(lower, "health"), strings.Contains(lower, "clinical"):
		return domain.DomainMedical
	case strings.Contains(lower, "legal"), strings.Contains(lower, "law"), strings.Contains(lower, "court"), strings.Contains(lower, "statute"):
		return domain.DomainLegal
	default:
		return domain.DomainUnknown
	}
}

var medicalKeywords = []string{
	"patient", "treatment", "diagnosis", "disease", "symptom", "medication", "drug",
	"therapy", "surgery", "hospital", "doctor", "clinical", "medical", "health",
	"prescription", "condition", "illness", "medicine",
}

var legalKeywords = []string{
	"court", "law", "legal", "case", "statute", "regulation", "contract", "agreement",
	"attorney", "lawyer", "litigation", "judgment", "ruling", "precedent", "liability",
	"compliance", "regulatory", "doctrine", "jurisdiction", "counsel", "brief",
}

// ClassifyByKeywords is the deterministic, network-free classifier: keyword
// overlap against curated term lists, majority vote, tie resolves to
// unknown.
func (c *Classifier) ClassifyByKeywords(queryText string) domain.QueryDomain {
	lower := strings.ToLower(queryText)

	medicalCount := 0
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			medicalCount++
		}
	}

	legalCount := 0
	for _, kw := range legalKeywords {
		if strings.Contains(lower, kw) {
			legalCount++
		}
	}

	switch {
	case medicalCount > legalCount:
		return domain.DomainMedical
	case legalCount > medicalCount:
		return domain.DomainLegal
	default:
		return domain.DomainUnknown
	}
}
