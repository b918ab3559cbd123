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

const (
	defaultMinPassageLength = 10
	defaultMinOverlapRatio  = 0.3
)

// Validator filters retrieved passages to those judged relevant and
// trustworthy for the query. Failure mode is permissive: a passage whose
// check errors is kept, and a batch-level failure returns the input
// unfiltered. Validator failure never blocks the pipeline.
type Validator struct {
	llm              llm.Service
	minPassageLength int
	minOverlapRatio  float64
}

func NewValidator(svc llm.Service, minPassageLength int, minOverlapRatio float64) *Validator {
	if minPassageLength <= 0 {
		minPassageLength = defaultMinPassageLength
	}
	if minOverlapRatio <= 0 {
		minOverlapRatio = defaultMinOverlapRatio
	}
	return &Validator{
		llm:              svc,
		minPassageLength: minPassageLength,
		minOverlapRatio:  minOverlapRatio,
	}
}

// Validate returns the relevant subsequence of passages, preserving input
// order.
func (v *Validator) Validate(ctx context.Context, query domain.Query, passages []domain.Passage) []domain.Passage {
	if len(passages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("validation aborted, passing evidence through unfiltered",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		return passages
	}

	validated := make([]domain.Passage, 0, len(passages))
	for _, passage := range passages {
		if v.validatePassage(ctx, query, passage) {
			validated = append(validated, passage)
		}
	}

	logger.Info("evidence validated",
		zap.String("query_id", query.ID),
		zap.Int("candidates", len(passages)),
		zap.Int("approved", len(validated)),
	)

	return validated
}

// validatePassage asks the generation capability for a strict relevance
// verdict. Errors default to keeping the passage: a false positive here is
// cheaper than dropping real evidence, and later stages still filter.
func (v *Validator) validatePassage(ctx context.Context, query domain.Query, passage domain.Passage) bool {
	prompt := fmt.Sprintf(
		"Determine if the following text chunk is relevant and contains reliable evidence to answer the query. "+
			"Consider the domain of the query when evaluating reliability.\n\n"+
			"Query: %s\nQuery Domain: %s\n\nText Chunk: %s\n\n"+
			"Respond with ONLY 'RELEVANT' if the chunk is relevant and contains reliable information related to the query, "+
			"or 'NOT_RELEVANT' if it is not relevant or does not contain reliable information.",
		query.Content, query.Domain, passage.Content,
	)

	response, err := v.llm.Generate(ctx, prompt, nil)
	if err != nil {
		logger.Warn("passage validation failed, keeping passage",
			zap.String("passage_id", passage.ID),
			zap.Error(err),
		)
		return true
	}

	verdict := strings.ToUpper(strings.TrimSpace(response))
	if strings.Contains(verdict, "NOT_RELEVANT") {
		return false
	}
	return strings.Contains(verdict, "RELEVANT")
}

// ValidateByRules is the deterministic check: reject passages below the
// minimum length, then accept when the share of distinct query words found
// verbatim in the passage meets the overlap threshold. An empty query
// accepts everything.
func (v *Validator) ValidateByRules(query domain.Query, passage domain.Passage) bool {
	if len(strings.TrimSpace(passage.Content)) < v.minPassageLength {
		return false
	}

	queryWords := distinctWords(query.Content)
	if len(queryWords) == 0 {
		return true
	}

	passageLower := strings.ToLower(passage.Content)
	matching := 0
	for word := range queryWords {
		if strings.Contains(passageLower, word) {
			matching++
		}
	}

	return float64(matching)/float64(len(queryWords)) >= v.minOverlapRatio
}

func distinctWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = struct{}{}
	}
	return words
}
