package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/pkg/logger"
)

// ClaimExtractor splits answer content into discrete claims paired with the
// passage each claim is drawn from.
type ClaimExtractor interface {
	Extract(ctx context.Context, content string, passages []domain.Passage) ([]ClaimMapping, error)
}

// ClaimMapping ties one claim to its supporting passage.
type ClaimMapping struct {
	Claim   string
	Passage domain.Passage
}

// LLMClaimExtractor asks the generation capability to enumerate claims and
// map each to a source chunk by ordinal.
type LLMClaimExtractor struct {
	llm llm.Service
}

func NewLLMClaimExtractor(svc llm.Service) *LLMClaimExtractor {
	return &LLMClaimExtractor{llm: svc}
}

func (e *LLMClaimExtractor) Extract(ctx context.Context, content string, passages []domain.Passage) ([]ClaimMapping, error) {
	var chunks strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&chunks, "Chunk %d: %s\n\n", i+1, p.Content)
	}

	prompt := fmt.Sprintf(
		"Extract the factual claims from the following answer and map each claim to the source chunk that supports it.\n\n"+
			"Answer: %s\n\nSource Chunks:\n%s\n"+
			"List each claim on its own line in the format: CLAIM - SOURCE CHUNK ID\n"+
			"Use the chunk number as the source chunk ID (for example: chunk 1).",
		content, chunks.String(),
	)

	response, err := e.llm.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}

	mappings := make([]ClaimMapping, 0)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "-") {
			continue
		}
		if !strings.Contains(strings.ToLower(line), "chunk") {
			continue
		}

		idx := strings.LastIndex(line, "-")
		claim := strings.TrimSpace(line[:idx])
		source := strings.ToLower(strings.TrimSpace(line[idx+1:]))
		if claim == "" {
			continue
		}

		passage, ok := resolveSource(source, passages)
		if !ok {
			continue
		}

		mappings = append(mappings, ClaimMapping{
			Claim:   claim,
			Passage: passage,
		})
	}

	return mappings, nil
}

// resolveSource maps a cited source fragment to a passage: by chunk
// ordinal first, then by case-insensitive match against passage ids or
// passage content. The fragment arrives lowercased and trimmed.
func resolveSource(source string, passages []domain.Passage) (domain.Passage, bool) {
	var chunkNum int
	if _, err := fmt.Sscanf(source, "chunk %d", &chunkNum); err == nil {
		if chunkNum >= 1 && chunkNum <= len(passages) {
			return passages[chunkNum-1], true
		}
		return domain.Passage{}, false
	}

	frag := strings.TrimSpace(strings.TrimPrefix(source, "chunk"))
	frag = strings.Trim(frag, `:"' `)
	if frag == "" {
		return domain.Passage{}, false
	}
	for _, p := range passages {
		if strings.Contains(strings.ToLower(p.ID), frag) || strings.Contains(strings.ToLower(p.Content), frag) {
			return p, true
		}
	}
	return domain.Passage{}, false
}

// Binder attaches citations to an answer, linking its claims back to the
// validated evidence. Binding never fails the pipeline: an answer that
// cannot be mapped precisely still leaves with at least one citation when
// evidence exists.
type Binder struct {
	extractor ClaimExtractor
}

func NewBinder(extractor ClaimExtractor) *Binder {
	return &Binder{extractor: extractor}
}

// Bind returns a copy of the answer carrying its citations. An answer with
// no content or no supporting passages gets none.
func (b *Binder) Bind(ctx context.Context, answer domain.Answer, passages []domain.Passage) domain.Answer {
	if answer.Content == "" || len(passages) == 0 {
		return answer.WithCitations(nil)
	}

	mappings, err := b.extractor.Extract(ctx, answer.Content, passages)
	if err != nil {
		logger.Warn("claim extraction failed, falling back to whole-answer citation",
			zap.String("answer_id", answer.ID),
			zap.Error(err),
		)
		mappings = nil
	}

	if len(mappings) == 0 {
		mappings = []ClaimMapping{{
			Claim:   truncateClaim(answer.Content, 200),
			Passage: passages[0],
		}}
	}

	citations := make([]domain.Citation, 0, len(mappings))
	for i, m := range mappings {
		confidence := claimSupportConfidence(m.Claim, m.Passage.Content)
		citation, err := domain.NewCitation(
			fmt.Sprintf("cite_%s_%d", answer.ID, i+1),
			answer.ID,
			m.Passage.ID,
			m.Passage.DocumentID,
			m.Claim,
			m.Passage.Content,
			&confidence,
		)
		if err != nil {
			logger.Warn("skipping malformed citation",
				zap.String("answer_id", answer.ID),
				zap.Error(err),
			)
			continue
		}
		citations = append(citations, citation)
	}

	logger.Info("citations bound",
		zap.String("answer_id", answer.ID),
		zap.Int("citations", len(citations)),
	)

	return answer.WithCitations(citations)
}

// claimSupportConfidence scores how well the passage lexically supports the
// claim: the fraction of the claim's leading words found in the passage.
func claimSupportConfidence(claim, passageContent string) float64 {
	words := strings.Fields(strings.ToLower(claim))
	if len(words) > 10 {
		words = words[:10]
	}
	if len(words) == 0 {
		return 0
	}

	passageLower := strings.ToLower(passageContent)
	found := 0
	for _, w := range words {
		if strings.Contains(passageLower, w) {
			found++
		}
	}

	score := float64(found) / float64(len(words))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// truncateClaim cuts at a rune boundary so stored claim text stays valid
// UTF-8.
func truncateClaim(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
