package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/vector/flat"
	"github.com/evidence-agent/backend/pkg/config"
)

func newTestPipeline(t *testing.T) (*Pipeline, *flat.Index, llm.Service) {
	t.Helper()

	svc := llm.NewMockService(64)
	index, err := flat.New(t.TempDir())
	require.NoError(t, err)

	cfg := config.PipelineConfig{
		RetrievalTopK:       5,
		BaselineConfidence:  0.8,
		MinPassageLength:    10,
		TermOverlapMinRatio: 0.3,
	}
	return New(svc, index, cfg), index, svc
}

func seedPassage(t *testing.T, index *flat.Index, svc llm.Service, id, docID, content string, chunkIdx int) {
	t.Helper()

	embedding, err := svc.Embed(context.Background(), content)
	require.NoError(t, err)
	passage, err := domain.NewPassage(id, docID, content, chunkIdx, embedding)
	require.NoError(t, err)
	require.NoError(t, index.Add(context.Background(), []domain.Passage{passage}))
}

func TestProcessNoEvidence(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	query, err := domain.NewQuery("q1", "What is the recommended aspirin dosage?", "", domain.DomainUnknown)
	require.NoError(t, err)

	_, answer, err := p.Process(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerInsufficientEvidence, answer.Status)
	assert.Empty(t, answer.Content)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, domain.InsufficientEvidenceMessage, answer.DisplayContent())
	assert.Equal(t, domain.StandardDisclaimer, answer.Disclaimer)
}

func TestProcessWithEvidence(t *testing.T) {
	p, index, svc := newTestPipeline(t)

	seedPassage(t, index, svc, "p1", "doc1",
		"Aspirin is commonly prescribed at low doses for cardiovascular prevention in adult patients.", 0)
	seedPassage(t, index, svc, "p2", "doc1",
		"Clinical guidelines recommend consulting a physician before starting daily aspirin therapy.", 1)

	query, err := domain.NewQuery("q1", "What do guidelines say about aspirin therapy for patients?", "", domain.DomainUnknown)
	require.NoError(t, err)

	processed, answer, err := p.Process(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.QueryCompleted, processed.Status)
	assert.Equal(t, domain.DomainMedical, processed.Domain)
	assert.Equal(t, domain.AnswerComplete, answer.Status)
	assert.NotEmpty(t, answer.Content)
	require.NotEmpty(t, answer.Citations)
	assert.Equal(t, domain.StandardDisclaimer, answer.Disclaimer)

	for _, c := range answer.Citations {
		assert.Equal(t, answer.ID, c.AnswerID)
		assert.NotEmpty(t, c.PassageID)
		assert.NotEmpty(t, c.ClaimText)
		assert.NotEmpty(t, c.CitationText)
	}
}

func TestProcessReportsProgress(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	query, err := domain.NewQuery("q1", "any question", "", domain.DomainUnknown)
	require.NoError(t, err)

	var stages []string
	_, _, err = p.Process(context.Background(), query, func(stage, message string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		StageClassification,
		StageRetrieval,
		StageValidation,
		StageSynthesis,
		StageCitationBind,
		StageSafetyReview,
	}, stages)
}

func TestProcessAdvancesQueryLifecycle(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	query, err := domain.NewQuery("q1", "any question", "", domain.DomainUnknown)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryPending, query.Status)

	processed, _, err := p.Process(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.QueryCompleted, processed.Status)
	assert.Equal(t, domain.QueryPending, query.Status)
}

func TestClassifierIdempotent(t *testing.T) {
	c := NewClassifier(llm.NewMockService(64))

	query, err := domain.NewQuery("q1", "What is negligence?", "", domain.DomainLegal)
	require.NoError(t, err)

	classified := c.Classify(context.Background(), query)
	assert.Equal(t, domain.DomainLegal, classified.Domain)
}

func TestClassifyByKeywords(t *testing.T) {
	c := NewClassifier(llm.NewMockService(64))

	tests := []struct {
		name  string
		query string
		want  domain.QueryDomain
	}{
		{"medical terms", "What treatment options exist for this patient's diagnosis?", domain.DomainMedical},
		{"legal terms", "Does this contract create liability under the statute?", domain.DomainLegal},
		{"no terms", "What is the weather like today?", domain.DomainUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyByKeywords(tt.query))
		})
	}
}

func TestValidateByRules(t *testing.T) {
	v := NewValidator(llm.NewMockService(64), 10, 0.3)

	query, err := domain.NewQuery("q1", "aspirin dosage guidelines", "", domain.DomainMedical)
	require.NoError(t, err)

	t.Run("rejects short passage", func(t *testing.T) {
		p, err := domain.NewPassage("p1", "d1", "short", 0, nil)
		require.NoError(t, err)
		assert.False(t, v.ValidateByRules(query, p))
	})

	t.Run("accepts passage with term overlap", func(t *testing.T) {
		p, err := domain.NewPassage("p1", "d1", "The aspirin dosage recommended by guidelines is low.", 0, nil)
		require.NoError(t, err)
		assert.True(t, v.ValidateByRules(query, p))
	})

	t.Run("rejects passage without overlap", func(t *testing.T) {
		p, err := domain.NewPassage("p1", "d1", "Completely unrelated text about gardening and flowers here.", 0, nil)
		require.NoError(t, err)
		assert.False(t, v.ValidateByRules(query, p))
	})

	t.Run("empty query accepts long passage", func(t *testing.T) {
		empty := domain.Query{ID: "q2", Content: "   "}
		p, err := domain.NewPassage("p1", "d1", "Any sufficiently long passage content.", 0, nil)
		require.NoError(t, err)
		assert.True(t, v.ValidateByRules(empty, p))
	})
}

func TestSynthesizeWithoutPassages(t *testing.T) {
	s := NewSynthesizer(llm.NewMockService(64), 0.8)

	query, err := domain.NewQuery("q1", "anything", "", domain.DomainUnknown)
	require.NoError(t, err)

	answer, err := s.Synthesize(context.Background(), query, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerInsufficientEvidence, answer.Status)
	assert.Empty(t, answer.Content)
	assert.Nil(t, answer.Confidence)
}

func TestSynthesizeWithPassages(t *testing.T) {
	s := NewSynthesizer(llm.NewMockService(64), 0.8)

	query, err := domain.NewQuery("q1", "what is the dosage", "", domain.DomainMedical)
	require.NoError(t, err)
	p, err := domain.NewPassage("p1", "d1", "The recommended dosage is 81mg daily.", 0, nil)
	require.NoError(t, err)

	answer, err := s.Synthesize(context.Background(), query, []domain.Passage{p})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerComplete, answer.Status)
	assert.Contains(t, answer.Content, "81mg")
	require.NotNil(t, answer.Confidence)
	assert.InDelta(t, 0.8, *answer.Confidence, 1e-9)
}

func TestBindFallbackCitation(t *testing.T) {
	b := NewBinder(NewLLMClaimExtractor(llm.NewMockService(64)))

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "The recommended dosage is 81mg daily for prevention.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	p, err := domain.NewPassage("p1", "d1", "The recommended dosage is 81mg daily.", 0, nil)
	require.NoError(t, err)

	bound := b.Bind(context.Background(), answer, []domain.Passage{p})
	require.Len(t, bound.Citations, 1)

	c := bound.Citations[0]
	assert.Equal(t, "cite_ans1_1", c.ID)
	assert.Equal(t, "p1", c.PassageID)
	assert.Equal(t, "d1", c.DocumentID)
	require.NotNil(t, c.Confidence)
	assert.Greater(t, *c.Confidence, 0.0)
}

func TestBindWithoutPassages(t *testing.T) {
	b := NewBinder(NewLLMClaimExtractor(llm.NewMockService(64)))

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "Some content.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	bound := b.Bind(context.Background(), answer, nil)
	assert.Empty(t, bound.Citations)
}

func TestExtractClaimMappings(t *testing.T) {
	e := NewLLMClaimExtractor(responder{text: "Aspirin reduces cardiovascular risk - chunk 1\nDaily use requires medical supervision - chunk 2\nmalformed line without marker\nOut of range claim - chunk 9"})

	p1, err := domain.NewPassage("p1", "d1", "Aspirin reduces cardiovascular risk in adults.", 0, nil)
	require.NoError(t, err)
	p2, err := domain.NewPassage("p2", "d1", "Daily aspirin use requires medical supervision.", 1, nil)
	require.NoError(t, err)

	mappings, err := e.Extract(context.Background(), "answer text", []domain.Passage{p1, p2})
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	assert.Equal(t, "Aspirin reduces cardiovascular risk", mappings[0].Claim)
	assert.Equal(t, "p1", mappings[0].Passage.ID)
	assert.Equal(t, "p2", mappings[1].Passage.ID)
}

func TestExtractClaimMappingsBySourceFragment(t *testing.T) {
	e := NewLLMClaimExtractor(responder{
		text: "Aspirin reduces cardiovascular risk - doc1_chunk_2\n" +
			"Supervision is advised - chunk \"requires medical supervision\"",
	})

	p1, err := domain.NewPassage("doc1_chunk_1", "doc1", "Aspirin reduces cardiovascular risk in adults.", 0, nil)
	require.NoError(t, err)
	p2, err := domain.NewPassage("doc1_chunk_2", "doc1", "Daily aspirin use requires medical supervision.", 1, nil)
	require.NoError(t, err)

	mappings, err := e.Extract(context.Background(), "answer text", []domain.Passage{p1, p2})
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	assert.Equal(t, "doc1_chunk_2", mappings[0].Passage.ID)
	assert.Equal(t, "doc1_chunk_2", mappings[1].Passage.ID)
}

func TestTruncateClaimKeepsValidUTF8(t *testing.T) {
	text := strings.Repeat("é", 150)
	out := truncateClaim(text, 101)

	assert.True(t, utf8.ValidString(out))
	assert.Len(t, out, 100)
}

// responder returns a canned generation result.
type responder struct {
	text string
	err  error
}

func (r responder) Generate(ctx context.Context, prompt string, contexts []string) (string, error) {
	return r.text, r.err
}

func (r responder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0}, nil
}

func (r responder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0}
	}
	return out, nil
}

func (r responder) Ping(ctx context.Context) error { return nil }

func TestReviewInsufficientEvidence(t *testing.T) {
	r := NewReviewer(llm.NewMockService(64))

	answer, err := domain.NewAnswer("ans1", "q1", "", domain.AnswerInsufficientEvidence, nil)
	require.NoError(t, err)

	reviewed := r.Review(context.Background(), answer)
	assert.Equal(t, domain.AnswerInsufficientEvidence, reviewed.Status)
	assert.Empty(t, reviewed.Content)
	assert.Equal(t, domain.StandardDisclaimer, reviewed.Disclaimer)
}

func TestReviewPreservesContent(t *testing.T) {
	r := NewReviewer(llm.NewMockService(64))

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "Evidence suggests a low daily dose.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	reviewed := r.Review(context.Background(), answer)
	assert.Equal(t, domain.AnswerComplete, reviewed.Status)
	assert.Equal(t, "Evidence suggests a low daily dose.", reviewed.Content)
	assert.Equal(t, domain.StandardDisclaimer, reviewed.Disclaimer)
}

func TestReviewDowngradesEmptyRewrite(t *testing.T) {
	r := NewReviewer(responder{text: "   "})

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "You must do this immediately.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	reviewed := r.Review(context.Background(), answer)
	assert.Equal(t, domain.AnswerInsufficientEvidence, reviewed.Status)
	assert.Empty(t, reviewed.Content)
	assert.Equal(t, domain.StandardDisclaimer, reviewed.Disclaimer)
}

func TestDetectProhibitedContent(t *testing.T) {
	t.Run("flags prohibited phrases", func(t *testing.T) {
		detected := DetectProhibitedContent("This therapy offers Guaranteed Results for all patients.")
		require.Len(t, detected, 1)
		assert.Equal(t, "guaranteed results", detected[0])
	})

	t.Run("clean text passes", func(t *testing.T) {
		assert.Empty(t, DetectProhibitedContent("Evidence suggests consulting a physician."))
	})
}

func TestEvaluateSafety(t *testing.T) {
	r := NewReviewer(llm.NewMockService(64))

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "This treatment will cure the condition.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	assessment := r.EvaluateSafety(answer)
	assert.False(t, assessment.ContentSafe)
	assert.True(t, assessment.RequiresDisclaimer)
	assert.False(t, assessment.CitationCompliance)
	assert.InDelta(t, 0.8, assessment.ConfidenceLevel, 1e-9)
	assert.Contains(t, assessment.ProhibitedContentDetected, "this treatment will cure")
}

func TestRetrieverDegradesToEmpty(t *testing.T) {
	index, err := flat.New(t.TempDir())
	require.NoError(t, err)

	r := NewRetriever(llm.NewMockService(64), index, 5)

	query, err := domain.NewQuery("q1", "anything", "", domain.DomainUnknown)
	require.NoError(t, err)

	passages := r.Retrieve(context.Background(), query)
	assert.Empty(t, passages)
}

func TestRetrieverReturnsNearest(t *testing.T) {
	svc := llm.NewMockService(64)
	index, err := flat.New(t.TempDir())
	require.NoError(t, err)

	for i, content := range []string{
		"Aspirin reduces cardiovascular risk in adults.",
		"Contract law governs binding agreements between parties.",
		"Daily aspirin therapy requires physician supervision.",
	} {
		seedPassage(t, index, svc, fmt.Sprintf("p%d", i), "d1", content, i)
	}

	r := NewRetriever(svc, index, 2)

	query, err := domain.NewQuery("q1", "Aspirin reduces cardiovascular risk in adults.", "", domain.DomainMedical)
	require.NoError(t, err)

	passages := r.Retrieve(context.Background(), query)
	require.Len(t, passages, 2)
	assert.Equal(t, "Aspirin reduces cardiovascular risk in adults.", passages[0].Content)
}
