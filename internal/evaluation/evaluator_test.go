package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-agent/backend/internal/domain"
)

// constantEmbedder returns the same vector for every text, making any two
// texts perfectly similar.
type constantEmbedder struct{}

func (constantEmbedder) Generate(ctx context.Context, prompt string, contexts []string) (string, error) {
	return "", nil
}

func (constantEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5, 0.5}, nil
}

func (constantEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5, 0.5}
	}
	return out, nil
}

func (constantEmbedder) Ping(ctx context.Context) error { return nil }

func TestEvaluateInsufficientAnswer(t *testing.T) {
	e := NewEvaluator(constantEmbedder{})

	answer, err := domain.NewAnswer("ans1", "q1", "", domain.AnswerInsufficientEvidence, nil)
	require.NoError(t, err)

	report, err := e.EvaluateAnswer(context.Background(), answer)
	require.NoError(t, err)

	assert.Equal(t, ClassUngrounded, report.Classification)
	assert.Zero(t, report.CitationCount)
}

func TestEvaluateAnswerWithoutCitations(t *testing.T) {
	e := NewEvaluator(constantEmbedder{})

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "Some grounded statement.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	report, err := e.EvaluateAnswer(context.Background(), answer)
	require.NoError(t, err)

	assert.Equal(t, ClassUngrounded, report.Classification)
}

func TestEvaluateGroundedAnswer(t *testing.T) {
	e := NewEvaluator(constantEmbedder{})

	confidence := 0.8
	answer, err := domain.NewAnswer("ans1", "q1", "Aspirin reduces cardiovascular risk.", domain.AnswerComplete, &confidence)
	require.NoError(t, err)

	citeConfidence := 0.9
	citation, err := domain.NewCitation("cite_ans1_1", "ans1", "p1", "d1",
		"Aspirin reduces cardiovascular risk", "Aspirin reduces cardiovascular risk in adults.", &citeConfidence)
	require.NoError(t, err)
	answer = answer.WithCitations([]domain.Citation{citation})

	report, err := e.EvaluateAnswer(context.Background(), answer)
	require.NoError(t, err)

	assert.Equal(t, ClassGrounded, report.Classification)
	assert.Equal(t, 1, report.CitationCount)
	assert.InDelta(t, 0.9, report.AvgClaimConfidence, 1e-9)
	assert.InDelta(t, 1.0, report.EvidenceSimilarity, 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestFormatReport(t *testing.T) {
	e := NewEvaluator(constantEmbedder{})

	text := e.FormatReport(GroundingReport{
		AnswerID:           "ans1",
		Classification:     ClassGrounded,
		CitationCount:      2,
		AvgClaimConfidence: 0.85,
		EvidenceSimilarity: 0.91,
	})

	assert.Contains(t, text, "ans1")
	assert.Contains(t, text, ClassGrounded)
}
