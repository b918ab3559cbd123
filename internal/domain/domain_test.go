package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuery(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		q, err := NewQuery("q1", "What are guidelines for treating hypertension?", "u1", DomainUnknown)
		require.NoError(t, err)
		assert.Equal(t, QueryPending, q.Status)
		assert.Equal(t, DomainUnknown, q.Domain)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := NewQuery("q1", "   ", "u1", DomainUnknown)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("empty domain defaults to unknown", func(t *testing.T) {
		q, err := NewQuery("q1", "statute of limitations", "u1", "")
		require.NoError(t, err)
		assert.Equal(t, DomainUnknown, q.Domain)
	})

	t.Run("with domain re-emits", func(t *testing.T) {
		q, err := NewQuery("q1", "hello", "u1", DomainUnknown)
		require.NoError(t, err)
		classified := q.WithDomain(DomainMedical)
		assert.Equal(t, DomainMedical, classified.Domain)
		assert.Equal(t, DomainUnknown, q.Domain)
	})
}

func TestNewPassage(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := NewPassage("c1", "d1", "Hypertension guidelines recommend lifestyle changes.", 0, []float32{0.1, 0.2})
		require.NoError(t, err)
		assert.Equal(t, "d1", p.DocumentID)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := NewPassage("c1", "d1", "", 0, nil)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("negative index rejected", func(t *testing.T) {
		_, err := NewPassage("c1", "d1", "text", -1, nil)
		assert.ErrorIs(t, err, ErrNegativeIndex)
	})

	t.Run("zero-dimension embedding rejected", func(t *testing.T) {
		_, err := NewPassage("c1", "d1", "text", 0, []float32{})
		assert.ErrorIs(t, err, ErrEmptyEmbedding)
	})
}

func TestNewDocument(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		doc, err := NewDocument("d1", "Clinical Hypertension", "Smith", 2021, "/tmp/a.pdf", FormatPDF, DocMedical, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, doc.ChunkCount)
	})

	t.Run("year 1800 rejected", func(t *testing.T) {
		_, err := NewDocument("d1", "Old Treatise", "Smith", 1800, "/tmp/a.pdf", FormatPDF, DocLegal, "u1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "year must be between 1900")
	})

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := NewDocument("d1", "  ", "Smith", 2021, "/tmp/a.pdf", FormatPDF, DocMedical, "u1")
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})

	t.Run("invalid format rejected", func(t *testing.T) {
		_, err := NewDocument("d1", "Title", "Smith", 2021, "/tmp/a.xls", FileFormat("XLS"), DocMedical, "u1")
		assert.ErrorIs(t, err, ErrInvalidFileFormat)
	})
}

func TestNewAnswer(t *testing.T) {
	conf := 0.8

	t.Run("complete with confidence", func(t *testing.T) {
		a, err := NewAnswer("a1", "q1", "Grounded text.", AnswerComplete, &conf)
		require.NoError(t, err)
		assert.Equal(t, "Grounded text.", a.DisplayContent())
	})

	t.Run("insufficient evidence must have empty content", func(t *testing.T) {
		_, err := NewAnswer("a1", "q1", "some text", AnswerInsufficientEvidence, nil)
		assert.ErrorIs(t, err, ErrContentWithRefusal)
	})

	t.Run("insufficient evidence renders canonical message", func(t *testing.T) {
		a, err := NewAnswer("a1", "q1", "", AnswerInsufficientEvidence, nil)
		require.NoError(t, err)
		assert.Equal(t, "", a.Content)
		assert.Equal(t, InsufficientEvidenceMessage, a.DisplayContent())
	})

	t.Run("out-of-range confidence rejected", func(t *testing.T) {
		bad := 1.2
		_, err := NewAnswer("a1", "q1", "text", AnswerComplete, &bad)
		assert.ErrorIs(t, err, ErrConfidenceRange)
	})

	t.Run("with content preserves refusal invariant", func(t *testing.T) {
		a, err := NewAnswer("a1", "q1", "", AnswerInsufficientEvidence, nil)
		require.NoError(t, err)
		a = a.WithContent("should be ignored")
		assert.Equal(t, "", a.Content)
	})
}

func TestNewCitation(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		conf := 0.9
		c, err := NewCitation("cite1", "a1", "c1", "d1", "lifestyle changes help", "Guidelines recommend lifestyle changes.", &conf)
		require.NoError(t, err)
		assert.NotEmpty(t, c.ClaimText)
		assert.NotEmpty(t, c.CitationText)
	})

	t.Run("empty claim rejected", func(t *testing.T) {
		_, err := NewCitation("cite1", "a1", "c1", "d1", " ", "source", nil)
		assert.ErrorIs(t, err, ErrEmptyCitationText)
	})

	t.Run("out-of-range confidence rejected", func(t *testing.T) {
		bad := -0.1
		_, err := NewCitation("cite1", "a1", "c1", "d1", "claim", "source", &bad)
		assert.ErrorIs(t, err, ErrConfidenceRange)
	})
}
