package domain

import (
	"errors"
	"time"
)

var (
	ErrContentWithRefusal = errors.New("content must be empty when status is insufficient_evidence")
	ErrConfidenceRange    = errors.New("confidence must be between 0.0 and 1.0")
)

// Answer is the pipeline's terminal output for a query. The synthesizer
// creates the shell, the citation binder attaches citations, and the safety
// reviewer finalizes the disclaimer and status.
//
// Invariant: Status == AnswerInsufficientEvidence implies Content == "".
// Callers render the canonical message via DisplayContent.
type Answer struct {
	ID         string
	QueryID    string
	Content    string
	Status     AnswerStatus
	Confidence *float64
	Disclaimer string
	Citations  []Citation
	CreatedAt  time.Time
}

func NewAnswer(id, queryID, content string, status AnswerStatus, confidence *float64) (Answer, error) {
	if !status.Valid() {
		return Answer{}, ErrInvalidStatus
	}
	if status == AnswerInsufficientEvidence && content != "" {
		return Answer{}, ErrContentWithRefusal
	}
	if confidence != nil && (*confidence < 0.0 || *confidence > 1.0) {
		return Answer{}, ErrConfidenceRange
	}

	return Answer{
		ID:         id,
		QueryID:    queryID,
		Content:    content,
		Status:     status,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}, nil
}

// DisplayContent is the user-facing text: the grounded answer, or the
// canonical refusal when no answer could be grounded.
func (a Answer) DisplayContent() string {
	if a.Status == AnswerInsufficientEvidence {
		return InsufficientEvidenceMessage
	}
	return a.Content
}

// WithCitations returns a copy carrying the given citations.
func (a Answer) WithCitations(citations []Citation) Answer {
	a.Citations = citations
	return a
}

// WithContent returns a copy carrying rewritten content. The insufficient-
// evidence invariant still holds: callers must not attach content to a
// refusal.
func (a Answer) WithContent(content string) Answer {
	if a.Status == AnswerInsufficientEvidence {
		return a
	}
	a.Content = content
	return a
}

// WithDisclaimer returns a copy carrying the disclaimer text.
func (a Answer) WithDisclaimer(disclaimer string) Answer {
	a.Disclaimer = disclaimer
	return a
}
