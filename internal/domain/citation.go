package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrEmptyCitationText = errors.New("claim and citation text must not be empty")

// Citation links a claim in an answer back to the exact source passage.
// Created exclusively by the citation binder; immutable thereafter.
type Citation struct {
	ID            string
	AnswerID      string
	PassageID     string
	DocumentID    string
	ClaimText     string
	CitationText  string
	DocumentTitle string
	Confidence    *float64
	CreatedAt     time.Time
}

func NewCitation(id, answerID, passageID, documentID, claimText, citationText string, confidence *float64) (Citation, error) {
	claimText = strings.TrimSpace(claimText)
	citationText = strings.TrimSpace(citationText)
	if claimText == "" || citationText == "" {
		return Citation{}, ErrEmptyCitationText
	}
	if confidence != nil && (*confidence < 0.0 || *confidence > 1.0) {
		return Citation{}, ErrConfidenceRange
	}

	return Citation{
		ID:           id,
		AnswerID:     answerID,
		PassageID:    passageID,
		DocumentID:   documentID,
		ClaimText:    claimText,
		CitationText: citationText,
		Confidence:   confidence,
		CreatedAt:    time.Now(),
	}, nil
}
