// Package domain holds the data contracts shared by every pipeline stage.
// Values are immutable once constructed; stages that need to change a field
// re-emit a copy rather than mutating their input.
package domain

// InsufficientEvidenceMessage is the canonical refusal phrase. It is the
// only text a caller ever sees for an answer that could not be grounded.
const InsufficientEvidenceMessage = "Insufficient verified evidence available."

// StandardDisclaimer is attached to every answer leaving the safety
// reviewer, regardless of status.
const StandardDisclaimer = "This information is for research purposes only and should not be used as " +
	"medical or legal advice. Consult with a qualified healthcare professional " +
	"or legal expert for medical or legal decisions."

// QueryDomain classifies a query or document subject area.
type QueryDomain string

const (
	DomainMedical QueryDomain = "medical"
	DomainLegal   QueryDomain = "legal"
	DomainUnknown QueryDomain = "unknown"
)

func (d QueryDomain) Valid() bool {
	switch d {
	case DomainMedical, DomainLegal, DomainUnknown:
		return true
	}
	return false
}

// Resolved reports whether classification has produced a definite domain.
func (d QueryDomain) Resolved() bool {
	return d == DomainMedical || d == DomainLegal
}

// QueryStatus tracks a query through its processing lifecycle.
type QueryStatus string

const (
	QueryPending    QueryStatus = "pending"
	QueryProcessing QueryStatus = "processing"
	QueryCompleted  QueryStatus = "completed"
	QueryRejected   QueryStatus = "rejected"
)

func (s QueryStatus) Valid() bool {
	switch s {
	case QueryPending, QueryProcessing, QueryCompleted, QueryRejected:
		return true
	}
	return false
}

// AnswerStatus is the terminal disposition of a processed query.
type AnswerStatus string

const (
	AnswerComplete             AnswerStatus = "complete"
	AnswerInsufficientEvidence AnswerStatus = "insufficient_evidence"
	AnswerRejected             AnswerStatus = "rejected"
)

func (s AnswerStatus) Valid() bool {
	switch s {
	case AnswerComplete, AnswerInsufficientEvidence, AnswerRejected:
		return true
	}
	return false
}

// DocumentDomain tags a source document's subject area.
type DocumentDomain string

const (
	DocMedical DocumentDomain = "medical"
	DocLegal   DocumentDomain = "legal"
	DocMixed   DocumentDomain = "mixed"
)

func (d DocumentDomain) Valid() bool {
	switch d {
	case DocMedical, DocLegal, DocMixed:
		return true
	}
	return false
}

// FileFormat tags the on-disk format of an uploaded document.
type FileFormat string

const (
	FormatPDF  FileFormat = "PDF"
	FormatText FileFormat = "TEXT"
	FormatHTML FileFormat = "HTML"
)

func (f FileFormat) Valid() bool {
	switch f {
	case FormatPDF, FormatText, FormatHTML:
		return true
	}
	return false
}
