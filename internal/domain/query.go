package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyContent  = errors.New("content must not be empty")
	ErrInvalidDomain = errors.New("domain must be medical, legal, or unknown")
	ErrInvalidStatus = errors.New("invalid status")
)

// Query is a natural-language question submitted by a user. Created once at
// ingress; stages that change the domain label re-emit via WithDomain.
type Query struct {
	ID        string
	Content   string
	Domain    QueryDomain
	UserID    string
	CreatedAt time.Time
	Status    QueryStatus
}

func NewQuery(id, content, userID string, dom QueryDomain) (Query, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Query{}, ErrEmptyContent
	}
	if dom == "" {
		dom = DomainUnknown
	}
	if !dom.Valid() {
		return Query{}, ErrInvalidDomain
	}

	return Query{
		ID:        id,
		Content:   content,
		Domain:    dom,
		UserID:    userID,
		CreatedAt: time.Now(),
		Status:    QueryPending,
	}, nil
}

// WithDomain returns a copy carrying the given domain label.
func (q Query) WithDomain(dom QueryDomain) Query {
	q.Domain = dom
	return q
}

// WithStatus returns a copy carrying the given lifecycle status.
func (q Query) WithStatus(status QueryStatus) Query {
	q.Status = status
	return q
}
