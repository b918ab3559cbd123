package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyTitle        = errors.New("title must not be empty")
	ErrInvalidFileFormat = errors.New("unsupported file format")
	ErrInvalidDocDomain  = errors.New("document domain must be medical, legal, or mixed")
)

// Document is a vetted source file. Immutable once indexed; only ChunkCount
// is updated after segmentation completes.
type Document struct {
	ID          string
	Title       string
	Author      string
	Publication string
	Year        int
	FilePath    string
	Format      FileFormat
	Domain      DocumentDomain
	Checksum    string
	UploadedBy  string
	ChunkCount  int
	CreatedAt   time.Time
}

func NewDocument(id, title, author string, year int, filePath string, format FileFormat, dom DocumentDomain, uploadedBy string) (Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Document{}, ErrEmptyTitle
	}
	maxYear := time.Now().Year() + 1
	if year < 1900 || year > maxYear {
		return Document{}, fmt.Errorf("year must be between 1900 and %d, got %d", maxYear, year)
	}
	if !format.Valid() {
		return Document{}, ErrInvalidFileFormat
	}
	if !dom.Valid() {
		return Document{}, ErrInvalidDocDomain
	}

	return Document{
		ID:         id,
		Title:      title,
		Author:     author,
		Year:       year,
		FilePath:   filePath,
		Format:     format,
		Domain:     dom,
		UploadedBy: uploadedBy,
		CreatedAt:  time.Now(),
	}, nil
}
