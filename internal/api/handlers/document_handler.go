package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/ingestion"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/pkg/logger"
	"github.com/evidence-agent/backend/pkg/utils"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
	uploadDir string
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
		uploadDir: uploadDir,
	}
}

// UploadDocument accepts a multipart upload with metadata form fields and
// runs the full ingestion flow.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	title := c.FormValue("title")
	author := c.FormValue("author")
	docDomain := c.FormValue("domain", string(domain.DocMixed))

	year, err := strconv.Atoi(c.FormValue("year", "0"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "year must be a number",
		})
	}

	format, err := formatFromFilename(file.Filename)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	docID := fmt.Sprintf("doc_%s", uuid.New().String()[:8])

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Error("Failed to create upload directory", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	path := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", docID, filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, path); err != nil {
		logger.Error("Failed to save uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	if title == "" && format == domain.FormatHTML {
		if data, err := os.ReadFile(path); err == nil {
			title = ingestion.ExtractHTMLTitle(string(data))
		}
	}
	if title == "" {
		title = file.Filename
	}

	doc, err := domain.NewDocument(docID, title, author, year, path, format,
		domain.DocumentDomain(docDomain), c.FormValue("uploaded_by"))
	if err != nil {
		os.Remove(path)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if checksum, err := utils.ChecksumFile(path); err == nil {
		doc.Checksum = checksum
	}

	count, err := h.processor.ProcessDocument(c.Context(), doc)
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"document_id": docID,
		"title":       doc.Title,
		"format":      string(doc.Format),
		"domain":      string(doc.Domain),
		"passages":    count,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	docs, err := h.db.ListDocuments(limit)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	out := make([]fiber.Map, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fiber.Map{
			"document_id": doc.ID,
			"title":       doc.Title,
			"author":      doc.Author,
			"year":        doc.Year,
			"format":      string(doc.Format),
			"domain":      string(doc.Domain),
			"chunk_count": doc.ChunkCount,
			"created_at":  doc.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"documents": out,
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.db.GetDocument(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	if err := h.processor.RemoveDocument(c.Context(), id); err != nil {
		logger.Error("Failed to remove document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove document",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "Document removed",
		"document_id": id,
	})
}

func formatFromFilename(name string) (domain.FileFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return domain.FormatPDF, nil
	case ".txt", ".md":
		return domain.FormatText, nil
	case ".html", ".htm":
		return domain.FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", filepath.Ext(name))
	}
}
