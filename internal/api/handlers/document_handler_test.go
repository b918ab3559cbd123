package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-agent/backend/internal/ingestion"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/internal/vector/flat"
)

func newDocumentTestApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.NewClient(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	index, err := flat.New(filepath.Join(dir, "index"))
	require.NoError(t, err)

	processor := ingestion.NewProcessor(db, index, llm.NewMockService(32), nil, 200, 40)
	h := NewDocumentHandler(processor, db, filepath.Join(dir, "uploads"))

	app := fiber.New()
	app.Post("/api/v1/documents", h.UploadDocument)
	return app, db
}

func uploadRequest(t *testing.T, filename, contents string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadDocumentDefaultsTitleFromHTML(t *testing.T) {
	app, db := newDocumentTestApp(t)

	html := "<html><head><title>Aspirin Therapy Guidelines</title></head><body><p>" +
		strings.Repeat("Aspirin is prescribed at low doses for cardiovascular prevention. ", 3) +
		"</p></body></html>"

	resp, err := app.Test(uploadRequest(t, "guidelines.html", html, map[string]string{
		"domain": "medical",
		"year":   "2020",
	}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		DocumentID string `json:"document_id"`
		Title      string `json:"title"`
		Passages   int    `json:"passages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Aspirin Therapy Guidelines", out.Title)
	assert.Greater(t, out.Passages, 0)

	doc, err := db.GetDocument(out.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin Therapy Guidelines", doc.Title)
}

func TestUploadDocumentKeepsExplicitTitle(t *testing.T) {
	app, _ := newDocumentTestApp(t)

	html := "<html><head><title>Ignored</title></head><body><p>" +
		"Statutory limitation periods vary by jurisdiction and claim type." +
		"</p></body></html>"

	resp, err := app.Test(uploadRequest(t, "limitations.html", html, map[string]string{
		"title":  "Limitation Periods",
		"domain": "legal",
		"year":   "2019",
	}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Limitation Periods", out.Title)
}

func TestUploadDocumentRejectsInvalidYear(t *testing.T) {
	app, _ := newDocumentTestApp(t)

	resp, err := app.Test(uploadRequest(t, "old.txt", "Historic text predating the accepted range.", map[string]string{
		"title":  "Historic Text",
		"domain": "mixed",
		"year":   "1800",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
