// Package sqlite persists documents, passages, query history, answers, and
// citations. The pipeline itself never touches storage; handlers record
// results here after processing completes.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT,
		publication TEXT,
		year INTEGER NOT NULL,
		file_path TEXT,
		format TEXT NOT NULL,
		domain TEXT NOT NULL,
		checksum TEXT,
		uploaded_by TEXT,
		chunk_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents(domain);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS passages (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		semantic_boundary TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_passages_document ON passages(document_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		content TEXT NOT NULL,
		domain TEXT NOT NULL,
		status TEXT NOT NULL,
		answer_id TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		content TEXT,
		status TEXT NOT NULL,
		confidence REAL,
		disclaimer TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_answers_query ON answers(query_id);

	CREATE TABLE IF NOT EXISTS citations (
		id TEXT PRIMARY KEY,
		answer_id TEXT NOT NULL,
		passage_id TEXT,
		document_id TEXT,
		claim_text TEXT NOT NULL,
		citation_text TEXT NOT NULL,
		confidence REAL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (answer_id) REFERENCES answers(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_citations_answer ON citations(answer_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		answer_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (answer_id) REFERENCES answers(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_answer ON feedback(answer_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc domain.Document) error {
	query := `
		INSERT INTO documents (id, title, author, publication, year, file_path, format, domain, checksum, uploaded_by, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			checksum = excluded.checksum,
			chunk_count = excluded.chunk_count
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Title,
		doc.Author,
		doc.Publication,
		doc.Year,
		doc.FilePath,
		string(doc.Format),
		string(doc.Domain),
		doc.Checksum,
		doc.UploadedBy,
		doc.ChunkCount,
		doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("title", doc.Title))
	return nil
}

func (c *Client) UpdateDocumentChunkCount(docID string, count int) error {
	_, err := c.db.Exec(`UPDATE documents SET chunk_count = ? WHERE id = ?`, count, docID)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	return nil
}

func (c *Client) GetDocument(id string) (domain.Document, error) {
	query := `SELECT id, title, author, publication, year, file_path, format, domain, checksum, uploaded_by, chunk_count, created_at FROM documents WHERE id = ?`

	var doc domain.Document
	var format, docDomain string
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.Author,
		&doc.Publication,
		&doc.Year,
		&doc.FilePath,
		&format,
		&docDomain,
		&doc.Checksum,
		&doc.UploadedBy,
		&doc.ChunkCount,
		&createdAt,
	)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Format = domain.FileFormat(format)
	doc.Domain = domain.DocumentDomain(docDomain)
	doc.CreatedAt = time.Unix(createdAt, 0)

	return doc, nil
}

func (c *Client) ListDocuments(limit int) ([]domain.Document, error) {
	query := `SELECT id, title, author, publication, year, file_path, format, domain, checksum, uploaded_by, chunk_count, created_at
		FROM documents ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var format, docDomain string
		var createdAt int64

		err := rows.Scan(
			&doc.ID, &doc.Title, &doc.Author, &doc.Publication, &doc.Year,
			&doc.FilePath, &format, &docDomain, &doc.Checksum, &doc.UploadedBy,
			&doc.ChunkCount, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.Format = domain.FileFormat(format)
		doc.Domain = domain.DocumentDomain(docDomain)
		doc.CreatedAt = time.Unix(createdAt, 0)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (c *Client) DeleteDocument(id string) error {
	result, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	logger.Info("Document deleted", zap.String("doc_id", id))
	return nil
}

func (c *Client) InsertPassages(passages []domain.Passage) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO passages (id, document_id, content, chunk_index, semantic_boundary, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range passages {
		if _, err := stmt.Exec(p.ID, p.DocumentID, p.Content, p.Index, p.SemanticBoundary, p.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert passage: %w", err)
		}
	}

	return tx.Commit()
}

func (c *Client) GetPassagesByDocument(docID string) ([]domain.Passage, error) {
	query := `SELECT id, document_id, content, chunk_index, semantic_boundary, created_at
		FROM passages WHERE document_id = ? ORDER BY chunk_index`

	rows, err := c.db.Query(query, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var p domain.Passage
		var createdAt int64

		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Content, &p.Index, &p.SemanticBoundary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.CreatedAt = time.Unix(createdAt, 0)
		passages = append(passages, p)
	}

	return passages, rows.Err()
}

// QueryRecord is one row of processing history.
type QueryRecord struct {
	ID        string
	UserID    string
	Content   string
	Domain    domain.QueryDomain
	Status    domain.QueryStatus
	AnswerID  string
	LatencyMS int64
	CreatedAt time.Time
}

func (c *Client) InsertQueryRecord(record QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, content, domain, status, answer_id, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.Content,
		string(record.Domain),
		string(record.Status),
		record.AnswerID,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("domain", string(record.Domain)),
		zap.Int64("latency_ms", record.LatencyMS),
	)

	return nil
}

func (c *Client) GetQueryHistory(userID string, limit int) ([]QueryRecord, error) {
	query := `
		SELECT id, user_id, content, domain, status, answer_id, latency_ms, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var r QueryRecord
		var dom, status string
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.UserID, &r.Content, &dom, &status, &r.AnswerID, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Domain = domain.QueryDomain(dom)
		r.Status = domain.QueryStatus(status)
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertAnswer(answer domain.Answer) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var confidence interface{}
	if answer.Confidence != nil {
		confidence = *answer.Confidence
	}

	_, err = tx.Exec(
		`INSERT INTO answers (id, query_id, content, status, confidence, disclaimer, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		answer.ID,
		answer.QueryID,
		answer.Content,
		string(answer.Status),
		confidence,
		answer.Disclaimer,
		answer.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}

	for _, cite := range answer.Citations {
		var citeConfidence interface{}
		if cite.Confidence != nil {
			citeConfidence = *cite.Confidence
		}

		_, err = tx.Exec(
			`INSERT INTO citations (id, answer_id, passage_id, document_id, claim_text, citation_text, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cite.ID,
			cite.AnswerID,
			cite.PassageID,
			cite.DocumentID,
			cite.ClaimText,
			cite.CitationText,
			citeConfidence,
			cite.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert citation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answer: %w", err)
	}

	logger.Debug("Answer persisted",
		zap.String("answer_id", answer.ID),
		zap.Int("citations", len(answer.Citations)),
	)

	return nil
}

func (c *Client) GetAnswer(id string) (domain.Answer, error) {
	var answer domain.Answer
	var status string
	var confidence sql.NullFloat64
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT id, query_id, content, status, confidence, disclaimer, created_at FROM answers WHERE id = ?`, id,
	).Scan(&answer.ID, &answer.QueryID, &answer.Content, &status, &confidence, &answer.Disclaimer, &createdAt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to get answer: %w", err)
	}

	answer.Status = domain.AnswerStatus(status)
	answer.CreatedAt = time.Unix(createdAt, 0)
	if confidence.Valid {
		v := confidence.Float64
		answer.Confidence = &v
	}

	citations, err := c.getCitations(id)
	if err != nil {
		return domain.Answer{}, err
	}
	answer.Citations = citations

	return answer, nil
}

func (c *Client) getCitations(answerID string) ([]domain.Citation, error) {
	rows, err := c.db.Query(
		`SELECT id, answer_id, passage_id, document_id, claim_text, citation_text, confidence, created_at
		FROM citations WHERE answer_id = ? ORDER BY id`, answerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get citations: %w", err)
	}
	defer rows.Close()

	var citations []domain.Citation
	for rows.Next() {
		var cite domain.Citation
		var confidence sql.NullFloat64
		var createdAt int64

		err := rows.Scan(&cite.ID, &cite.AnswerID, &cite.PassageID, &cite.DocumentID,
			&cite.ClaimText, &cite.CitationText, &confidence, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if confidence.Valid {
			v := confidence.Float64
			cite.Confidence = &v
		}
		cite.CreatedAt = time.Unix(createdAt, 0)
		citations = append(citations, cite)
	}

	return citations, rows.Err()
}

func (c *Client) StoreFeedback(answerID string, helpful bool, comment string) error {
	helpfulInt := 0
	if helpful {
		helpfulInt = 1
	}

	_, err := c.db.Exec(
		`INSERT INTO feedback (answer_id, helpful, comment, created_at) VALUES (?, ?, ?, ?)`,
		answerID, helpfulInt, comment, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("answer_id", answerID),
		zap.Bool("helpful", helpful),
	)

	return nil
}

func (c *Client) CountDocuments() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (c *Client) Ping() error {
	return c.db.Ping()
}
