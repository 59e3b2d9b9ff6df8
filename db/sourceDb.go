package db

import (
	"database/sql"
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

type SourceRepository interface {
	GetSourceByID(id int) (*models.SourceDocument, error)
	GetSourcesByModule(moduleID int) ([]*models.SourceDocument, error)
	GetChunksByModule(moduleID int) ([]*models.SourceChunk, error)
	ReplaceChunksForSource(sourceID int, chunks []*models.SourceChunk) error
}

type PostgresSourceRepository struct {
	db *sql.DB
}

func NewPostgresSourceRepository(databaseURL string) (*PostgresSourceRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSourceRepository{db: db}, nil
}

func (r *PostgresSourceRepository) GetSourceByID(id int) (*models.SourceDocument, error) {
	query := `
		SELECT id, module_id, title, filename, content, created_at, updated_at
		FROM tutor.source_documents
		WHERE id = $1`

	doc := &models.SourceDocument{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&doc.ID, &doc.ModuleID, &doc.Title, &doc.Filename, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("source with id %d: %w", id, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return doc, nil
}

func (r *PostgresSourceRepository) GetSourcesByModule(moduleID int) ([]*models.SourceDocument, error) {
	query := `
		SELECT id, module_id, title, filename, content, created_at, updated_at
		FROM tutor.source_documents
		WHERE module_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var docs []*models.SourceDocument
	for rows.Next() {
		doc := &models.SourceDocument{}
		err := rows.Scan(&doc.ID, &doc.ModuleID, &doc.Title, &doc.Filename, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over sources: %w", err)
	}

	return docs, nil
}

func (r *PostgresSourceRepository) GetChunksByModule(moduleID int) ([]*models.SourceChunk, error) {
	query := `
		SELECT id, source_id, module_id, heading, heading_path, content, enriched_context
		FROM tutor.source_chunks
		WHERE module_id = $1`

	rows, err := r.db.Query(query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.SourceChunk
	for rows.Next() {
		c := &models.SourceChunk{}
		err := rows.Scan(&c.ID, &c.SourceID, &c.ModuleID, &c.Heading, &c.HeadingPath, &c.Content, &c.EnrichedContext)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over chunks: %w", err)
	}

	return chunks, nil
}

// ReplaceChunksForSource swaps a source's chunks in one transaction so
// re-indexing never leaves a partial chunk set behind.
func (r *PostgresSourceRepository) ReplaceChunksForSource(sourceID int, chunks []*models.SourceChunk) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tutor.source_chunks WHERE source_id = $1", sourceID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	query := `
		INSERT INTO tutor.source_chunks (id, source_id, module_id, heading, heading_path, content, enriched_context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, c := range chunks {
		if _, err := tx.Exec(query, c.ID, c.SourceID, c.ModuleID, c.Heading, c.HeadingPath, c.Content, c.EnrichedContext); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	return nil
}

func (r *PostgresSourceRepository) Close() error {
	return r.db.Close()
}
