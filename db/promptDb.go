package db

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

type PromptTemplateRepository interface {
	GetGlobalTemplate() (*models.PromptTemplate, error)
	GetModuleTemplate(moduleID int) (*models.PromptTemplate, error)
	UpsertTemplate(scope, body string) (*models.PromptTemplate, error)
}

type PostgresPromptTemplateRepository struct {
	db *sql.DB
}

func NewPostgresPromptTemplateRepository(databaseURL string) (*PostgresPromptTemplateRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresPromptTemplateRepository{db: db}, nil
}

func (r *PostgresPromptTemplateRepository) GetGlobalTemplate() (*models.PromptTemplate, error) {
	return r.getByScope(models.PromptTemplateScopeGlobal)
}

func (r *PostgresPromptTemplateRepository) GetModuleTemplate(moduleID int) (*models.PromptTemplate, error) {
	return r.getByScope(strconv.Itoa(moduleID))
}

func (r *PostgresPromptTemplateRepository) getByScope(scope string) (*models.PromptTemplate, error) {
	query := `
		SELECT id, scope, body, created_at, updated_at
		FROM tutor.prompt_templates
		WHERE scope = $1`

	t := &models.PromptTemplate{}
	row := r.db.QueryRow(query, scope)

	err := row.Scan(&t.ID, &t.Scope, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template for scope %q: %w", scope, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return t, nil
}

func (r *PostgresPromptTemplateRepository) UpsertTemplate(scope, body string) (*models.PromptTemplate, error) {
	query := `
		INSERT INTO tutor.prompt_templates (scope, body)
		VALUES ($1, $2)
		ON CONFLICT (scope) DO UPDATE SET body = $2, updated_at = NOW()
		RETURNING id, scope, body, created_at, updated_at`

	t := &models.PromptTemplate{}
	row := r.db.QueryRow(query, scope, body)

	err := row.Scan(&t.ID, &t.Scope, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert template: %w", err)
	}

	return t, nil
}

func (r *PostgresPromptTemplateRepository) Close() error {
	return r.db.Close()
}
