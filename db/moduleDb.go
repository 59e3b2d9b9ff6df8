package db

import (
	"database/sql"
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

type ModuleRepository interface {
	GetModuleByID(id int) (*models.Module, error)
	IsModuleAssignedToOrg(moduleID, orgID int) (bool, error)
	GetSuggestedModules(orgID, excludeModuleID, limit int) ([]*models.Module, error)
}

type PostgresModuleRepository struct {
	db *sql.DB
}

func NewPostgresModuleRepository(databaseURL string) (*PostgresModuleRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresModuleRepository{db: db}, nil
}

func (r *PostgresModuleRepository) GetModuleByID(id int) (*models.Module, error) {
	query := `
		SELECT id, title, created_at, updated_at
		FROM tutor.modules
		WHERE id = $1`

	m := &models.Module{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("module with id %d: %w", id, ErrModuleNotFound)
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	return m, nil
}

func (r *PostgresModuleRepository) IsModuleAssignedToOrg(moduleID, orgID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tutor.module_assignments
			WHERE module_id = $1 AND org_id = $2
		)`

	var assigned bool
	if err := r.db.QueryRow(query, moduleID, orgID).Scan(&assigned); err != nil {
		return false, fmt.Errorf("failed to check module assignment: %w", err)
	}

	return assigned, nil
}

// GetSuggestedModules returns the most recent modules assigned to the org,
// excluding the given module. An empty result is not an error.
func (r *PostgresModuleRepository) GetSuggestedModules(orgID, excludeModuleID, limit int) ([]*models.Module, error) {
	query := `
		SELECT m.id, m.title, m.created_at, m.updated_at
		FROM tutor.modules m
		JOIN tutor.module_assignments a ON a.module_id = m.id
		WHERE a.org_id = $1 AND m.id != $2
		ORDER BY m.created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(query, orgID, excludeModuleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggested modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.Module
	for rows.Next() {
		m := &models.Module{}
		err := rows.Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over modules: %w", err)
	}

	return modules, nil
}

func (r *PostgresModuleRepository) Close() error {
	return r.db.Close()
}
