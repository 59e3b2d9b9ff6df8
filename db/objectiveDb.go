package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

type ObjectiveRepository interface {
	CreateObjective(o *models.LearningObjective) error
	GetObjectiveByID(id int) (*models.LearningObjective, error)
	GetObjectivesByModule(moduleID int) ([]*models.LearningObjective, error)
	UpdateObjective(id int, req *models.UpdateObjectiveRequest) error
	DeleteObjective(id int) error
}

type PostgresObjectiveRepository struct {
	db *sql.DB
}

func NewPostgresObjectiveRepository(databaseURL string) (*PostgresObjectiveRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresObjectiveRepository{db: db}, nil
}

func (r *PostgresObjectiveRepository) CreateObjective(o *models.LearningObjective) error {
	query := `
		INSERT INTO tutor.learning_objectives (module_id, text, display_order, auto_generated, source_refs)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRow(query, o.ModuleID, o.Text, o.DisplayOrder, o.AutoGenerated, o.SourceRefs)

	err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create objective: %w", err)
	}

	return nil
}

func (r *PostgresObjectiveRepository) GetObjectiveByID(id int) (*models.LearningObjective, error) {
	query := `
		SELECT id, module_id, text, display_order, auto_generated, source_refs, created_at, updated_at
		FROM tutor.learning_objectives
		WHERE id = $1`

	o := &models.LearningObjective{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&o.ID, &o.ModuleID, &o.Text, &o.DisplayOrder, &o.AutoGenerated, &o.SourceRefs, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("objective with id %d: %w", id, ErrObjectiveNotFound)
		}
		return nil, fmt.Errorf("failed to get objective: %w", err)
	}

	return o, nil
}

func (r *PostgresObjectiveRepository) GetObjectivesByModule(moduleID int) ([]*models.LearningObjective, error) {
	query := `
		SELECT id, module_id, text, display_order, auto_generated, source_refs, created_at, updated_at
		FROM tutor.learning_objectives
		WHERE module_id = $1
		ORDER BY display_order ASC, created_at ASC`

	rows, err := r.db.Query(query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*models.LearningObjective
	for rows.Next() {
		o := &models.LearningObjective{}
		err := rows.Scan(&o.ID, &o.ModuleID, &o.Text, &o.DisplayOrder, &o.AutoGenerated, &o.SourceRefs, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objective: %w", err)
		}
		objectives = append(objectives, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over objectives: %w", err)
	}

	return objectives, nil
}

func (r *PostgresObjectiveRepository) UpdateObjective(id int, req *models.UpdateObjectiveRequest) error {
	if req.Text == nil && req.DisplayOrder == nil {
		return fmt.Errorf("no updates provided")
	}

	query := "UPDATE tutor.learning_objectives SET "
	var setParts []string
	var args []interface{}
	argIndex := 1

	if req.Text != nil {
		setParts = append(setParts, fmt.Sprintf("text = $%d", argIndex))
		args = append(args, *req.Text)
		argIndex++
	}

	if req.DisplayOrder != nil {
		setParts = append(setParts, fmt.Sprintf("display_order = $%d", argIndex))
		args = append(args, *req.DisplayOrder)
		argIndex++
	}

	query += strings.Join(setParts, ", ")
	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d", argIndex)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update objective: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("objective with id %d: %w", id, ErrObjectiveNotFound)
	}

	return nil
}

func (r *PostgresObjectiveRepository) DeleteObjective(id int) error {
	result, err := r.db.Exec("DELETE FROM tutor.learning_objectives WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete objective: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("objective with id %d: %w", id, ErrObjectiveNotFound)
	}

	return nil
}

func (r *PostgresObjectiveRepository) Close() error {
	return r.db.Close()
}
