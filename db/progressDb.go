package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

type ProgressRepository interface {
	CreateOrGetProgress(p *models.ObjectiveProgress) (*models.ObjectiveProgress, error)
	GetProgressByID(id int) (*models.ObjectiveProgress, error)
	GetProgressByLearnerAndObjective(learnerID, objectiveID int) (*models.ObjectiveProgress, error)
	GetProgressForModule(learnerID, moduleID int) ([]*models.ObjectiveProgress, error)
	UpdateProgress(id int, req *models.UpdateProgressRequest) error
	CountCompletedForModule(learnerID, moduleID int) (int, error)
	CountTotalForModule(moduleID int) (int, error)
}

type PostgresProgressRepository struct {
	db *sql.DB
}

func NewPostgresProgressRepository(databaseURL string) (*PostgresProgressRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresProgressRepository{db: db}, nil
}

// CreateOrGetProgress inserts a progress row unless one already exists for
// the (learner, objective) pair, in which case the existing row is returned
// untouched. Two callers racing on the same pair converge on one winner.
func (r *PostgresProgressRepository) CreateOrGetProgress(p *models.ObjectiveProgress) (*models.ObjectiveProgress, error) {
	query := `
		INSERT INTO tutor.objective_progress (learner_id, objective_id, status, method, evidence, completed_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $3 = 'completed' THEN NOW() ELSE NULL END)
		ON CONFLICT (learner_id, objective_id) DO NOTHING
		RETURNING id, completed_at, created_at, updated_at`

	row := r.db.QueryRow(query, p.LearnerID, p.ObjectiveID, p.Status, p.Method, p.Evidence)

	err := row.Scan(&p.ID, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}

	// Conflict: another caller won the insert. Return their row as-is.
	existing, err := r.GetProgressByLearnerAndObjective(p.LearnerID, p.ObjectiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back existing progress: %w", err)
	}

	return existing, nil
}

func (r *PostgresProgressRepository) GetProgressByID(id int) (*models.ObjectiveProgress, error) {
	query := `
		SELECT id, learner_id, objective_id, status, method, evidence, completed_at, created_at, updated_at
		FROM tutor.objective_progress
		WHERE id = $1`

	p := &models.ObjectiveProgress{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&p.ID, &p.LearnerID, &p.ObjectiveID, &p.Status, &p.Method, &p.Evidence, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("progress with id %d: %w", id, ErrProgressNotFound)
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

func (r *PostgresProgressRepository) GetProgressByLearnerAndObjective(learnerID, objectiveID int) (*models.ObjectiveProgress, error) {
	query := `
		SELECT id, learner_id, objective_id, status, method, evidence, completed_at, created_at, updated_at
		FROM tutor.objective_progress
		WHERE learner_id = $1 AND objective_id = $2`

	p := &models.ObjectiveProgress{}
	row := r.db.QueryRow(query, learnerID, objectiveID)

	err := row.Scan(&p.ID, &p.LearnerID, &p.ObjectiveID, &p.Status, &p.Method, &p.Evidence, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("progress for learner %d objective %d: %w", learnerID, objectiveID, ErrProgressNotFound)
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

func (r *PostgresProgressRepository) GetProgressForModule(learnerID, moduleID int) ([]*models.ObjectiveProgress, error) {
	query := `
		SELECT p.id, p.learner_id, p.objective_id, p.status, p.method, p.evidence, p.completed_at, p.created_at, p.updated_at
		FROM tutor.objective_progress p
		JOIN tutor.learning_objectives o ON o.id = p.objective_id
		WHERE p.learner_id = $1 AND o.module_id = $2
		ORDER BY o.display_order ASC, o.created_at ASC`

	rows, err := r.db.Query(query, learnerID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var progress []*models.ObjectiveProgress
	for rows.Next() {
		p := &models.ObjectiveProgress{}
		err := rows.Scan(&p.ID, &p.LearnerID, &p.ObjectiveID, &p.Status, &p.Method, &p.Evidence, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		progress = append(progress, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over progress: %w", err)
	}

	return progress, nil
}

func (r *PostgresProgressRepository) UpdateProgress(id int, req *models.UpdateProgressRequest) error {
	query := "UPDATE tutor.objective_progress SET "
	var setParts []string
	var args []interface{}
	argIndex := 1

	setParts = append(setParts, fmt.Sprintf("status = $%d", argIndex))
	setParts = append(setParts, fmt.Sprintf("completed_at = CASE WHEN $%d = 'completed' THEN NOW() ELSE NULL END", argIndex))
	args = append(args, req.Status)
	argIndex++

	if req.Method != nil {
		setParts = append(setParts, fmt.Sprintf("method = $%d", argIndex))
		args = append(args, *req.Method)
		argIndex++
	}

	if req.Evidence != nil {
		setParts = append(setParts, fmt.Sprintf("evidence = $%d", argIndex))
		args = append(args, *req.Evidence)
		argIndex++
	}

	query += strings.Join(setParts, ", ")
	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d", argIndex)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("progress with id %d: %w", id, ErrProgressNotFound)
	}

	return nil
}

func (r *PostgresProgressRepository) CountCompletedForModule(learnerID, moduleID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tutor.objective_progress p
		JOIN tutor.learning_objectives o ON o.id = p.objective_id
		WHERE p.learner_id = $1 AND o.module_id = $2 AND p.status = 'completed'`

	var count int
	if err := r.db.QueryRow(query, learnerID, moduleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed objectives: %w", err)
	}

	return count, nil
}

func (r *PostgresProgressRepository) CountTotalForModule(moduleID int) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM tutor.learning_objectives WHERE module_id = $1", moduleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count objectives: %w", err)
	}

	return count, nil
}

func (r *PostgresProgressRepository) Close() error {
	return r.db.Close()
}
