package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

// ArtifactRepository reads generated artifacts (quizzes, podcasts) and
// enqueues generation jobs. Generation itself happens in external pipelines
// that poll the jobs table.
type ArtifactRepository interface {
	GetQuizByID(id int) (*models.Quiz, error)
	GetPodcastByID(id int) (*models.Podcast, error)
	CreateGenerationJob(job *models.GenerationJob) error
}

type PostgresArtifactRepository struct {
	db *sql.DB
}

func NewPostgresArtifactRepository(databaseURL string) (*PostgresArtifactRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresArtifactRepository{db: db}, nil
}

func (r *PostgresArtifactRepository) GetQuizByID(id int) (*models.Quiz, error) {
	query := `
		SELECT id, module_id, title, questions, created_at, updated_at
		FROM tutor.quizzes
		WHERE id = $1`

	quiz := &models.Quiz{}
	var questionsJSON []byte
	row := r.db.QueryRow(query, id)

	err := row.Scan(&quiz.ID, &quiz.ModuleID, &quiz.Title, &questionsJSON, &quiz.CreatedAt, &quiz.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quiz with id %d: %w", id, ErrQuizNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := json.Unmarshal(questionsJSON, &quiz.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}

	return quiz, nil
}

func (r *PostgresArtifactRepository) GetPodcastByID(id int) (*models.Podcast, error) {
	query := `
		SELECT id, module_id, title, description, status, audio_url, duration_seconds, created_at, updated_at
		FROM tutor.podcasts
		WHERE id = $1`

	p := &models.Podcast{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&p.ID, &p.ModuleID, &p.Title, &p.Description, &p.Status, &p.AudioURL, &p.DurationSeconds, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("podcast with id %d: %w", id, ErrPodcastNotFound)
		}
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}

	return p, nil
}

func (r *PostgresArtifactRepository) CreateGenerationJob(job *models.GenerationJob) error {
	query := `
		INSERT INTO tutor.generation_jobs (id, kind, module_id, topic, requested_by, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	row := r.db.QueryRow(query, job.ID, job.Kind, job.ModuleID, job.Topic, job.RequestedBy, job.Status)

	if err := row.Scan(&job.CreatedAt); err != nil {
		return fmt.Errorf("failed to create generation job: %w", err)
	}

	return nil
}

func (r *PostgresArtifactRepository) Close() error {
	return r.db.Close()
}
