package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/models"

	_ "github.com/lib/pq"
)

// ThreadRepository is the conversation checkpoint store. Threads are keyed
// by the composite caller/module key, created on first save and never torn
// down here.
type ThreadRepository interface {
	GetThreadByKey(key string) (*models.ConversationThread, error)
	SaveThread(key string, messages []models.ChatMessage) error
}

type PostgresThreadRepository struct {
	db *sql.DB
}

func NewPostgresThreadRepository(databaseURL string) (*PostgresThreadRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresThreadRepository{db: db}, nil
}

func (r *PostgresThreadRepository) GetThreadByKey(key string) (*models.ConversationThread, error) {
	query := `
		SELECT id, key, messages, created_at, updated_at
		FROM tutor.conversation_threads
		WHERE key = $1`

	thread := &models.ConversationThread{}
	var rawMessages []byte
	row := r.db.QueryRow(query, key)

	err := row.Scan(&thread.ID, &thread.Key, &rawMessages, &thread.CreatedAt, &thread.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("thread %q: %w", key, ErrThreadNotFound)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	if err := json.Unmarshal(rawMessages, &thread.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode thread messages: %w", err)
	}

	return thread, nil
}

func (r *PostgresThreadRepository) SaveThread(key string, messages []models.ChatMessage) error {
	rawMessages, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode thread messages: %w", err)
	}

	query := `
		INSERT INTO tutor.conversation_threads (key, messages)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET messages = $2, updated_at = NOW()`

	if _, err := r.db.Exec(query, key, rawMessages); err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}

	return nil
}

func (r *PostgresThreadRepository) Close() error {
	return r.db.Close()
}
