package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	ProgressStatusNotStarted = "not_started"
	ProgressStatusInProgress = "in_progress"
	ProgressStatusCompleted  = "completed"
)

const (
	CompletionMethodConversation = "conversation"
	CompletionMethodQuiz         = "quiz"
)

type LearningObjective struct {
	ID            int            `json:"id" db:"id"`
	ModuleID      int            `json:"module_id" db:"module_id"`
	Text          string         `json:"text" db:"text"`
	DisplayOrder  int            `json:"display_order" db:"display_order"`
	AutoGenerated bool           `json:"auto_generated" db:"auto_generated"`
	SourceRefs    pq.StringArray `json:"source_refs" db:"source_refs"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

type CreateObjectiveRequest struct {
	ModuleID      int      `json:"module_id"`
	Text          string   `json:"text"`
	DisplayOrder  int      `json:"display_order"`
	AutoGenerated bool     `json:"auto_generated"`
	SourceRefs    []string `json:"source_refs"`
}

type UpdateObjectiveRequest struct {
	Text         *string `json:"text,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
}

type ObjectiveProgress struct {
	ID          int        `json:"id" db:"id"`
	LearnerID   int        `json:"learner_id" db:"learner_id"`
	ObjectiveID int        `json:"objective_id" db:"objective_id"`
	Status      string     `json:"status" db:"status"`
	Method      string     `json:"method" db:"method"`
	Evidence    string     `json:"evidence" db:"evidence"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type UpdateProgressRequest struct {
	Status   string  `json:"status"`
	Method   *string `json:"method,omitempty"`
	Evidence *string `json:"evidence,omitempty"`
}

// ObjectiveWithStatus pairs an objective with one learner's progress row,
// which is nil when the learner has not started it.
type ObjectiveWithStatus struct {
	Objective LearningObjective  `json:"objective"`
	Progress  *ObjectiveProgress `json:"progress,omitempty"`
}

type ModuleProgressSummary struct {
	CompletedCount int  `json:"completed_count"`
	TotalCount     int  `json:"total_count"`
	AllComplete    bool `json:"all_complete"`
}
