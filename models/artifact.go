package models

import "time"

type Module struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ModuleSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type QuizQuestion struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
}

type Quiz struct {
	ID        int            `json:"id" db:"id"`
	ModuleID  int            `json:"module_id" db:"module_id"`
	Title     string         `json:"title" db:"title"`
	Questions []QuizQuestion `json:"questions"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// QuizPreviewQuestion is what the learner may see before taking a quiz:
// the prompt and options only, never the answer key or explanation.
type QuizPreviewQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type QuizPreview struct {
	ID            int                   `json:"id"`
	Title         string                `json:"title"`
	QuestionCount int                   `json:"question_count"`
	Questions     []QuizPreviewQuestion `json:"questions"`
}

const (
	PodcastStatusPending   = "pending"
	PodcastStatusRendering = "rendering"
	PodcastStatusComplete  = "complete"
	PodcastStatusFailed    = "failed"
)

type Podcast struct {
	ID              int       `json:"id" db:"id"`
	ModuleID        int       `json:"module_id" db:"module_id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Status          string    `json:"status" db:"status"`
	AudioURL        *string   `json:"audio_url,omitempty" db:"audio_url"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type PodcastPreview struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	AudioURL        *string `json:"audio_url,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
}

const (
	ArtifactKindQuiz           = "quiz"
	ArtifactKindPodcast        = "podcast"
	ArtifactKindTransformation = "transformation"
)

type GenerationJob struct {
	ID          string    `json:"id" db:"id"`
	Kind        string    `json:"kind" db:"kind"`
	ModuleID    int       `json:"module_id" db:"module_id"`
	Topic       string    `json:"topic" db:"topic"`
	RequestedBy int       `json:"requested_by" db:"requested_by"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type SourceDocument struct {
	ID        int       `json:"id" db:"id"`
	ModuleID  int       `json:"module_id" db:"module_id"`
	Title     string    `json:"title" db:"title"`
	Filename  string    `json:"filename" db:"filename"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SourceChunk struct {
	ID              string `json:"id" db:"id"`
	SourceID        int    `json:"source_id" db:"source_id"`
	ModuleID        int    `json:"module_id" db:"module_id"`
	Heading         string `json:"heading" db:"heading"`
	HeadingPath     string `json:"heading_path" db:"heading_path"`
	Content         string `json:"content" db:"content"`
	EnrichedContext string `json:"enriched_context" db:"enriched_context"`
}

// DocumentCard is the payload returned when the agent surfaces a source
// document excerpt to the learner.
type DocumentCard struct {
	SourceID  int       `json:"source_id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	MediaKind string    `json:"media_kind"`
	Relevance string    `json:"relevance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KnowledgeExcerpt struct {
	SourceTitle string  `json:"source_title"`
	Heading     string  `json:"heading"`
	Content     string  `json:"content"`
	Score       float32 `json:"score"`
}
