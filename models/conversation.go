package models

import (
	"fmt"
	"time"
)

const (
	CallerKindLearner = "learner"
	CallerKindAdmin   = "admin"
)

type ChatMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// ThreadKey isolates conversation state per caller and module. Admin and
// learner threads never collide even for the same module because the kind
// is part of the key.
type ThreadKey struct {
	CallerKind string `json:"caller_kind"`
	CallerID   int    `json:"caller_id"`
	ModuleID   int    `json:"module_id"`
}

func (k ThreadKey) String() string {
	return fmt.Sprintf("%s:%d:module:%d", k.CallerKind, k.CallerID, k.ModuleID)
}

type ConversationThread struct {
	ID        int           `json:"id" db:"id"`
	Key       string        `json:"key" db:"key"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

type ChatRequest struct {
	Message     string `json:"message"`
	LearnerRole string `json:"learner_role,omitempty"`
	Familiarity string `json:"familiarity,omitempty"`
	Language    string `json:"language,omitempty"`
}

type ChatResponse struct {
	Reply    string        `json:"reply"`
	Messages []ChatMessage `json:"messages"`
}

const (
	TurnEventDelta = "delta"
	TurnEventTool  = "tool"
)

// TurnEvent is a streaming-mode progress notification: a partial text chunk
// or a tool invocation notice.
type TurnEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Tool string `json:"tool,omitempty"`
}

const (
	ExaminerEventObjectiveChecked = "objective_checked"
	ExaminerEventComplete         = "complete"
)

// ExaminerEvent is emitted on the examiner channel after a turn. The final
// event of every batch is the end-of-batch sentinel (Type "complete").
type ExaminerEvent struct {
	Type             string          `json:"type"`
	ObjectiveID      int             `json:"objective_id,omitempty"`
	ObjectiveText    string          `json:"objective_text,omitempty"`
	Evidence         string          `json:"evidence,omitempty"`
	CompletedCount   int             `json:"completed_count,omitempty"`
	TotalCount       int             `json:"total_count,omitempty"`
	AllComplete      bool            `json:"all_complete,omitempty"`
	SuggestedModules []ModuleSummary `json:"suggested_modules,omitempty"`
}
