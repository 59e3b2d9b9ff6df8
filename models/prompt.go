package models

import "time"

// PromptTemplateScopeGlobal is the scope value of the single process-wide
// system prompt template. Module overrides use the module id as scope.
const PromptTemplateScopeGlobal = "global"

type PromptTemplate struct {
	ID        int       `json:"id" db:"id"`
	Scope     string    `json:"scope" db:"scope"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
