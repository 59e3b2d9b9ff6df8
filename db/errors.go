package db

import "errors"

// Sentinel errors returned by repositories so callers can branch with
// errors.Is instead of matching message text.
var (
	ErrObjectiveNotFound = errors.New("objective not found")
	ErrProgressNotFound  = errors.New("progress not found")
	ErrThreadNotFound    = errors.New("thread not found")
	ErrTemplateNotFound  = errors.New("prompt template not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrPodcastNotFound   = errors.New("podcast not found")
	ErrSourceNotFound    = errors.New("source document not found")
)
