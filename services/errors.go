package services

import "errors"

var (
	// ErrEvidenceRequired enforces the completion invariant: a progress row
	// may never reach completed status without non-empty evidence.
	ErrEvidenceRequired = errors.New("evidence is required to mark an objective completed")

	ErrModuleAccessDenied  = errors.New("module is not assigned to the caller's organization")
	ErrPodcastNotReady     = errors.New("podcast is not finished rendering")
	ErrInvalidArtifactKind = errors.New("unsupported artifact kind")
	ErrTopicRequired       = errors.New("artifact topic is required")
)
