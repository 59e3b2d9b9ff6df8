package services

import (
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var validProgressStatuses = []string{
	models.ProgressStatusNotStarted,
	models.ProgressStatusInProgress,
	models.ProgressStatusCompleted,
}

var validCompletionMethods = []string{
	models.CompletionMethodConversation,
	models.CompletionMethodQuiz,
}

// ProgressService is the objective mastery state machine. Rows are created
// idempotently (two callers racing on the same learner/objective pair
// converge on one row) and can never hold completed status without evidence.
type ProgressService struct {
	repo       db.ProgressRepository
	objectives db.ObjectiveRepository
}

func NewProgressService(repo db.ProgressRepository, objectives db.ObjectiveRepository) *ProgressService {
	return &ProgressService{repo: repo, objectives: objectives}
}

// CreateOrGetProgress validates the evidence invariant and inserts a
// progress row. If one already exists for (learner, objective) the existing
// row is returned unchanged and the inputs are ignored.
func (s *ProgressService) CreateOrGetProgress(learnerID, objectiveID int, status, method, evidence string) (*models.ObjectiveProgress, error) {
	if learnerID <= 0 {
		return nil, fmt.Errorf("learner ID must be positive")
	}

	if objectiveID <= 0 {
		return nil, fmt.Errorf("objective ID must be positive")
	}

	if !lo.Contains(validProgressStatuses, status) {
		return nil, fmt.Errorf("invalid progress status %q", status)
	}

	if !lo.Contains(validCompletionMethods, method) {
		return nil, fmt.Errorf("invalid completion method %q", method)
	}

	if err := validateEvidence(status, evidence); err != nil {
		return nil, err
	}

	p := &models.ObjectiveProgress{
		LearnerID:   learnerID,
		ObjectiveID: objectiveID,
		Status:      status,
		Method:      method,
		Evidence:    strings.TrimSpace(evidence),
	}

	result, err := s.repo.CreateOrGetProgress(p)
	if err != nil {
		zap.S().Errorf("failed to create progress for learner %d objective %d: %v", learnerID, objectiveID, err)
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}

	return result, nil
}

// UpdateProgress transitions a progress row. The evidence invariant is
// re-checked against the evidence the row will hold after the update.
func (s *ProgressService) UpdateProgress(progressID int, req *models.UpdateProgressRequest) (*models.ObjectiveProgress, error) {
	if progressID <= 0 {
		return nil, fmt.Errorf("invalid progress ID: %d", progressID)
	}

	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if !lo.Contains(validProgressStatuses, req.Status) {
		return nil, fmt.Errorf("invalid progress status %q", req.Status)
	}

	if req.Method != nil && !lo.Contains(validCompletionMethods, *req.Method) {
		return nil, fmt.Errorf("invalid completion method %q", *req.Method)
	}

	existing, err := s.repo.GetProgressByID(progressID)
	if err != nil {
		return nil, err
	}

	effectiveEvidence := existing.Evidence
	if req.Evidence != nil {
		effectiveEvidence = *req.Evidence
	}

	if err := validateEvidence(req.Status, effectiveEvidence); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProgress(progressID, req); err != nil {
		zap.S().Errorf("failed to update progress %d: %v", progressID, err)
		return nil, err
	}

	return s.repo.GetProgressByID(progressID)
}

func (s *ProgressService) CountCompletedForModule(learnerID, moduleID int) (int, error) {
	return s.repo.CountCompletedForModule(learnerID, moduleID)
}

func (s *ProgressService) CountTotalForModule(moduleID int) (int, error) {
	return s.repo.CountTotalForModule(moduleID)
}

func (s *ProgressService) GetModuleProgressSummary(learnerID, moduleID int) (*models.ModuleProgressSummary, error) {
	completed, err := s.repo.CountCompletedForModule(learnerID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed objectives: %w", err)
	}

	total, err := s.repo.CountTotalForModule(moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count objectives: %w", err)
	}

	return &models.ModuleProgressSummary{
		CompletedCount: completed,
		TotalCount:     total,
		AllComplete:    total > 0 && completed >= total,
	}, nil
}

// GetObjectivesWithStatus pairs every objective of a module with the
// learner's progress row, nil where the learner has not started.
func (s *ProgressService) GetObjectivesWithStatus(learnerID, moduleID int) ([]models.ObjectiveWithStatus, error) {
	objectives, err := s.objectives.GetObjectivesByModule(moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get objectives: %w", err)
	}

	progress, err := s.repo.GetProgressForModule(learnerID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	byObjective := make(map[int]*models.ObjectiveProgress, len(progress))
	for _, p := range progress {
		byObjective[p.ObjectiveID] = p
	}

	result := make([]models.ObjectiveWithStatus, 0, len(objectives))
	for _, o := range objectives {
		result = append(result, models.ObjectiveWithStatus{
			Objective: *o,
			Progress:  byObjective[o.ID],
		})
	}

	return result, nil
}

func (s *ProgressService) GetProgressForModule(learnerID, moduleID int) ([]*models.ObjectiveProgress, error) {
	return s.repo.GetProgressForModule(learnerID, moduleID)
}

func validateEvidence(status, evidence string) error {
	if status == models.ProgressStatusCompleted && strings.TrimSpace(evidence) == "" {
		return ErrEvidenceRequired
	}
	return nil
}
