package services

import (
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"go.uber.org/zap"
)

type ObjectiveService struct {
	repo db.ObjectiveRepository
}

func NewObjectiveService(repo db.ObjectiveRepository) *ObjectiveService {
	return &ObjectiveService{repo: repo}
}

func (s *ObjectiveService) CreateObjective(req *models.CreateObjectiveRequest) (*models.LearningObjective, error) {
	zap.S().Infof("creating objective for module %d", req.ModuleID)

	if err := s.validateCreateRequest(req); err != nil {
		zap.S().Errorf("objective creation validation failed: %v", err)
		return nil, err
	}

	o := &models.LearningObjective{
		ModuleID:      req.ModuleID,
		Text:          strings.TrimSpace(req.Text),
		DisplayOrder:  req.DisplayOrder,
		AutoGenerated: req.AutoGenerated,
		SourceRefs:    req.SourceRefs,
	}

	if err := s.repo.CreateObjective(o); err != nil {
		zap.S().Errorf("failed to create objective: %v", err)
		return nil, fmt.Errorf("failed to create objective: %w", err)
	}

	zap.S().Infof("created objective %d for module %d", o.ID, o.ModuleID)
	return o, nil
}

func (s *ObjectiveService) GetObjectiveByID(id int) (*models.LearningObjective, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid objective ID: %d", id)
	}

	return s.repo.GetObjectiveByID(id)
}

func (s *ObjectiveService) GetObjectivesByModule(moduleID int) ([]*models.LearningObjective, error) {
	if moduleID <= 0 {
		return nil, fmt.Errorf("invalid module ID: %d", moduleID)
	}

	objectives, err := s.repo.GetObjectivesByModule(moduleID)
	if err != nil {
		zap.S().Errorf("failed to get objectives for module %d: %v", moduleID, err)
		return nil, fmt.Errorf("failed to get objectives: %w", err)
	}

	return objectives, nil
}

func (s *ObjectiveService) UpdateObjective(id int, req *models.UpdateObjectiveRequest) (*models.LearningObjective, error) {
	zap.S().Infof("updating objective %d", id)

	if id <= 0 {
		return nil, fmt.Errorf("invalid objective ID: %d", id)
	}

	if err := s.validateUpdateRequest(req); err != nil {
		zap.S().Errorf("objective update validation failed for ID %d: %v", id, err)
		return nil, err
	}

	if err := s.repo.UpdateObjective(id, req); err != nil {
		zap.S().Errorf("failed to update objective %d: %v", id, err)
		return nil, err
	}

	return s.repo.GetObjectiveByID(id)
}

func (s *ObjectiveService) DeleteObjective(id int) error {
	zap.S().Infof("deleting objective %d", id)

	if id <= 0 {
		return fmt.Errorf("invalid objective ID: %d", id)
	}

	return s.repo.DeleteObjective(id)
}

func (s *ObjectiveService) validateCreateRequest(req *models.CreateObjectiveRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if req.ModuleID <= 0 {
		return fmt.Errorf("module ID must be positive")
	}

	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("objective text is required")
	}

	if req.DisplayOrder < 0 {
		return fmt.Errorf("display order cannot be negative")
	}

	return nil
}

func (s *ObjectiveService) validateUpdateRequest(req *models.UpdateObjectiveRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if req.Text == nil && req.DisplayOrder == nil {
		return fmt.Errorf("at least one field must be provided for update")
	}

	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		return fmt.Errorf("objective text cannot be empty")
	}

	if req.DisplayOrder != nil && *req.DisplayOrder < 0 {
		return fmt.Errorf("display order cannot be negative")
	}

	return nil
}
