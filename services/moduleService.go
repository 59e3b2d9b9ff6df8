package services

import (
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const suggestedModulesLimit = 3

type ModuleService struct {
	repo db.ModuleRepository
}

func NewModuleService(repo db.ModuleRepository) *ModuleService {
	return &ModuleService{repo: repo}
}

func (s *ModuleService) GetModuleByID(id int) (*models.Module, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid module ID: %d", id)
	}

	return s.repo.GetModuleByID(id)
}

// ValidateModuleAccess confirms the module is assigned to the organization.
func (s *ModuleService) ValidateModuleAccess(moduleID, orgID int) error {
	assigned, err := s.repo.IsModuleAssignedToOrg(moduleID, orgID)
	if err != nil {
		return fmt.Errorf("failed to check module assignment: %w", err)
	}

	if !assigned {
		return fmt.Errorf("module %d for org %d: %w", moduleID, orgID, ErrModuleAccessDenied)
	}

	return nil
}

// SuggestNextModules returns up to three recently added modules for the
// organization, excluding the one just completed. No candidates is a normal
// outcome, never an error.
func (s *ModuleService) SuggestNextModules(orgID, excludeModuleID int) ([]models.ModuleSummary, error) {
	modules, err := s.repo.GetSuggestedModules(orgID, excludeModuleID, suggestedModulesLimit)
	if err != nil {
		zap.S().Errorf("failed to fetch suggested modules for org %d: %v", orgID, err)
		return nil, fmt.Errorf("failed to fetch suggested modules: %w", err)
	}

	return lo.Map(modules, func(m *models.Module, _ int) models.ModuleSummary {
		return models.ModuleSummary{ID: m.ID, Title: m.Title}
	}), nil
}
