package examiner

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	// minLearnerMessageChars skips grading for greetings and short
	// acknowledgements that cannot demonstrate a competency.
	minLearnerMessageChars = 20

	eventChannelSize = 16

	gradingTimeout = 45 * time.Second
)

// Service grades finished exchanges against the module's open objectives.
// It runs after the tutor's reply is already on its way to the learner and
// must never block or fail a conversation turn.
type Service struct {
	llm      llms.Model
	progress *services.ProgressService
	modules  *services.ModuleService
}

func NewService(openaiAPIKey, model string, progress *services.ProgressService, modules *services.ModuleService) (*Service, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}

	llm, err := openai.New(
		openai.WithModel(model),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create examiner LLM client: %w", err)
	}

	return &Service{
		llm:      llm,
		progress: progress,
		modules:  modules,
	}, nil
}

// ExchangeInput is one completed learner/tutor exchange to grade.
type ExchangeInput struct {
	LearnerID      int
	OrgID          int
	ModuleID       int
	LearnerMessage string
	AgentReply     string
}

// Examine grades the exchange in the background and returns a channel of
// events. One event is emitted per newly passed objective, in order, and
// the final event is always the end-of-batch sentinel, even when grading
// was skipped or failed. The channel is closed after the sentinel.
func (s *Service) Examine(input ExchangeInput) <-chan models.ExaminerEvent {
	events := make(chan models.ExaminerEvent, eventChannelSize)

	go func() {
		s.run(input, events)
		events <- models.ExaminerEvent{Type: models.ExaminerEventComplete}
		close(events)
	}()

	return events
}

func (s *Service) run(input ExchangeInput, events chan<- models.ExaminerEvent) {
	if utf8.RuneCountInString(strings.TrimSpace(input.LearnerMessage)) < minLearnerMessageChars {
		return
	}

	withStatus, err := s.progress.GetObjectivesWithStatus(input.LearnerID, input.ModuleID)
	if err != nil {
		zap.S().Errorf("examiner could not load objectives for module %d: %v", input.ModuleID, err)
		return
	}

	var open []models.ObjectiveWithStatus
	for _, o := range withStatus {
		if o.Progress != nil && o.Progress.Status == models.ProgressStatusCompleted {
			continue
		}
		open = append(open, o)
	}

	if len(open) == 0 {
		return
	}

	gradingPrompt := buildGradingPrompt(open, input.LearnerMessage, input.AgentReply)

	ctx, cancel := context.WithTimeout(context.Background(), gradingTimeout)
	defer cancel()

	resp, err := s.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, gradingSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, gradingPrompt),
	}, llms.WithTemperature(0.1))
	if err != nil {
		zap.S().Errorf("examiner grading call failed: %v", err)
		return
	}

	if len(resp.Choices) == 0 {
		zap.S().Errorf("examiner grading call returned no choices")
		return
	}

	judgments, err := parseJudgments(resp.Choices[0].Content)
	if err != nil {
		zap.S().Errorf("examiner could not parse grading output: %v", err)
		return
	}

	openByID := make(map[int]models.LearningObjective, len(open))
	for _, o := range open {
		openByID[o.Objective.ID] = o.Objective
	}

	for _, judgment := range judgments {
		if !judgment.Passed {
			continue
		}

		objective, ok := openByID[judgment.ObjectiveID]
		if !ok {
			zap.S().Warnf("examiner passed unknown or already completed objective %d, ignoring", judgment.ObjectiveID)
			continue
		}

		if strings.TrimSpace(judgment.Evidence) == "" {
			zap.S().Warnf("examiner passed objective %d without evidence, ignoring", judgment.ObjectiveID)
			continue
		}

		_, err := s.progress.CreateOrGetProgress(
			input.LearnerID,
			judgment.ObjectiveID,
			models.ProgressStatusCompleted,
			models.CompletionMethodConversation,
			judgment.Evidence,
		)
		if err != nil {
			zap.S().Errorf("examiner could not record objective %d: %v", judgment.ObjectiveID, err)
			continue
		}

		summary, err := s.progress.GetModuleProgressSummary(input.LearnerID, input.ModuleID)
		if err != nil {
			zap.S().Errorf("examiner could not compute progress summary: %v", err)
			continue
		}

		event := models.ExaminerEvent{
			Type:           models.ExaminerEventObjectiveChecked,
			ObjectiveID:    objective.ID,
			ObjectiveText:  objective.Text,
			Evidence:       judgment.Evidence,
			CompletedCount: summary.CompletedCount,
			TotalCount:     summary.TotalCount,
			AllComplete:    summary.AllComplete,
		}

		if summary.AllComplete {
			suggested, err := s.modules.SuggestNextModules(input.OrgID, input.ModuleID)
			if err != nil {
				zap.S().Errorf("examiner could not fetch suggested modules: %v", err)
			} else {
				event.SuggestedModules = suggested
			}
		}

		events <- event
	}
}
