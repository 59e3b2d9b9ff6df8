package services

import (
	"fmt"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var validArtifactKinds = []string{
	models.ArtifactKindQuiz,
	models.ArtifactKindPodcast,
	models.ArtifactKindTransformation,
}

// ArtifactService exposes generated artifacts to the conversation layer:
// previews that hide anything the learner must not see (answer keys,
// half-rendered audio) and fire-and-forget generation submissions.
type ArtifactService struct {
	repo    db.ArtifactRepository
	modules *ModuleService
}

func NewArtifactService(repo db.ArtifactRepository, modules *ModuleService) *ArtifactService {
	return &ArtifactService{repo: repo, modules: modules}
}

// GetQuizPreview returns a quiz stripped of answer keys and explanations,
// after confirming the quiz's module is assigned to the caller's org.
func (s *ArtifactService) GetQuizPreview(quizID, orgID int) (*models.QuizPreview, error) {
	quiz, err := s.repo.GetQuizByID(quizID)
	if err != nil {
		return nil, err
	}

	if err := s.modules.ValidateModuleAccess(quiz.ModuleID, orgID); err != nil {
		return nil, err
	}

	questions := lo.Map(quiz.Questions, func(q models.QuizQuestion, _ int) models.QuizPreviewQuestion {
		return models.QuizPreviewQuestion{
			Prompt:  q.Prompt,
			Options: q.Options,
		}
	})

	return &models.QuizPreview{
		ID:            quiz.ID,
		Title:         quiz.Title,
		QuestionCount: len(quiz.Questions),
		Questions:     questions,
	}, nil
}

// GetPodcastPreview returns podcast metadata once rendering has finished.
// A podcast still in the pipeline is reported as not ready, not as missing.
func (s *ArtifactService) GetPodcastPreview(podcastID, orgID int) (*models.PodcastPreview, error) {
	podcast, err := s.repo.GetPodcastByID(podcastID)
	if err != nil {
		return nil, err
	}

	if err := s.modules.ValidateModuleAccess(podcast.ModuleID, orgID); err != nil {
		return nil, err
	}

	if podcast.Status != models.PodcastStatusComplete {
		return nil, fmt.Errorf("podcast %d has status %q: %w", podcast.ID, podcast.Status, ErrPodcastNotReady)
	}

	return &models.PodcastPreview{
		ID:              podcast.ID,
		Title:           podcast.Title,
		Description:     podcast.Description,
		AudioURL:        podcast.AudioURL,
		DurationSeconds: podcast.DurationSeconds,
	}, nil
}

// SubmitGeneration enqueues an artifact generation job and returns its
// handle immediately. The external pipeline picks the job up later; this
// call never waits for generation.
func (s *ArtifactService) SubmitGeneration(kind, topic string, moduleID, requestedBy int) (*models.GenerationJob, error) {
	if !lo.Contains(validArtifactKinds, kind) {
		return nil, fmt.Errorf("artifact kind %q: %w", kind, ErrInvalidArtifactKind)
	}

	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%s generation: %w", kind, ErrTopicRequired)
	}

	job := &models.GenerationJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		ModuleID:    moduleID,
		Topic:       strings.TrimSpace(topic),
		RequestedBy: requestedBy,
		Status:      "queued",
	}

	if err := s.repo.CreateGenerationJob(job); err != nil {
		zap.S().Errorf("failed to enqueue %s generation for module %d: %v", kind, moduleID, err)
		return nil, fmt.Errorf("failed to enqueue generation job: %w", err)
	}

	zap.S().Infof("enqueued %s generation job %s for module %d", kind, job.ID, moduleID)
	return job, nil
}
