package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services"
	"github.com/gaspardhassenforder/elearning-sub000/services/knowledge"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

const (
	excerptMaxChars   = 200
	searchResultLimit = 5
)

// AgentTool interface that all tools must implement
type AgentTool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
	GetAnthropicToolSpec() anthropic.ToolInputSchemaParam
}

// CallerContext identifies who the tools act on behalf of. It is fixed at
// turn start so the model can never address another caller's state.
type CallerContext struct {
	Kind     string
	CallerID int
	OrgID    int
	ModuleID int
}

func (c CallerContext) ThreadKey() models.ThreadKey {
	return models.ThreadKey{CallerKind: c.Kind, CallerID: c.CallerID, ModuleID: c.ModuleID}
}

// ToolDeps bundles the services the capability tools are built from.
type ToolDeps struct {
	Sources    db.SourceRepository
	Artifacts  *services.ArtifactService
	Knowledge  *knowledge.Service
	Progress   *services.ProgressService
	Objectives *services.ObjectiveService
	Modules    *services.ModuleService
}

// BuildTools constructs the capability catalogue for one caller.
func BuildTools(deps ToolDeps, caller CallerContext) []AgentTool {
	return []AgentTool{
		NewSurfaceDocumentTool(deps.Sources, caller),
		NewSurfaceQuizTool(deps.Artifacts, caller),
		NewSurfacePodcastTool(deps.Artifacts, caller),
		NewSearchKnowledgeTool(deps.Knowledge, caller),
		NewGenerateArtifactTool(deps.Artifacts, caller),
		NewCheckObjectiveTool(deps.Progress, deps.Objectives, deps.Modules, caller),
	}
}

func generateAnthropicSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
	}
}

type SurfaceDocumentToolInput struct {
	SourceID  int    `json:"source_id" jsonschema:"required,description=The ID of the source document to surface"`
	Excerpt   string `json:"excerpt" jsonschema:"required,description=A short verbatim excerpt from the document that is relevant right now"`
	Relevance string `json:"relevance" jsonschema:"required,description=One sentence explaining why this document helps the learner at this point"`
}

type SurfaceDocumentTool struct {
	sources db.SourceRepository
	caller  CallerContext
}

func NewSurfaceDocumentTool(sources db.SourceRepository, caller CallerContext) SurfaceDocumentTool {
	return SurfaceDocumentTool{sources: sources, caller: caller}
}

func (t SurfaceDocumentTool) Name() string {
	return "surface_document"
}

func (t SurfaceDocumentTool) Description() string {
	return "Shows the learner a source document card with a short excerpt and why it is relevant. Use when pointing the learner at original course material."
}

func (t SurfaceDocumentTool) Call(ctx context.Context, input string) (string, error) {
	var params SurfaceDocumentToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The document reference was malformed. Provide source_id, excerpt, and relevance."), nil
	}

	doc, err := t.sources.GetSourceByID(params.SourceID)
	if err != nil {
		return toolFailure(t.Name(), "document", err), nil
	}

	if doc.ModuleID != t.caller.ModuleID {
		err := fmt.Errorf("source %d belongs to module %d, caller is in module %d: %w", doc.ID, doc.ModuleID, t.caller.ModuleID, db.ErrSourceNotFound)
		return toolFailure(t.Name(), "document", err), nil
	}

	card := models.DocumentCard{
		SourceID:  doc.ID,
		Title:     doc.Title,
		Excerpt:   truncateChars(params.Excerpt, excerptMaxChars),
		MediaKind: inferMediaKind(doc.Filename),
		Relevance: params.Relevance,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}

	result, err := json.Marshal(card)
	if err != nil {
		return toolFailure(t.Name(), "document", err), nil
	}

	return string(result), nil
}

func (t SurfaceDocumentTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[SurfaceDocumentToolInput]()
}

type SurfaceQuizToolInput struct {
	QuizID int `json:"quiz_id" jsonschema:"required,description=The ID of the quiz to surface"`
}

type SurfaceQuizTool struct {
	artifacts *services.ArtifactService
	caller    CallerContext
}

func NewSurfaceQuizTool(artifacts *services.ArtifactService, caller CallerContext) SurfaceQuizTool {
	return SurfaceQuizTool{artifacts: artifacts, caller: caller}
}

func (t SurfaceQuizTool) Name() string {
	return "surface_quiz"
}

func (t SurfaceQuizTool) Description() string {
	return "Shows the learner a quiz preview with its questions and answer options. Correct answers are never included. Use when the learner wants to practice."
}

func (t SurfaceQuizTool) Call(ctx context.Context, input string) (string, error) {
	var params SurfaceQuizToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The quiz reference was malformed. Provide quiz_id."), nil
	}

	preview, err := t.artifacts.GetQuizPreview(params.QuizID, t.caller.OrgID)
	if err != nil {
		return toolFailure(t.Name(), "quiz", err), nil
	}

	result, err := json.Marshal(preview)
	if err != nil {
		return toolFailure(t.Name(), "quiz", err), nil
	}

	return string(result), nil
}

func (t SurfaceQuizTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[SurfaceQuizToolInput]()
}

type SurfacePodcastToolInput struct {
	PodcastID int `json:"podcast_id" jsonschema:"required,description=The ID of the podcast to surface"`
}

type SurfacePodcastTool struct {
	artifacts *services.ArtifactService
	caller    CallerContext
}

func NewSurfacePodcastTool(artifacts *services.ArtifactService, caller CallerContext) SurfacePodcastTool {
	return SurfacePodcastTool{artifacts: artifacts, caller: caller}
}

func (t SurfacePodcastTool) Name() string {
	return "surface_podcast"
}

func (t SurfacePodcastTool) Description() string {
	return "Shows the learner a podcast episode card once it has finished rendering. Use when the learner prefers an audio summary."
}

func (t SurfacePodcastTool) Call(ctx context.Context, input string) (string, error) {
	var params SurfacePodcastToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The podcast reference was malformed. Provide podcast_id."), nil
	}

	preview, err := t.artifacts.GetPodcastPreview(params.PodcastID, t.caller.OrgID)
	if err != nil {
		return toolFailure(t.Name(), "podcast", err), nil
	}

	result, err := json.Marshal(preview)
	if err != nil {
		return toolFailure(t.Name(), "podcast", err), nil
	}

	return string(result), nil
}

func (t SurfacePodcastTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[SurfacePodcastToolInput]()
}

type SearchKnowledgeToolInput struct {
	Query string `json:"query" jsonschema:"required,description=Free-text question or topic to look up in the module's source material"`
}

type SearchKnowledgeTool struct {
	knowledge *knowledge.Service
	caller    CallerContext
}

func NewSearchKnowledgeTool(svc *knowledge.Service, caller CallerContext) SearchKnowledgeTool {
	return SearchKnowledgeTool{knowledge: svc, caller: caller}
}

func (t SearchKnowledgeTool) Name() string {
	return "search_knowledge"
}

func (t SearchKnowledgeTool) Description() string {
	return "Searches the module's source material and returns ranked excerpts with source attribution. Returns an empty list when nothing relevant exists."
}

func (t SearchKnowledgeTool) Call(ctx context.Context, input string) (string, error) {
	var params SearchKnowledgeToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The search request was malformed. Provide query."), nil
	}

	excerpts, err := t.knowledge.Search(ctx, t.caller.ModuleID, params.Query, searchResultLimit)
	if err != nil {
		// Missing context is a normal outcome for this tool, never an error.
		zap.S().Errorf("knowledge search failed for module %d: %v", t.caller.ModuleID, err)
		excerpts = nil
	}

	if excerpts == nil {
		excerpts = []models.KnowledgeExcerpt{}
	}

	payload := struct {
		Results []models.KnowledgeExcerpt `json:"results"`
	}{Results: excerpts}

	result, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return `{"results":[]}`, nil
	}

	return string(result), nil
}

func (t SearchKnowledgeTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[SearchKnowledgeToolInput]()
}

type GenerateArtifactToolInput struct {
	Kind  string `json:"kind" jsonschema:"required,enum=quiz,enum=podcast,enum=transformation,description=The kind of artifact to generate"`
	Topic string `json:"topic" jsonschema:"required,description=What the artifact should cover"`
}

type GenerateArtifactTool struct {
	artifacts *services.ArtifactService
	caller    CallerContext
}

func NewGenerateArtifactTool(artifacts *services.ArtifactService, caller CallerContext) GenerateArtifactTool {
	return GenerateArtifactTool{artifacts: artifacts, caller: caller}
}

func (t GenerateArtifactTool) Name() string {
	return "generate_artifact"
}

func (t GenerateArtifactTool) Description() string {
	return "Requests generation of a new quiz, podcast, or transformation on a topic. Returns a job handle immediately; generation runs in the background and the learner is notified through other channels when it is ready."
}

func (t GenerateArtifactTool) Call(ctx context.Context, input string) (string, error) {
	var params GenerateArtifactToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The generation request was malformed. Provide kind and topic."), nil
	}

	job, err := t.artifacts.SubmitGeneration(params.Kind, params.Topic, t.caller.ModuleID, t.caller.CallerID)
	if err != nil {
		return toolFailure(t.Name(), "artifact", err), nil
	}

	payload := struct {
		JobID  string `json:"job_id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}{JobID: job.ID, Kind: job.Kind, Status: job.Status}

	result, err := json.Marshal(payload)
	if err != nil {
		return toolFailure(t.Name(), "artifact", err), nil
	}

	return string(result), nil
}

func (t GenerateArtifactTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[GenerateArtifactToolInput]()
}

type CheckObjectiveToolInput struct {
	ObjectiveID int    `json:"objective_id" jsonschema:"required,description=The ID of the learning objective the learner just demonstrated"`
	Evidence    string `json:"evidence" jsonschema:"required,description=Short quote or paraphrase of what the learner said that demonstrates the competency"`
}

// CheckObjectiveTool is the one capability that mutates tutoring state from
// inside a conversation turn.
type CheckObjectiveTool struct {
	progress   *services.ProgressService
	objectives *services.ObjectiveService
	modules    *services.ModuleService
	caller     CallerContext
}

func NewCheckObjectiveTool(progress *services.ProgressService, objectives *services.ObjectiveService, modules *services.ModuleService, caller CallerContext) CheckObjectiveTool {
	return CheckObjectiveTool{progress: progress, objectives: objectives, modules: modules, caller: caller}
}

func (t CheckObjectiveTool) Name() string {
	return "check_objective"
}

func (t CheckObjectiveTool) Description() string {
	return "Marks a learning objective as completed for this learner, recording the observable evidence that earned it. Only call after the learner has demonstrated the specific competency named in the objective."
}

func (t CheckObjectiveTool) Call(ctx context.Context, input string) (string, error) {
	var params CheckObjectiveToolInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return validationFailure(t.Name(), err, "The check-off request was malformed. Provide objective_id and evidence."), nil
	}

	if params.ObjectiveID <= 0 {
		return validationFailure(t.Name(), fmt.Errorf("objective id %d is not valid", params.ObjectiveID), "The check-off request was malformed. Provide objective_id and evidence."), nil
	}

	objective, err := t.objectives.GetObjectiveByID(params.ObjectiveID)
	if err != nil {
		return toolFailure(t.Name(), "objective", err), nil
	}

	if objective.ModuleID != t.caller.ModuleID {
		err := fmt.Errorf("objective %d belongs to module %d, caller is in module %d: %w", objective.ID, objective.ModuleID, t.caller.ModuleID, db.ErrObjectiveNotFound)
		return toolFailure(t.Name(), "objective", err), nil
	}

	record, err := t.progress.CreateOrGetProgress(
		t.caller.CallerID,
		params.ObjectiveID,
		models.ProgressStatusCompleted,
		models.CompletionMethodConversation,
		params.Evidence,
	)
	if err != nil {
		return toolFailure(t.Name(), "objective", err), nil
	}

	summary, err := t.progress.GetModuleProgressSummary(t.caller.CallerID, t.caller.ModuleID)
	if err != nil {
		return toolFailure(t.Name(), "objective", err), nil
	}

	var suggested []models.ModuleSummary
	if summary.AllComplete {
		suggested, err = t.modules.SuggestNextModules(t.caller.OrgID, t.caller.ModuleID)
		if err != nil {
			zap.S().Errorf("failed to fetch suggested modules after completion: %v", err)
			suggested = nil
		}
	}
	if suggested == nil {
		suggested = []models.ModuleSummary{}
	}

	payload := struct {
		ObjectiveID      int                    `json:"objective_id"`
		ObjectiveText    string                 `json:"objective_text"`
		Status           string                 `json:"status"`
		CompletedCount   int                    `json:"completed_count"`
		TotalCount       int                    `json:"total_count"`
		AllComplete      bool                   `json:"all_complete"`
		SuggestedModules []models.ModuleSummary `json:"suggested_modules"`
	}{
		ObjectiveID:      objective.ID,
		ObjectiveText:    objective.Text,
		Status:           record.Status,
		CompletedCount:   summary.CompletedCount,
		TotalCount:       summary.TotalCount,
		AllComplete:      summary.AllComplete,
		SuggestedModules: suggested,
	}

	result, err := json.Marshal(payload)
	if err != nil {
		return toolFailure(t.Name(), "objective", err), nil
	}

	return string(result), nil
}

func (t CheckObjectiveTool) GetAnthropicToolSpec() anthropic.ToolInputSchemaParam {
	return generateAnthropicSchema[CheckObjectiveToolInput]()
}

func truncateChars(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func inferMediaKind(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".mp3", ".wav", ".m4a", ".ogg":
		return "audio"
	case ".mp4", ".mov", ".webm":
		return "video"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return "document"
	}
}
