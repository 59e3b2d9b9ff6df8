package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services"
	"github.com/gaspardhassenforder/elearning-sub000/services/agent"
	"github.com/gaspardhassenforder/elearning-sub000/services/examiner"
	"github.com/gaspardhassenforder/elearning-sub000/services/knowledge"
	"github.com/gaspardhassenforder/elearning-sub000/services/prompt"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// promptKnowledgeLimit caps how many source excerpts are folded into the
// system prompt per turn. The model can fetch more through search_knowledge.
const promptKnowledgeLimit = 3

type ChatHandler struct {
	agent     *agent.Service
	examiner  *examiner.Service
	progress  *services.ProgressService
	modules   *services.ModuleService
	knowledge *knowledge.Service
}

func NewChatHandler(agentService *agent.Service, examinerService *examiner.Service, progress *services.ProgressService, modules *services.ModuleService, knowledgeService *knowledge.Service) *ChatHandler {
	return &ChatHandler{
		agent:     agentService,
		examiner:  examinerService,
		progress:  progress,
		modules:   modules,
		knowledge: knowledgeService,
	}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/modules/{moduleID:[0-9]+}/chat", h.LearnerChat).Methods("POST")
	router.HandleFunc("/admin/modules/{moduleID:[0-9]+}/chat", h.AdminChat).Methods("POST")
}

// LearnerChat runs one tutoring turn and streams it back as server-sent
// events: text deltas and tool notices while the turn runs, the full reply
// once it settles, then any examiner results, and finally the completion
// sentinel.
func (h *ChatHandler) LearnerChat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	moduleID, err := strconv.Atoi(vars["moduleID"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid module ID")
		return
	}

	learnerID, err := strconv.Atoi(r.Header.Get("X-Learner-ID"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "X-Learner-ID header is required")
		return
	}

	orgID, err := strconv.Atoi(r.Header.Get("X-Org-ID"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "X-Org-ID header is required")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Message is required")
		return
	}

	if err := h.validateAccess(w, moduleID, orgID); err != nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}

	caller := agent.CallerContext{
		Kind:     models.CallerKindLearner,
		CallerID: learnerID,
		OrgID:    orgID,
		ModuleID: moduleID,
	}

	opts := agent.TurnOptions{
		Caller:        caller,
		PromptContext: h.buildPromptContext(r.Context(), caller, &req),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	response, err := h.agent.ProcessTurnStream(r.Context(), opts, req.Message, func(event models.TurnEvent) {
		h.writeSSE(w, flusher, event)
	})
	if err != nil {
		zap.S().Errorf("learner chat turn failed: %v", err)
		h.writeSSE(w, flusher, streamError(err))
		return
	}

	h.writeSSE(w, flusher, struct {
		Type  string `json:"type"`
		Reply string `json:"reply"`
	}{Type: "done", Reply: response.Reply})

	// The reply is already on the wire, so examiner latency costs the
	// learner nothing. The stream stays open until the sentinel so the
	// client knows when the progress events are complete.
	events := h.examiner.Examine(examiner.ExchangeInput{
		LearnerID:      learnerID,
		OrgID:          orgID,
		ModuleID:       moduleID,
		LearnerMessage: req.Message,
		AgentReply:     response.Reply,
	})
	for event := range events {
		h.writeSSE(w, flusher, event)
	}
}

// AdminChat runs the same turn contract synchronously, returning the final
// reply and the full message trace in one JSON document. Admin threads are
// keyed separately from learner threads, so admins can rehearse a module
// without touching anyone's progress view.
func (h *ChatHandler) AdminChat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	moduleID, err := strconv.Atoi(vars["moduleID"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid module ID")
		return
	}

	adminID, err := strconv.Atoi(r.Header.Get("X-Admin-ID"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "X-Admin-ID header is required")
		return
	}

	orgID, err := strconv.Atoi(r.Header.Get("X-Org-ID"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "X-Org-ID header is required")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Message is required")
		return
	}

	if err := h.validateAccess(w, moduleID, orgID); err != nil {
		return
	}

	caller := agent.CallerContext{
		Kind:     models.CallerKindAdmin,
		CallerID: adminID,
		OrgID:    orgID,
		ModuleID: moduleID,
	}

	opts := agent.TurnOptions{
		Caller:        caller,
		PromptContext: h.buildPromptContext(r.Context(), caller, &req),
	}

	response, err := h.agent.ProcessTurn(r.Context(), opts, req.Message)
	if err != nil {
		zap.S().Errorf("admin chat turn failed: %v", err)
		if errors.Is(err, prompt.ErrGlobalTemplateMissing) {
			h.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to process message")
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// validateAccess writes the error response itself so callers can just
// return on a non-nil result.
func (h *ChatHandler) validateAccess(w http.ResponseWriter, moduleID, orgID int) error {
	err := h.modules.ValidateModuleAccess(moduleID, orgID)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, db.ErrModuleNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "Module not found")
	case errors.Is(err, services.ErrModuleAccessDenied):
		h.writeErrorResponse(w, http.StatusForbidden, "Module is not available to this organization")
	default:
		zap.S().Errorf("module access check failed: %v", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to validate module access")
	}
	return err
}

func (h *ChatHandler) buildPromptContext(ctx context.Context, caller agent.CallerContext, req *models.ChatRequest) prompt.Context {
	pctx := prompt.Context{
		LearnerRole: strings.TrimSpace(req.LearnerRole),
		Familiarity: strings.TrimSpace(req.Familiarity),
		Language:    strings.TrimSpace(req.Language),
	}
	if pctx.LearnerRole == "" {
		pctx.LearnerRole = "learner"
	}
	if pctx.Familiarity == "" {
		pctx.Familiarity = "low"
	}

	withStatus, err := h.progress.GetObjectivesWithStatus(caller.CallerID, caller.ModuleID)
	if err != nil {
		zap.S().Errorf("failed to load objectives for prompt: %v", err)
	}
	for _, o := range withStatus {
		status := models.ProgressStatusNotStarted
		if o.Progress != nil {
			status = o.Progress.Status
		}
		pctx.Objectives = append(pctx.Objectives, prompt.ObjectiveLine{
			ID:     o.Objective.ID,
			Text:   o.Objective.Text,
			Status: status,
		})
	}

	excerpts, err := h.knowledge.Search(ctx, caller.ModuleID, req.Message, promptKnowledgeLimit)
	if err != nil {
		zap.S().Warnf("knowledge lookup for prompt failed: %v", err)
	}
	for _, excerpt := range excerpts {
		pctx.Knowledge = append(pctx.Knowledge, fmt.Sprintf("[%s / %s] %s", excerpt.SourceTitle, excerpt.Heading, excerpt.Content))
	}

	return pctx
}

type streamErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamError maps a turn failure to a safe client-facing event. The only
// internal detail worth exposing is the missing global template, which the
// operator needs to see verbatim.
func streamError(err error) streamErrorEvent {
	if errors.Is(err, prompt.ErrGlobalTemplateMissing) {
		return streamErrorEvent{Type: "error", Message: err.Error()}
	}
	return streamErrorEvent{Type: "error", Message: "The tutor is unavailable right now. Please try again."}
}

func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.S().Errorf("failed to encode stream event: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *ChatHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
