package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ObjectiveHandler struct {
	objectives *services.ObjectiveService
	progress   *services.ProgressService
}

func NewObjectiveHandler(objectives *services.ObjectiveService, progress *services.ProgressService) *ObjectiveHandler {
	return &ObjectiveHandler{objectives: objectives, progress: progress}
}

func (h *ObjectiveHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/modules/{moduleID:[0-9]+}/objectives", h.CreateObjective).Methods("POST")
	router.HandleFunc("/modules/{moduleID:[0-9]+}/objectives", h.GetObjectivesByModule).Methods("GET")
	router.HandleFunc("/objectives/{id:[0-9]+}", h.GetObjectiveByID).Methods("GET")
	router.HandleFunc("/objectives/{id:[0-9]+}", h.UpdateObjective).Methods("PUT")
	router.HandleFunc("/objectives/{id:[0-9]+}", h.DeleteObjective).Methods("DELETE")

	router.HandleFunc("/modules/{moduleID:[0-9]+}/progress", h.GetModuleProgress).Methods("GET")
	router.HandleFunc("/progress", h.CreateOrGetProgress).Methods("POST")
	router.HandleFunc("/progress/{id:[0-9]+}", h.UpdateProgress).Methods("PUT")
}

func (h *ObjectiveHandler) CreateObjective(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	moduleID, err := strconv.Atoi(vars["moduleID"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid module ID")
		return
	}

	var req models.CreateObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	req.ModuleID = moduleID

	objective, err := h.objectives.CreateObjective(&req)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, objective)
}

func (h *ObjectiveHandler) GetObjectivesByModule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	moduleID, err := strconv.Atoi(vars["moduleID"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid module ID")
		return
	}

	objectives, err := h.objectives.GetObjectivesByModule(moduleID)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve objectives")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, objectives)
}

func (h *ObjectiveHandler) GetObjectiveByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid objective ID")
		return
	}

	objective, err := h.objectives.GetObjectiveByID(id)
	if err != nil {
		if errors.Is(err, db.ErrObjectiveNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve objective")
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, objective)
}

func (h *ObjectiveHandler) UpdateObjective(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid objective ID")
		return
	}

	var req models.UpdateObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	objective, err := h.objectives.UpdateObjective(id, &req)
	if err != nil {
		if errors.Is(err, db.ErrObjectiveNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, objective)
}

func (h *ObjectiveHandler) DeleteObjective(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid objective ID")
		return
	}

	if err := h.objectives.DeleteObjective(id); err != nil {
		if errors.Is(err, db.ErrObjectiveNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to delete objective")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetModuleProgress returns every objective in the module paired with the
// learner's progress, plus the completion summary.
func (h *ObjectiveHandler) GetModuleProgress(w http.ResponseWriter, r *http.Request) {
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

	objectives, err := h.progress.GetObjectivesWithStatus(learnerID, moduleID)
	if err != nil {
		zap.S().Errorf("failed to load module progress: %v", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve progress")
		return
	}

	summary, err := h.progress.GetModuleProgressSummary(learnerID, moduleID)
	if err != nil {
		zap.S().Errorf("failed to compute progress summary: %v", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve progress")
		return
	}

	response := struct {
		Objectives []models.ObjectiveWithStatus `json:"objectives"`
		Summary    *models.ModuleProgressSummary `json:"summary"`
	}{Objectives: objectives, Summary: summary}

	h.writeJSONResponse(w, http.StatusOK, response)
}

type createProgressRequest struct {
	LearnerID   int    `json:"learner_id"`
	ObjectiveID int    `json:"objective_id"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	Evidence    string `json:"evidence"`
}

func (h *ObjectiveHandler) CreateOrGetProgress(w http.ResponseWriter, r *http.Request) {
	var req createProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	record, err := h.progress.CreateOrGetProgress(req.LearnerID, req.ObjectiveID, req.Status, req.Method, req.Evidence)
	if err != nil {
		if errors.Is(err, db.ErrObjectiveNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, record)
}

func (h *ObjectiveHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid progress ID")
		return
	}

	var req models.UpdateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	record, err := h.progress.UpdateProgress(id, &req)
	if err != nil {
		if errors.Is(err, db.ErrProgressNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, err.Error())
		} else {
			h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, record)
}

func (h *ObjectiveHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *ObjectiveHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
