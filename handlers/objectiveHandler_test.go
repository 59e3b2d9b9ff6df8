package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/models"
	"github.com/gaspardhassenforder/elearning-sub000/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectiveRepo struct {
	objectives map[int]*models.LearningObjective
	nextID     int
}

func newFakeObjectiveRepo() *fakeObjectiveRepo {
	return &fakeObjectiveRepo{objectives: make(map[int]*models.LearningObjective), nextID: 1}
}

func (r *fakeObjectiveRepo) CreateObjective(o *models.LearningObjective) error {
	o.ID = r.nextID
	r.nextID++
	stored := *o
	r.objectives[stored.ID] = &stored
	return nil
}

func (r *fakeObjectiveRepo) GetObjectiveByID(id int) (*models.LearningObjective, error) {
	o, ok := r.objectives[id]
	if !ok {
		return nil, fmt.Errorf("objective %d: %w", id, db.ErrObjectiveNotFound)
	}
	row := *o
	return &row, nil
}

func (r *fakeObjectiveRepo) GetObjectivesByModule(moduleID int) ([]*models.LearningObjective, error) {
	var result []*models.LearningObjective
	for _, o := range r.objectives {
		if o.ModuleID == moduleID {
			row := *o
			result = append(result, &row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeObjectiveRepo) UpdateObjective(id int, req *models.UpdateObjectiveRequest) error {
	o, ok := r.objectives[id]
	if !ok {
		return fmt.Errorf("objective %d: %w", id, db.ErrObjectiveNotFound)
	}
	if req.Text != nil {
		o.Text = strings.TrimSpace(*req.Text)
	}
	if req.DisplayOrder != nil {
		o.DisplayOrder = *req.DisplayOrder
	}
	return nil
}

func (r *fakeObjectiveRepo) DeleteObjective(id int) error {
	if _, ok := r.objectives[id]; !ok {
		return fmt.Errorf("objective %d: %w", id, db.ErrObjectiveNotFound)
	}
	delete(r.objectives, id)
	return nil
}

func progressPairKey(learnerID, objectiveID int) string {
	return fmt.Sprintf("%d:%d", learnerID, objectiveID)
}

type fakeProgressRepo struct {
	rows             map[string]*models.ObjectiveProgress
	byID             map[int]*models.ObjectiveProgress
	objectiveModules map[int]int
	nextID           int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		rows:             make(map[string]*models.ObjectiveProgress),
		byID:             make(map[int]*models.ObjectiveProgress),
		objectiveModules: make(map[int]int),
		nextID:           1,
	}
}

func (r *fakeProgressRepo) CreateOrGetProgress(p *models.ObjectiveProgress) (*models.ObjectiveProgress, error) {
	key := progressPairKey(p.LearnerID, p.ObjectiveID)
	if existing, ok := r.rows[key]; ok {
		row := *existing
		return &row, nil
	}

	stored := *p
	stored.ID = r.nextID
	r.nextID++
	r.rows[key] = &stored
	r.byID[stored.ID] = &stored

	row := stored
	return &row, nil
}

func (r *fakeProgressRepo) GetProgressByID(id int) (*models.ObjectiveProgress, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("progress %d: %w", id, db.ErrProgressNotFound)
	}
	row := *p
	return &row, nil
}

func (r *fakeProgressRepo) GetProgressByLearnerAndObjective(learnerID, objectiveID int) (*models.ObjectiveProgress, error) {
	p, ok := r.rows[progressPairKey(learnerID, objectiveID)]
	if !ok {
		return nil, fmt.Errorf("progress for learner %d objective %d: %w", learnerID, objectiveID, db.ErrProgressNotFound)
	}
	row := *p
	return &row, nil
}

func (r *fakeProgressRepo) GetProgressForModule(learnerID, moduleID int) ([]*models.ObjectiveProgress, error) {
	var result []*models.ObjectiveProgress
	for _, p := range r.rows {
		if p.LearnerID == learnerID && r.objectiveModules[p.ObjectiveID] == moduleID {
			row := *p
			result = append(result, &row)
		}
	}
	return result, nil
}

func (r *fakeProgressRepo) UpdateProgress(id int, req *models.UpdateProgressRequest) error {
	p, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("progress %d: %w", id, db.ErrProgressNotFound)
	}
	p.Status = req.Status
	if req.Method != nil {
		p.Method = *req.Method
	}
	if req.Evidence != nil {
		p.Evidence = strings.TrimSpace(*req.Evidence)
	}
	return nil
}

func (r *fakeProgressRepo) CountCompletedForModule(learnerID, moduleID int) (int, error) {
	count := 0
	for _, p := range r.rows {
		if p.LearnerID == learnerID && r.objectiveModules[p.ObjectiveID] == moduleID && p.Status == models.ProgressStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeProgressRepo) CountTotalForModule(moduleID int) (int, error) {
	count := 0
	for _, m := range r.objectiveModules {
		if m == moduleID {
			count++
		}
	}
	return count, nil
}

type handlerFixtures struct {
	objectives *fakeObjectiveRepo
	progress   *fakeProgressRepo
}

func newTestRouter() (*mux.Router, *handlerFixtures) {
	f := &handlerFixtures{
		objectives: newFakeObjectiveRepo(),
		progress:   newFakeProgressRepo(),
	}

	handler := NewObjectiveHandler(
		services.NewObjectiveService(f.objectives),
		services.NewProgressService(f.progress, f.objectives),
	)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return router, f
}

func (f *handlerFixtures) seedObjective(t *testing.T, moduleID int, text string) *models.LearningObjective {
	t.Helper()
	o := &models.LearningObjective{ModuleID: moduleID, Text: text}
	require.NoError(t, f.objectives.CreateObjective(o))
	f.progress.objectiveModules[o.ID] = moduleID
	return o
}

// doRequest serves one request through the real router so mux path
// variables behave as in production. A string body is sent raw, anything
// else is marshalled to JSON.
func doRequest(t *testing.T, router *mux.Router, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateObjectiveEndpoint(t *testing.T) {
	router, f := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/modules/3/objectives", map[string]any{
		"text":          "  Explain what a token is  ",
		"display_order": 1,
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.LearningObjective
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 3, created.ModuleID, "module ID must come from the path, not the body")
	assert.Equal(t, "Explain what a token is", created.Text)
	assert.NotZero(t, created.ID)
	assert.Len(t, f.objectives.objectives, 1)
}

func TestCreateObjectiveEndpointRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed JSON", "{not json"},
		{"blank text", map[string]any{"text": "   "}},
		{"negative display order", map[string]any{"text": "x", "display_order": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, f := newTestRouter()

			rec := doRequest(t, router, http.MethodPost, "/modules/3/objectives", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.objectives.objectives)
		})
	}
}

func TestGetObjectivesByModuleEndpoint(t *testing.T) {
	router, f := newTestRouter()
	f.seedObjective(t, 3, "First objective")
	f.seedObjective(t, 3, "Second objective")
	f.seedObjective(t, 9, "Somewhere else")

	rec := doRequest(t, router, http.MethodGet, "/modules/3/objectives", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var objectives []models.LearningObjective
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&objectives))
	assert.Len(t, objectives, 2)
}

func TestObjectiveLifecycleEndpoints(t *testing.T) {
	router, f := newTestRouter()
	seeded := f.seedObjective(t, 3, "Explain what a token is")

	rec := doRequest(t, router, http.MethodGet, fmt.Sprintf("/objectives/%d", seeded.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.LearningObjective
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fetched))
	assert.Equal(t, seeded.Text, fetched.Text)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/objectives/%d", seeded.ID), map[string]any{
		"text": "Explain tokens and subwords",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.LearningObjective
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "Explain tokens and subwords", updated.Text)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/objectives/%d", seeded.ID), map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "update with no fields must be rejected")

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/objectives/%d", seeded.ID), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/objectives/%d", seeded.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/objectives/9999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetModuleProgressEndpoint(t *testing.T) {
	router, f := newTestRouter()
	first := f.seedObjective(t, 3, "First objective")
	f.seedObjective(t, 3, "Second objective")

	_, err := f.progress.CreateOrGetProgress(&models.ObjectiveProgress{
		LearnerID:   7,
		ObjectiveID: first.ID,
		Status:      models.ProgressStatusCompleted,
		Method:      models.CompletionMethodConversation,
		Evidence:    "explained tokens without prompting",
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/modules/3/progress", nil, map[string]string{"X-Learner-ID": "7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		Objectives []models.ObjectiveWithStatus  `json:"objectives"`
		Summary    *models.ModuleProgressSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	require.Len(t, response.Objectives, 2)
	require.NotNil(t, response.Summary)
	assert.Equal(t, 1, response.Summary.CompletedCount)
	assert.Equal(t, 2, response.Summary.TotalCount)
	assert.False(t, response.Summary.AllComplete)
}

func TestGetModuleProgressEndpointRequiresLearnerHeader(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(t, router, http.MethodGet, "/modules/3/progress", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrGetProgressEndpointIsIdempotent(t *testing.T) {
	router, f := newTestRouter()
	seeded := f.seedObjective(t, 3, "Explain what a token is")

	body := map[string]any{
		"learner_id":   7,
		"objective_id": seeded.ID,
		"status":       models.ProgressStatusCompleted,
		"method":       models.CompletionMethodConversation,
		"evidence":     "defined a token correctly",
	}

	rec := doRequest(t, router, http.MethodPost, "/progress", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first models.ObjectiveProgress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))

	body["evidence"] = "a different claim entirely"
	rec = doRequest(t, router, http.MethodPost, "/progress", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second models.ObjectiveProgress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "defined a token correctly", second.Evidence, "repeat request must not overwrite the original row")
}

func TestCreateOrGetProgressEndpointEnforcesEvidence(t *testing.T) {
	router, f := newTestRouter()
	seeded := f.seedObjective(t, 3, "Explain what a token is")

	rec := doRequest(t, router, http.MethodPost, "/progress", map[string]any{
		"learner_id":   7,
		"objective_id": seeded.ID,
		"status":       models.ProgressStatusCompleted,
		"method":       models.CompletionMethodConversation,
		"evidence":     "   ",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errBody))
	assert.Contains(t, errBody["error"], "evidence")
}

func TestUpdateProgressEndpoint(t *testing.T) {
	router, f := newTestRouter()
	seeded := f.seedObjective(t, 3, "Explain what a token is")

	record, err := f.progress.CreateOrGetProgress(&models.ObjectiveProgress{
		LearnerID:   7,
		ObjectiveID: seeded.ID,
		Status:      models.ProgressStatusInProgress,
		Method:      models.CompletionMethodConversation,
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/progress/%d", record.ID), map[string]any{
		"status":   models.ProgressStatusCompleted,
		"evidence": "walked through a worked example",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.ObjectiveProgress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, models.ProgressStatusCompleted, updated.Status)
	assert.Equal(t, "walked through a worked example", updated.Evidence)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/progress/%d", record.ID), map[string]any{
		"status":   models.ProgressStatusCompleted,
		"evidence": "",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "completing while erasing evidence must be rejected")

	rec = doRequest(t, router, http.MethodPut, "/progress/9999", map[string]any{
		"status": models.ProgressStatusInProgress,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
