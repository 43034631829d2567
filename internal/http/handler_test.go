package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"deviation-service/internal/model"
	"deviation-service/internal/repository"
	"deviation-service/internal/service"
	"deviation-service/internal/workflow"
)

type memoryStore struct {
	records map[uuid.UUID]*model.DeviationApproval
	counter int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[uuid.UUID]*model.DeviationApproval{}}
}

func (m *memoryStore) Create(_ context.Context, deviation *model.DeviationApproval) error {
	deviation.ID = uuid.New()
	deviation.CreatedAt = time.Now()
	clone := *deviation
	m.records[deviation.ID] = &clone
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*model.DeviationApproval, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *memoryStore) List(_ context.Context, filter repository.DeviationFilter) ([]model.DeviationApproval, int64, error) {
	var items []model.DeviationApproval
	for _, record := range m.records {
		items = append(items, *record)
	}
	return items, int64(len(items)), nil
}

func (m *memoryStore) Patch(_ context.Context, id uuid.UUID, version int, fields map[string]interface{}) error {
	record, ok := m.records[id]
	if !ok || record.Version != version {
		return repository.ErrStaleVersion
	}
	if v, ok := fields["part_name"].(string); ok {
		record.PartName = v
	}
	record.Version++
	return nil
}

func (m *memoryStore) UpdateApproval(_ context.Context, deviation *model.DeviationApproval, stage workflow.Stage) error {
	record, ok := m.records[deviation.ID]
	if !ok || record.Version != deviation.Version {
		return repository.ErrStaleVersion
	}
	*record.StageRecord(stage) = *deviation.StageRecord(stage)
	record.Status = deviation.Status
	record.LastModifiedBy = deviation.LastModifiedBy
	record.CompletedDate = deviation.CompletedDate
	record.TotalApprovalTime = deviation.TotalApprovalTime
	record.Version++
	return nil
}

func (m *memoryStore) UpdateRejection(_ context.Context, deviation *model.DeviationApproval) error {
	record, ok := m.records[deviation.ID]
	if !ok || record.Version != deviation.Version {
		return repository.ErrStaleVersion
	}
	record.Status = deviation.Status
	record.RejectionReason = deviation.RejectionReason
	record.LastModifiedBy = deviation.LastModifiedBy
	record.Version++
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memoryStore) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status workflow.Status, reason, modifiedBy string) (int64, error) {
	var modified int64
	for _, id := range ids {
		record, ok := m.records[id]
		if !ok {
			continue
		}
		record.Status = status
		if status == workflow.StatusRejected {
			record.RejectionReason = reason
		}
		record.Version++
		modified++
	}
	return modified, nil
}

func (m *memoryStore) LogStatusChange(_ context.Context, _ *model.DeviationStatusLog) error {
	return nil
}

func (m *memoryStore) NextNumber(_ context.Context, year int) (string, error) {
	m.counter++
	return fmt.Sprintf("%d-%03d", year, m.counter), nil
}

type memoryReports struct{}

func (memoryReports) StatusCounts(context.Context) (model.StatusCounts, error) {
	return model.StatusCounts{}, nil
}
func (memoryReports) CountByStatus(context.Context) ([]model.CountByKey, error)     { return nil, nil }
func (memoryReports) CountByDepartment(context.Context) ([]model.CountByKey, error) { return nil, nil }
func (memoryReports) CountByRisk(context.Context) ([]model.CountByKey, error)       { return nil, nil }
func (memoryReports) MonthlyTrend(context.Context) ([]model.MonthlyCount, error)    { return nil, nil }
func (memoryReports) AvgApprovalTime(context.Context) (float64, error)              { return 0, nil }

func newTestRouter(principal model.Principal) (*gin.Engine, *memoryStore) {
	gin.SetMode(gin.TestMode)
	store := newMemoryStore()
	deviationService := service.NewDeviationService(store, store, 10)
	reportService := service.NewReportService(store, memoryReports{}, 20, 200)
	handler := NewHandler(deviationService, reportService, zerolog.Nop(), "test")

	stubAuth := func(c *gin.Context) {
		c.Set("principal", principal)
		c.Next()
	}
	ping := func(context.Context) error { return nil }
	return NewRouter(handler, stubAuth, ping, "test"), store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func createPayload() map[string]interface{} {
	return map[string]interface{}{
		"part_name":      "Bracket-A",
		"part_number":    "BR-100",
		"deviation_type": "input-control",
		"quality_risk":   "high",
		"description":    "dimension out of tolerance",
		"request_date":   "2024-03-01",
		"requested_by":   "Ali",
		"department":     "Kalite",
		"vehicles": []map[string]interface{}{
			{"model": "TX-9", "serial_number": "SN-001"},
		},
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(model.Principal{})
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateDeviationEndpoint(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), FullName: "Ali Demir", Role: model.UserRoleRequester})

	w := doJSON(t, router, http.MethodPost, "/api/deviation-approvals", createPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope["success"])
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "2024-001", data["deviation_number"])
	assert.Equal(t, "pending", data["status"])
}

func TestCreateDeviationMissingField(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleRequester})

	payload := createPayload()
	delete(payload, "part_name")
	w := doJSON(t, router, http.MethodPost, "/api/deviation-approvals", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, envelope["error"])
}

func TestGetDeviationInvalidID(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleRequester})
	w := doJSON(t, router, http.MethodGet, "/api/deviation-approvals/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeviationNotFound(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleRequester})
	w := doJSON(t, router, http.MethodGet, "/api/deviation-approvals/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalFlowEndpoints(t *testing.T) {
	router, store := newTestRouter(model.Principal{UserID: uuid.New(), FullName: "Root", Role: model.UserRoleAdmin})

	w := doJSON(t, router, http.MethodPost, "/api/deviation-approvals", createPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	id := data["id"].(string)

	// invalid approval type
	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/approve", gin.H{"approvalType": "finance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// out of order
	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/approve", gin.H{"approvalType": "quality"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, step := range []struct {
		stage string
		want  string
	}{
		{"rd", "rd-approved"},
		{"quality", "quality-approved"},
		{"production", "production-approved"},
		{"generalManager", "final-approved"},
	} {
		w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/approve", gin.H{"approvalType": step.stage, "comments": "ok"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeEnvelope(t, w)["data"].(map[string]interface{})
		assert.Equal(t, step.want, data["status"])
	}

	// double approval of a completed workflow conflicts
	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/approve", gin.H{"approvalType": "rd"})
	assert.Equal(t, http.StatusConflict, w.Code)

	record := store.records[uuid.MustParse(id)]
	require.NotNil(t, record.CompletedDate)
	require.NotNil(t, record.TotalApprovalTime)
	assert.GreaterOrEqual(t, *record.TotalApprovalTime, 0)
}

func TestRejectEndpoint(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), FullName: "Mehmet Can", Role: model.UserRoleQuality})

	w := doJSON(t, router, http.MethodPost, "/api/deviation-approvals", createPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeEnvelope(t, w)["data"].(map[string]interface{})["id"].(string)

	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/reject", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/reject", gin.H{"reason": "Insufficient documentation"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["status"])
	assert.Equal(t, "Insufficient documentation", data["rejection_reason"])

	// re-rejection conflicts
	w = doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/"+id+"/reject", gin.H{"reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBulkStatusEndpoint(t *testing.T) {
	adminRouter, store := newTestRouter(model.Principal{UserID: uuid.New(), FullName: "Root", Role: model.UserRoleAdmin})

	w := doJSON(t, adminRouter, http.MethodPost, "/api/deviation-approvals", createPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeEnvelope(t, w)["data"].(map[string]interface{})["id"].(string)

	w = doJSON(t, adminRouter, http.MethodPatch, "/api/deviation-approvals/bulk/status", gin.H{"ids": []string{id}, "status": "rejected"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "bulk rejection requires a reason")

	w = doJSON(t, adminRouter, http.MethodPatch, "/api/deviation-approvals/bulk/status", gin.H{"ids": []string{id}, "status": "rejected", "reason": "obsolete"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["modified"])

	record := store.records[uuid.MustParse(id)]
	assert.Equal(t, workflow.StatusRejected, record.Status)
	assert.Equal(t, "obsolete", record.RejectionReason)
}

func TestBulkStatusForbidden(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleQuality})
	w := doJSON(t, router, http.MethodPatch, "/api/deviation-approvals/bulk/status", gin.H{"ids": []string{uuid.NewString()}, "status": "pending"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListEnvelope(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleRequester})

	w := doJSON(t, router, http.MethodPost, "/api/deviation-approvals", createPayload())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/deviation-approvals?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope["success"])
	pagination := envelope["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["page"])
	assert.Equal(t, float64(1), pagination["total"])
	items := envelope["data"].(map[string]interface{})["items"].([]interface{})
	assert.Len(t, items, 1)
}

func TestDashboardEndpoint(t *testing.T) {
	router, _ := newTestRouter(model.Principal{UserID: uuid.New(), Role: model.UserRoleQuality})
	w := doJSON(t, router, http.MethodGet, "/api/deviation-approvals/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope["success"])
}
