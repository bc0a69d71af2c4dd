package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/repository"
)

type stubRepo struct {
	vehicles    map[uuid.UUID]*models.VehicleRecord
	listFilters *repository.VehicleFilters
	lastUpdate  *models.VehicleUpdate
}

func newStubRepo(vehicles ...*models.VehicleRecord) *stubRepo {
	r := &stubRepo{vehicles: map[uuid.UUID]*models.VehicleRecord{}}
	for _, v := range vehicles {
		r.vehicles[v.ID] = v
	}
	return r
}

func (s *stubRepo) InsertVehicle(_ context.Context, v *models.VehicleRecord) error {
	s.vehicles[v.ID] = v
	return nil
}

func (s *stubRepo) FindVehicleByID(_ context.Context, id uuid.UUID) (*models.VehicleRecord, error) {
	if v, ok := s.vehicles[id]; ok {
		return v, nil
	}
	return nil, apperrors.NewNotFoundError("vehicle not found")
}

func (s *stubRepo) FindVehicleByURL(context.Context, string) (*models.VehicleRecord, error) {
	return nil, apperrors.NewNotFoundError("vehicle not found")
}

func (s *stubRepo) UpdateVehicle(_ context.Context, id uuid.UUID, update models.VehicleUpdate) error {
	v, ok := s.vehicles[id]
	if !ok {
		return apperrors.NewNotFoundError("vehicle not found")
	}
	s.lastUpdate = &update
	if update.Status != nil {
		v.Status = *update.Status
	}
	if update.PersonalNotes != nil {
		v.PersonalNotes = update.PersonalNotes
	}
	return nil
}

func (s *stubRepo) UpdateVehicleAnalysis(context.Context, uuid.UUID, models.AnalysisUpdate) error {
	return nil
}

func (s *stubRepo) ListVehicles(_ context.Context, filters repository.VehicleFilters) ([]*models.VehicleRecord, error) {
	s.listFilters = &filters
	out := make([]*models.VehicleRecord, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if filters.Status != nil && v.Status != *filters.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubRepo) FindComparables(context.Context, models.ComparableQuery) ([]models.ComparableRecord, error) {
	return nil, nil
}

func (s *stubRepo) FindVehiclesNeedingAnalysis(context.Context) ([]*models.VehicleRecord, error) {
	return nil, nil
}

func (s *stubRepo) FindVehiclesNeedingTranslation(context.Context, bool) ([]*models.VehicleRecord, error) {
	return nil, nil
}

func testVehicle(status models.VehicleStatus) *models.VehicleRecord {
	return &models.VehicleRecord{
		ID:     uuid.New(),
		Title:  "Toyota Corolla",
		Status: status,
	}
}

func doRequest(t *testing.T, repo repository.VehicleRepository, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := SetupRouter(repo, nil)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListVehicles(t *testing.T) {
	repo := newStubRepo(testVehicle(models.StatusNew), testVehicle(models.StatusToVisit))

	w := doRequest(t, repo, http.MethodGet, "/vehicles?status=new&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Vehicles []models.VehicleRecord `json:"vehicles"`
		Count    int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, models.StatusNew, resp.Vehicles[0].Status)

	require.NotNil(t, repo.listFilters)
	assert.Equal(t, 10, repo.listFilters.Limit)
}

func TestListVehiclesDefaultLimit(t *testing.T) {
	repo := newStubRepo()

	w := doRequest(t, repo, http.MethodGet, "/vehicles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultListLimit, repo.listFilters.Limit)
}

func TestListVehiclesRejectsUnknownStatus(t *testing.T) {
	w := doRequest(t, newStubRepo(), http.MethodGet, "/vehicles?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVehicle(t *testing.T) {
	v := testVehicle(models.StatusNew)
	repo := newStubRepo(v)

	w := doRequest(t, repo, http.MethodGet, "/vehicles/"+v.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.VehicleRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, "Toyota Corolla", got.Title)
}

func TestGetVehicleNotFound(t *testing.T) {
	w := doRequest(t, newStubRepo(), http.MethodGet, "/vehicles/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVehicleBadID(t *testing.T) {
	w := doRequest(t, newStubRepo(), http.MethodGet, "/vehicles/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateVehicle(t *testing.T) {
	v := testVehicle(models.StatusNew)
	repo := newStubRepo(v)

	body := `{"status":"to_contact","personal_notes":"call after 6pm"}`
	w := doRequest(t, repo, http.MethodPatch, "/vehicles/"+v.ID.String(), body)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.VehicleRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusToContact, got.Status)
	require.NotNil(t, got.PersonalNotes)
	assert.Equal(t, "call after 6pm", *got.PersonalNotes)

	require.NotNil(t, repo.lastUpdate)
	assert.NotNil(t, repo.lastUpdate.Status, "status carried through to the repository")
}

func TestUpdateVehicleRejectsEmptyBody(t *testing.T) {
	v := testVehicle(models.StatusNew)
	w := doRequest(t, newStubRepo(v), http.MethodPatch, "/vehicles/"+v.ID.String(), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateVehicleRejectsUnknownStatus(t *testing.T) {
	v := testVehicle(models.StatusNew)
	w := doRequest(t, newStubRepo(v), http.MethodPatch, "/vehicles/"+v.ID.String(), `{"status":"sold"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateVehicleNotFound(t *testing.T) {
	body := `{"status":"to_contact"}`
	w := doRequest(t, newStubRepo(), http.MethodPatch, "/vehicles/"+uuid.NewString(), body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	collector := metrics.NewSimpleCollector(zap.NewNop())
	appMetrics := metrics.NewApplicationMetrics(collector, zap.NewNop())

	v := testVehicle(models.StatusNew)
	router := SetupRouter(newStubRepo(v), appMetrics)

	req := httptest.NewRequest(http.MethodGet, "/vehicles/"+v.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	labels := map[string]string{"method": "GET", "path": "/vehicles/:id", "status": "200"}
	assert.Equal(t, 1.0, collector.CounterValue("http_requests_total", labels))
}
