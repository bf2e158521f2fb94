package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/config"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
	"github.com/hxinn/amazon-listing-ai-assistant/internal/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubRepo is a fixed-content repository backing read endpoints.
type stubRepo struct {
	results   []domain.VerificationResult
	deleted   []string
	deleteErr error
}

func (s *stubRepo) Upsert(ctx context.Context, r *domain.VerificationResult) error { return nil }

func (s *stubRepo) Get(ctx context.Context, key domain.ResultKey) (*domain.VerificationResult, error) {
	return nil, domain.ErrResultNotFound
}

func (s *stubRepo) ExistsCompleted(ctx context.Context, key domain.ResultKey) (bool, error) {
	return false, nil
}

func (s *stubRepo) ExistsAny(ctx context.Context, key domain.ResultKey) (bool, error) {
	return false, nil
}

func (s *stubRepo) GetAll(ctx context.Context) ([]domain.VerificationResult, error) {
	return s.results, nil
}

func (s *stubRepo) GetByProperty(ctx context.Context, property string) ([]domain.VerificationResult, error) {
	return nil, nil
}

func (s *stubRepo) GetAllByPropertyAndSite(ctx context.Context, property, site string) ([]domain.VerificationResult, error) {
	return nil, nil
}

func (s *stubRepo) GetFailed(ctx context.Context) ([]domain.VerificationResult, error) {
	return nil, nil
}

func (s *stubRepo) DeleteByID(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRepo) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{Total: len(s.results)}, nil
}

func (s *stubRepo) UpdateSyncStatus(ctx context.Context, id, syncStatus, syncError string) error {
	return nil
}

func (s *stubRepo) FindDuplicateGroups(ctx context.Context) ([]domain.DuplicateGroup, error) {
	return nil, nil
}

func (s *stubRepo) RemoveDuplicates(ctx context.Context) (int, error) { return 0, nil }

// stubCatalog returns no attributes, so background runs finish immediately.
type stubCatalog struct{}

func (stubCatalog) ListAttributes(ctx context.Context) ([]string, error) { return nil, nil }

func (stubCatalog) GetApplicability(ctx context.Context, property string) (map[string]string, error) {
	return nil, nil
}

func (stubCatalog) GetExemplars(ctx context.Context, property string) ([]domain.Exemplar, error) {
	return nil, nil
}

func (stubCatalog) GetSchemaURL(ctx context.Context, site, productType string) (string, error) {
	return "", domain.ErrCatalogAPIFailure
}

func (stubCatalog) FetchSchema(ctx context.Context, url string) (*domain.SchemaDocument, error) {
	return nil, domain.ErrCatalogAPIFailure
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (string, error) {
	return "", domain.ErrGenerationFailure
}

type stubSyncClient struct{}

func (stubSyncClient) SubmitGroup(ctx context.Context, group *domain.SyncGroup) error { return nil }

type stubCache struct{}

func (stubCache) Get(ctx context.Context, key string) (interface{}, error) {
	return nil, domain.ErrCacheMiss
}

func (stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (stubCache) Delete(ctx context.Context, key string) error { return nil }

func (stubCache) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func setupTestRouter(repo domain.ResultRepository) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"*"},
		},
	}

	log := zap.NewNop()
	orchestrator := usecase.NewOrchestrator(repo, stubCatalog{}, stubGenerator{}, stubCache{}, usecase.OrchestratorConfig{}, log)
	syncService := usecase.NewSyncService(repo, stubSyncClient{}, stubCatalog{}, usecase.SyncServiceConfig{RequestDelay: time.Millisecond}, log)
	handler := NewHandler(orchestrator, syncService, repo, log)

	return SetupRouter(cfg, handler, log)
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheckEndpoint(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "listing-verifier", body["service"])
}

func TestStatusEndpoint(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodGet, "/api/v1/verification/status")

	assert.Equal(t, http.StatusOK, w.Code)

	var state usecase.RunState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, usecase.RunIdle, state.Status)
}

func TestStartEndpoint(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/verification/start")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestPauseEndpoint_NoActiveRun(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/verification/pause")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no verification run")
}

func TestStatsEndpoint(t *testing.T) {
	repo := &stubRepo{results: []domain.VerificationResult{{ID: "US-SHOES-color"}}}
	router := setupTestRouter(repo)

	w := doRequest(router, http.MethodGet, "/api/v1/verification/stats")

	assert.Equal(t, http.StatusOK, w.Code)

	var stats domain.StoreStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
}

func TestResultsEndpoint(t *testing.T) {
	repo := &stubRepo{results: []domain.VerificationResult{
		{ID: "US-SHOES-color", Site: "US", ProductType: "SHOES", Property: "color",
			GeneratedData: `[{"value":"red"}]`, Status: domain.StatusCompleted},
		{ID: "UK-SHOES-color", Site: "UK", ProductType: "SHOES", Property: "color",
			GeneratedData: `[{"value":"red"}]`, Status: domain.StatusCompleted},
	}}
	router := setupTestRouter(repo)

	w := doRequest(router, http.MethodGet, "/api/v1/verification/results")

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Properties []domain.PropertyGroup `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Properties, 1)
	assert.Equal(t, "color", body.Properties[0].Property)
	require.Len(t, body.Properties[0].Values, 1)
	assert.Len(t, body.Properties[0].Values[0].Sites, 2)
}

func TestDeleteResultEndpoint(t *testing.T) {
	repo := &stubRepo{}
	router := setupTestRouter(repo)

	w := doRequest(router, http.MethodDelete, "/api/v1/verification/results/US-SHOES-color")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"US-SHOES-color"}, repo.deleted)
}

func TestDeleteResultEndpoint_NotFound(t *testing.T) {
	repo := &stubRepo{deleteErr: domain.ErrResultNotFound}
	router := setupTestRouter(repo)

	w := doRequest(router, http.MethodDelete, "/api/v1/verification/results/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/verification/cleanup")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicatesRemoved")
}

func TestSyncEndpoint(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/verification/sync")

	assert.Equal(t, http.StatusOK, w.Code)

	var report domain.SyncReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 0, report.Total)
}

func TestUnknownRoute(t *testing.T) {
	router := setupTestRouter(&stubRepo{})

	w := doRequest(router, http.MethodGet, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
