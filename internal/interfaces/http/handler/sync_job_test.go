package handler

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

	syncapp "github.com/blingsync/backend/internal/application/sync"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/interfaces/http/middleware"
)

// stubJobService is an in-memory JobService for handler tests
type stubJobService struct {
	createErr error
	created   *syncdomain.SyncJob
	jobs      map[uuid.UUID]*syncdomain.SyncJob
}

func (s *stubJobService) Create(ctx context.Context, cmd syncapp.CreateJobCommand) (*syncdomain.SyncJob, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	job := syncdomain.NewSyncJob(cmd.TenantID, cmd.ConnectionID, cmd.Type, cmd.Direction, syncdomain.DefaultConfiguration(cmd.TenantID))
	if cmd.Trigger != "" {
		job.Trigger = cmd.Trigger
	}
	s.created = job
	return job, nil
}

func (s *stubJobService) Cancel(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, syncdomain.ErrJobNotFound
	}
	if err := job.Cancel(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *stubJobService) Get(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, syncdomain.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobService) List(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter) ([]syncdomain.SyncJob, int64, error) {
	out := make([]syncdomain.SyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out, int64(len(out)), nil
}

func (s *stubJobService) Configuration(ctx context.Context, tenantID uuid.UUID) syncdomain.Configuration {
	return syncdomain.DefaultConfiguration(tenantID)
}

func (s *stubJobService) UpdateConfiguration(ctx context.Context, cmd syncapp.UpdateConfigurationCommand) (*syncdomain.Configuration, error) {
	config := syncdomain.DefaultConfiguration(cmd.TenantID)
	if cmd.BatchSize != nil {
		config.BatchSize = *cmd.BatchSize
	}
	return &config, nil
}

// testTenant injects a fixed tenant into the context, standing in for auth
func testTenant(tenantID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenantID)
		c.Next()
	}
}

func newJobRouter(tenantID uuid.UUID, jobs JobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(testTenant(tenantID))
	NewSyncJobHandler(jobs).RegisterRoutes(api)
	return r
}

func TestSyncJobHandler_Create(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubJobService{jobs: map[uuid.UUID]*syncdomain.SyncJob{}}
	r := newJobRouter(tenantID, svc)

	body := `{"connection_id":"` + uuid.NewString() + `","type":"PRODUCTS","direction":"IMPORT"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool        `json:"success"`
		Data    JobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "PRODUCTS", resp.Data.Type)
	assert.Equal(t, "PENDING", resp.Data.Status)
	assert.Equal(t, tenantID.String(), resp.Data.TenantID)
}

func TestSyncJobHandler_CreateRejectsInvalidType(t *testing.T) {
	tenantID := uuid.New()
	r := newJobRouter(tenantID, &stubJobService{})

	body := `{"connection_id":"` + uuid.NewString() + `","type":"INVOICES","direction":"IMPORT"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncJobHandler_CreateConflictWhenJobRunning(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubJobService{createErr: syncdomain.ErrJobAlreadyRunning}
	r := newJobRouter(tenantID, svc)

	body := `{"connection_id":"` + uuid.NewString() + `","type":"PRODUCTS","direction":"IMPORT"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_ALREADY_EXISTS")
}

func TestSyncJobHandler_GetNotFound(t *testing.T) {
	tenantID := uuid.New()
	r := newJobRouter(tenantID, &stubJobService{jobs: map[uuid.UUID]*syncdomain.SyncJob{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs/"+uuid.NewString(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestSyncJobHandler_Cancel(t *testing.T) {
	tenantID := uuid.New()
	job := syncdomain.NewSyncJob(tenantID, uuid.New(), syncdomain.JobTypeProducts, syncdomain.DirectionImport, syncdomain.DefaultConfiguration(tenantID))
	svc := &stubJobService{jobs: map[uuid.UUID]*syncdomain.SyncJob{job.ID: job}}
	r := newJobRouter(tenantID, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs/"+job.ID.String()+"/cancel", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CANCELLED")
}

func TestSyncJobHandler_GetConfiguration(t *testing.T) {
	tenantID := uuid.New()
	r := newJobRouter(tenantID, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/configuration", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ConfigurationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.Data.BatchSize)
	assert.Equal(t, "BLING_WINS", resp.Data.ConflictResolution)
}
