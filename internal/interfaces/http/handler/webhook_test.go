package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// stubConnectionRepo serves FindByID from a fixed map; webhooks only read
type stubConnectionRepo struct {
	connections map[uuid.UUID]*credential.Connection
}

func (s *stubConnectionRepo) Save(ctx context.Context, conn *credential.Connection) error {
	s.connections[conn.ID] = conn
	return nil
}

func (s *stubConnectionRepo) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	conn, ok := s.connections[id]
	if !ok {
		return nil, credential.ErrConnectionNotFound
	}
	return conn, nil
}

func (s *stubConnectionRepo) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	return nil, credential.ErrConnectionNotFound
}

func (s *stubConnectionRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	out := make([]credential.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		if conn.TenantID == tenantID {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (s *stubConnectionRepo) FindActive(ctx context.Context) ([]credential.Connection, error) {
	out := make([]credential.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		if conn.Status == credential.ConnectionStatusActive {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (s *stubConnectionRepo) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	s.connections[conn.ID] = conn
	return nil
}

func (s *stubConnectionRepo) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func newWebhookRouter(jobs JobService, connections credential.ConnectionRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	NewWebhookHandler(jobs, connections, zap.NewNop()).RegisterRoutes(api)
	return r
}

func TestWebhookHandler_EnqueuesImportJob(t *testing.T) {
	tenantID := uuid.New()
	conn := credential.NewConnection(tenantID, "client-1", "ciphertext")
	repo := &stubConnectionRepo{connections: map[uuid.UUID]*credential.Connection{conn.ID: conn}}
	svc := &stubJobService{jobs: map[uuid.UUID]*syncdomain.SyncJob{}}
	r := newWebhookRouter(svc, repo)

	body := `{"connection_id":"` + conn.ID.String() + `","entity_type":"produto","entity_id":"123","event":"updated"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bling", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data WebhookResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Queued)
	require.NotNil(t, resp.Data.Job)
	assert.Equal(t, "PRODUCTS", resp.Data.Job.Type)
	assert.Equal(t, "IMPORT", resp.Data.Job.Direction)
	assert.Equal(t, "WEBHOOK", resp.Data.Job.Trigger)
	assert.Equal(t, tenantID.String(), resp.Data.Job.TenantID)
	require.NotNil(t, svc.created)
	assert.Equal(t, syncdomain.TriggerWebhook, svc.created.Trigger)
}

func TestWebhookHandler_AbsorbsRunningJob(t *testing.T) {
	tenantID := uuid.New()
	conn := credential.NewConnection(tenantID, "client-1", "ciphertext")
	repo := &stubConnectionRepo{connections: map[uuid.UUID]*credential.Connection{conn.ID: conn}}
	svc := &stubJobService{createErr: syncdomain.ErrJobAlreadyRunning}
	r := newWebhookRouter(svc, repo)

	body := `{"connection_id":"` + conn.ID.String() + `","entity_type":"estoque"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bling", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data WebhookResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Queued)
	assert.NotEmpty(t, resp.Data.Reason)
}

func TestWebhookHandler_RejectsUnknownEntityType(t *testing.T) {
	repo := &stubConnectionRepo{connections: map[uuid.UUID]*credential.Connection{}}
	r := newWebhookRouter(&stubJobService{}, repo)

	body := `{"connection_id":"` + uuid.NewString() + `","entity_type":"nota_fiscal"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bling", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_UnknownConnection(t *testing.T) {
	repo := &stubConnectionRepo{connections: map[uuid.UUID]*credential.Connection{}}
	r := newWebhookRouter(&stubJobService{}, repo)

	body := `{"connection_id":"` + uuid.NewString() + `","entity_type":"product"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/bling", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}
