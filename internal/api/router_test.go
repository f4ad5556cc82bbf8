package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/api/middleware"
	"github.com/yaroslav/modekeeper/internal/coordinator"
	"github.com/yaroslav/modekeeper/internal/probe"
	"github.com/yaroslav/modekeeper/internal/registry"
	"github.com/yaroslav/modekeeper/internal/settings"
	"github.com/yaroslav/modekeeper/internal/storage/storagetest"
	"github.com/yaroslav/modekeeper/models"
	"github.com/yaroslav/modekeeper/pkg/token"
)

type testServer struct {
	router   *gin.Engine
	token    string
	registry *registry.Registry
	coord    *coordinator.Coordinator
	health   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	db := storagetest.NewDB(t, &models.ClusterNode{}, &settings.Setting{})
	guard, _ := storagetest.NewGuard(t, db, logger)

	reg := registry.New(guard, logger)
	store, err := settings.New(guard, logger, 0)
	require.NoError(t, err)

	health := filepath.Join(t.TempDir(), "health")
	board := NewStatusBoard()
	coord := coordinator.New(coordinator.Config{NodeName: "a"},
		probe.NewFileStore(logger, health), reg, store, logger,
		coordinator.WithPresence(board),
	)

	tok, err := token.Generate()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := SetupRouter(ctx, &RouterConfig{
		Logger:      logger,
		NodeName:    "a",
		DB:          guard,
		Coordinator: coord,
		Board:       board,
		Nodes:       reg,
		StaleAfter:  30 * time.Second,
		Operator:    token.NewVerifier("secret", token.Hash(tok, "secret")),
		RateLimit:   1000,
		RateBurst:   1000,
	})

	return &testServer{router: router, token: tok, registry: reg, coord: coord, health: health}
}

func (s *testServer) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set(middleware.HeaderOperatorToken, s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health/live", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var ready models.HealthResponse
	decodeData(t, w, &ready)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "a", ready.Node)

	w = s.do(t, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestModeChange(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/mode", `{"mode":"maintenance"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/mode", `{"mode":"sleepy"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/mode", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/mode", `{"mode":"Maintenance","text":"upgrading"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ModeMaintenance, s.coord.Mode())

	data, err := os.ReadFile(s.health)
	require.NoError(t, err)
	assert.Equal(t, "Bot mode: maintenance\nupgrading", string(data))

	w = s.do(t, http.MethodGet, "/status", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.StatusResponse
	decodeData(t, w, &status)
	assert.Equal(t, models.ModeMaintenance, status.Mode)
	assert.Equal(t, "Maintenance", status.Activity)
	assert.Equal(t, "dnd", status.Presence)
	assert.False(t, status.Deactivated)
}

func TestClusterEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.registry.UpdateActive(ctx, "a", true)
	require.NoError(t, err)
	_, err = s.registry.ResetTransientFields(ctx, "b")
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/cluster/nodes", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ClusterNodeListResponse
	decodeData(t, w, &list)
	assert.Equal(t, 2, list.Total)
	for _, n := range list.Nodes {
		assert.True(t, n.Healthy)
	}

	w = s.do(t, http.MethodPost, "/api/v1/cluster/nodes/ghost/transfer", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cluster/nodes/A/transfer", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cluster/nodes/A/transfer", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.ClusterNodeInfo
	decodeData(t, w, &info)
	assert.Equal(t, models.NodeStateTransferring, info.State)

	w = s.do(t, http.MethodPost, "/api/v1/cluster/nodes/b/disable", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	row, err := s.registry.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, row.Disabled)

	w = s.do(t, http.MethodPost, "/api/v1/cluster/nodes/b/enable", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	row, err = s.registry.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, row.Disabled)
}

func TestStatusBoard(t *testing.T) {
	b := NewStatusBoard()
	status, activity := b.Presence()
	assert.Equal(t, coordinator.PresenceIdle, status)
	assert.Empty(t, activity)

	require.NoError(t, b.SetPresence(context.Background(), coordinator.PresenceOnline, "Online"))
	status, activity = b.Presence()
	assert.Equal(t, coordinator.PresenceOnline, status)
	assert.Equal(t, "Online", activity)
	assert.False(t, b.Updated().IsZero())
}
