// Package api tests
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rcavanagh/sitesentry/internal/config"
	"github.com/rcavanagh/sitesentry/internal/guard"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/kvstore"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// --- Test doubles ---

type fakeProber struct {
	status int
}

func (f *fakeProber) Capture(ctx context.Context, trigger string) *snapshot.Snapshot {
	status := f.status
	if status == 0 {
		status = 200
	}
	return &snapshot.Snapshot{
		Timestamp: time.Now(),
		Trigger:   trigger,
		Checks: map[string]snapshot.CheckResult{
			snapshot.CheckHomepage: {
				Status:     snapshot.StatusOK,
				HTTPStatus: status,
				ResponseMS: 100,
			},
		},
	}
}

// --- Fixture ---

type apiFixture struct {
	server *Server
	prober *fakeProber
	snaps  *snapshot.Store
	log    *guard.EventLog
}

func newAPIFixture(t *testing.T, cfg *config.Config) *apiFixture {
	t.Helper()

	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	site := host.NewMemorySite([]string{"wp-seo"}, "twentytwentyfour", "twentytwentyfour")
	snaps := snapshot.NewStore(kv)
	log := guard.NewEventLog(kv)
	prober := &fakeProber{}
	exec := guard.NewExecutor(site, log, config.SelfSlug)
	coordinator := guard.NewCoordinator(cfg.Guard, prober, snaps, log, exec, nil)

	server := NewServer(cfg, ":0", Options{
		Site:        site,
		Prober:      prober,
		Snapshots:   snaps,
		EventLog:    log,
		Coordinator: coordinator,
	})

	return &apiFixture{server: server, prober: prober, snaps: snaps, log: log}
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func openConfig() *config.Config {
	return &config.Config{
		SiteURL: "https://example.com",
		Guard:   config.GuardConfig{Enabled: true, AutoRollback: true},
	}
}

// --- Health tests ---

func TestHealthEndpoint(t *testing.T) {
	fx := newAPIFixture(t, openConfig())

	rec := fx.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

// --- Auth tests ---

func TestOperatorAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := openConfig()
	cfg.APITokenHash = string(hash)
	fx := newAPIFixture(t, cfg)

	t.Run("missing token", func(t *testing.T) {
		rec := fx.do(t, http.MethodGet, "/update-guard/status", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := fx.do(t, http.MethodGet, "/update-guard/status", "wrong", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := fx.do(t, http.MethodGet, "/update-guard/status", "secret-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unprovisioned auth allows requests", func(t *testing.T) {
		open := newAPIFixture(t, openConfig())
		rec := open.do(t, http.MethodGet, "/update-guard/status", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// --- Guard endpoint tests ---

func TestForceSnapshot(t *testing.T) {
	fx := newAPIFixture(t, openConfig())

	rec := fx.do(t, http.MethodPost, "/update-guard/snapshot", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["id"])

	count, err := fx.snaps.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGuardStatus(t *testing.T) {
	fx := newAPIFixture(t, openConfig())
	fx.log.Append(guard.ActionPreUpdate, nil)

	rec := fx.do(t, http.MethodGet, "/update-guard/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, float64(0), body["snapshots_count"])
	assert.Equal(t, "6.5.2", body["platform_version"])
	assert.Equal(t, float64(1), body["active_component_count"])
	assert.Len(t, body["recent_events"], 1)
}

func TestForceVerify(t *testing.T) {
	t.Run("no baseline", func(t *testing.T) {
		fx := newAPIFixture(t, openConfig())

		rec := fx.do(t, http.MethodPost, "/update-guard/verify", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["no_baseline"])
	})

	t.Run("verifies against stored baseline", func(t *testing.T) {
		fx := newAPIFixture(t, openConfig())

		baseline := fx.prober.Capture(context.Background(), "pre_update:manual")
		_, err := fx.snaps.Save("", baseline)
		require.NoError(t, err)

		rec := fx.do(t, http.MethodPost, "/update-guard/verify", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decodeBody(t, rec)["verdict"])
	})
}

func TestGuardLog(t *testing.T) {
	fx := newAPIFixture(t, openConfig())
	fx.log.Append(guard.ActionPreUpdate, nil)
	fx.log.Append(guard.ActionUpdateCompleted, nil)
	fx.log.Append(guard.ActionPostUpdateVerify, nil)

	rec := fx.do(t, http.MethodGet, "/update-guard/log?limit=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["entries"], 2)
}

// --- Command endpoint tests ---

func TestCommandsWithoutHub(t *testing.T) {
	fx := newAPIFixture(t, openConfig())

	rec := fx.do(t, http.MethodGet, "/commands/poll", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/commands/cmd-1/execute", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/commands/cmd-1/result", "", `{"success":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
