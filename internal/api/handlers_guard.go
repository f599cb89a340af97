package api

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/host"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleForceSnapshot captures an immediate vitals snapshot.
func (s *Server) handleForceSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.prober.Capture(r.Context(), "manual")

	id, err := s.snaps.Save("", snap)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"snapshot": snap,
	})
}

// handleGuardStatus reports guard configuration and recent activity.
func (s *Server) handleGuardStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.snaps.Count()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	last, err := s.snaps.Latest()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	componentCount := 0
	if plugins, err := s.site.ActivePlugins(); err == nil {
		componentCount = len(plugins)
	}

	status := map[string]interface{}{
		"enabled":                s.cfg.Guard.Enabled,
		"state":                  s.coordinator.State(),
		"snapshots_count":        count,
		"rollback_count":         s.coordinator.RollbackCount(),
		"recent_events":          s.events.Recent(10),
		"platform_version":       s.site.PlatformVersion(),
		"active_component_count": componentCount,
	}
	if last != nil {
		status["last_snapshot"] = last
	}

	jsonResponse(w, http.StatusOK, status)
}

// handleForceVerify runs an immediate verification cycle against the latest
// pre-change baseline.
func (s *Server) handleForceVerify(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.coordinator.Verify(host.ChangeContext{
		Type:   host.ChangeManual,
		Action: "verify",
	})
	if errors.Is(err, apperrors.ErrNoBaseline) {
		jsonResponse(w, http.StatusOK, map[string]interface{}{"no_baseline": true})
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, cmp)
}

// handleGuardLog returns the audit trail, newest first.
func (s *Server) handleGuardLog(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}

	entries := s.events.Recent(n)
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   s.events.Count(),
	})
}
