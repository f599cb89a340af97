package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/hub"
)

// handleCommandsPoll pulls pending commands from the hub queue.
func (s *Server) handleCommandsPoll(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	cmds, err := s.hubClient.PullCommands(r.Context(), limit)
	if errors.Is(err, apperrors.ErrHubNotConfigured) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"commands": cmds,
		"count":    len(cmds),
	})
}

// handleCommandExecute fetches one command by id and runs it.
func (s *Server) handleCommandExecute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cmd, err := s.hubClient.GetCommand(r.Context(), id)
	if errors.Is(err, apperrors.ErrCommandNotFound) {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, apperrors.ErrHubNotConfigured) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	result := s.processor.Execute(r.Context(), *cmd)
	jsonResponse(w, http.StatusOK, result)
}

// handleCommandResult reports a result for a command. Used as a manual
// override when an operator resolves a command out of band.
func (s *Server) handleCommandResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var result hub.CommandResult
	if err := decodeJSON(r, &result); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	result.CommandID = id

	if err := s.hubClient.ReportResult(r.Context(), result); err != nil {
		if errors.Is(err, apperrors.ErrHubNotConfigured) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(w, http.StatusBadGateway, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]bool{"reported": true})
}
