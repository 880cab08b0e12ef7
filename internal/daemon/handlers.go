package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/protocol"
	"github.com/felixgeelhaar/pylab/internal/runner"
	"github.com/felixgeelhaar/pylab/internal/session"
	"github.com/felixgeelhaar/pylab/internal/validator"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "running",
		"version":  Version,
		"runner":   s.runner,
		"uptime_s": int(time.Since(s.started).Seconds()),
		"catalog":  s.catalog.Stats(),
	})
}

// Mission handlers

type missionSummary struct {
	ID            string            `json:"id"`
	Module        int               `json:"module"`
	Order         int               `json:"order"`
	Title         string            `json:"title"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	EstimatedTime int               `json:"estimated_time"`
	Tags          []string          `json:"tags"`
	Completed     bool              `json:"completed"`
	Score         domain.Score      `json:"score"`
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	missions := s.catalog.List()
	if raw := r.URL.Query().Get("module"); raw != "" {
		module, err := strconv.Atoi(raw)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "module must be a number", err)
			return
		}
		missions = s.catalog.ByModule(module)
	}

	result := make([]missionSummary, 0, len(missions))
	for _, m := range missions {
		summary := missionSummary{
			ID:            m.ID,
			Module:        m.Module,
			Order:         m.Order,
			Title:         m.Title,
			Difficulty:    m.Metadata.Difficulty,
			EstimatedTime: m.Metadata.EstimatedTime,
			Tags:          m.Metadata.Tags,
		}
		if rec, ok, err := s.progress.GetMissionProgress(r.Context(), m.ID); err == nil && ok {
			summary.Completed = rec.Completed
			summary.Score = rec.Score
		}
		result = append(result, summary)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"missions": result,
	})
}

type missionView struct {
	*domain.Mission
	Checks []domain.CheckKind `json:"checks"`
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}

	kinds := make([]domain.CheckKind, 0, len(m.Checks))
	for _, c := range m.Checks {
		kinds = append(kinds, c.Kind())
	}
	s.jsonResponse(w, http.StatusOK, missionView{Mission: m, Checks: kinds})
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"modules": s.catalog.Modules(),
	})
}

type validateRequest struct {
	MissionID string `json:"mission_id"`
	Code      string `json:"code"`
	Output    string `json:"output"`
	// Success defaults to true when omitted
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleValidate extracts and validates captured output without touching
// sessions or progress
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.MissionID == "" {
		s.jsonError(w, http.StatusBadRequest, "mission_id is required", nil)
		return
	}

	m, err := s.catalog.Get(req.MissionID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	ex := s.extractor.Extract(req.Output)
	var vis domain.Visualization
	if req.Success == nil || *req.Success {
		vis = ex.Visualization()
	}
	console := protocol.Lines(ex.Cleaned)

	result := s.validator.Validate(m, validator.Input{
		Source:        req.Code,
		Console:       console,
		Visualization: vis,
	})

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"validation":    result,
		"visualization": vis,
		"console":       console,
	})
}

// Progress handlers

func (s *Server) handleProgressOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.progress.Overview(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to get progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"modules": overview,
	})
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.progress.Reset(r.Context()); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to reset progress", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMissionProgress(w http.ResponseWriter, r *http.Request) {
	missionID := chi.URLParam(r, "missionID")
	if _, err := s.catalog.Get(missionID); err != nil {
		s.serviceError(w, err)
		return
	}

	rec, ok, err := s.progress.GetMissionProgress(r.Context(), missionID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to get progress", err)
		return
	}
	if !ok {
		rec = domain.ProgressRecord{MissionID: missionID}
	}

	stats, err := s.progress.AttemptStats(r.Context(), missionID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to get attempt stats", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"progress": rec,
		"attempts": stats,
	})
}

func (s *Server) handleModuleProgress(w http.ResponseWriter, r *http.Request) {
	module, err := strconv.Atoi(chi.URLParam(r, "module"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "module must be a number", err)
		return
	}

	mp, err := s.progress.GetModuleProgress(r.Context(), module)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, mp)
}

// Session handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"sessions": sessions,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MissionID string `json:"mission_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.MissionID == "" {
		s.jsonError(w, http.StatusBadRequest, "mission_id is required", nil)
		return
	}

	sess, err := s.sessions.Open(r.Context(), req.MissionID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sess, err := s.sessions.SetCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	report, err := s.sessions.Run(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Success bool   `json:"success"`
		Output  string `json:"output"`
		Error   string `json:"error,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	report, err := s.sessions.Submit(r.Context(), chi.URLParam(r, "id"), req.Code, runner.Result{
		Success: req.Success,
		Output:  req.Output,
		Error:   req.Error,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sess, hint, err := s.sessions.NextHint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"hint":       hint,
		"hint_level": sess.HintLevel,
		"session":    sess,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

// serviceError maps service errors to HTTP statuses
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.jsonError(w, http.StatusNotFound, "session not found", err)
	case errors.Is(err, domain.ErrMissionNotFound):
		s.jsonError(w, http.StatusNotFound, "mission not found", err)
	case errors.Is(err, domain.ErrModuleNotFound):
		s.jsonError(w, http.StatusNotFound, "module not found", err)
	case errors.Is(err, session.ErrRunInProgress):
		s.jsonError(w, http.StatusConflict, "run in progress", err)
	case errors.Is(err, session.ErrNoExecutor):
		s.jsonError(w, http.StatusServiceUnavailable, "no executor configured", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.jsonError(w, http.StatusGatewayTimeout, "request cancelled", err)
	default:
		s.jsonError(w, http.StatusInternalServerError, "internal error", err)
	}
}
