package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/publisher/memory"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	defaultRunLimit   = 10
)

// getProgress handles GET /v1/progress.
func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracker unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.status.Status())
}

// listRuns handles GET /v1/runs?limit= and returns the newest summaries first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracker unavailable")
		return
	}
	limit, _, err := parseLimitOffset(r, defaultRunLimit, defaultRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	history := s.status.Status().History
	runs := make([]crawler.Summary, 0, limit)
	for i := len(history) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, history[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// listEvents handles GET /v1/events?limit=&offset= and returns the newest events first.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, "event log disabled")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultEventLimit, maxEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msgs := s.events.Messages()
	out := make([]memory.Message, 0, limit)
	for i := len(msgs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// startRun handles POST /v1/runs. It answers 202 with the run handle, or 409 when
// a run is already active.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusNotFound, "manual runs disabled")
		return
	}
	id, err := s.trigger.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, crawler.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("trigger run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run": id})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
