package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/progress"
	"github.com/JakeFAU/konut-crawler/internal/publisher/memory"
)

type fakeTrigger struct {
	err   error
	calls int
}

func (f *fakeTrigger) Trigger(context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "manual-1", nil
}

func newTestServer(t *testing.T, opts Options) (*Server, *progress.Tracker) {
	t.Helper()
	tracker := progress.NewTracker(zap.NewNop())
	return NewServer(tracker, opts, zap.NewNop()), tracker
}

func serve(s *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Options{})
	rec := serve(server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(server, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	bare := NewServer(nil, Options{}, nil)
	rec = serve(bare, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Options{})
	serve(server, http.MethodGet, "/healthz", nil)
	rec := serve(server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestProgressReflectsTracker(t *testing.T) {
	t.Parallel()

	server, tracker := newTestServer(t, Options{})
	tracker.RunStarted("run-7", crawler.ModeSale, 12)
	tracker.SubregionFinished(crawler.SubregionResult{Region: "izmir", Subregion: "bornova"})

	rec := serve(server, http.MethodGet, "/v1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st progress.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, "run-7", st.RunID)
	require.Equal(t, progress.StateRunning, st.State)
	require.Equal(t, 12, st.SubregionsTotal)
	require.Equal(t, 1, st.SubregionsDone)
	require.Equal(t, "izmir/bornova", st.LastSubregion)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	server, tracker := newTestServer(t, Options{})
	for _, id := range []string{"a", "b", "c"} {
		tracker.RunStarted(id, crawler.ModeRent, 0)
		tracker.RunFinished(crawler.Summary{RunID: id})
	}

	rec := serve(server, http.MethodGet, "/v1/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []crawler.Summary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	require.Equal(t, "c", body.Runs[0].RunID)
	require.Equal(t, "b", body.Runs[1].RunID)

	rec = serve(server, http.MethodGet, "/v1/runs?limit=zero", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEvents(t *testing.T) {
	t.Parallel()

	events := memory.New(0)
	for _, label := range []string{"first", "second", "third"} {
		_, err := events.Publish(context.Background(), "snapshots", map[string]string{"label": label})
		require.NoError(t, err)
	}
	server, _ := newTestServer(t, Options{Events: events})

	rec := serve(server, http.MethodGet, "/v1/events?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "second")
	require.NotContains(t, rec.Body.String(), "third")

	disabled, _ := newTestServer(t, Options{})
	rec = serve(disabled, http.MethodGet, "/v1/events", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRun(t *testing.T) {
	t.Parallel()

	trigger := &fakeTrigger{}
	server, _ := newTestServer(t, Options{Trigger: trigger, APIKey: "secret"})

	rec := serve(server, http.MethodPost, "/v1/runs", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, trigger.calls)

	rec = serve(server, http.MethodPost, "/v1/runs", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "manual-1")

	trigger.err = crawler.ErrRunInProgress
	rec = serve(server, http.MethodPost, "/v1/runs", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusConflict, rec.Code)

	trigger.err = errors.New("boom")
	rec = serve(server, http.MethodPost, "/v1/runs", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStartRunDisabled(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, Options{})
	rec := serve(server, http.MethodPost, "/v1/runs", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
