package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/internal/summary"
	"github.com/DevArk-AI/devark/pkg/models"
)

type fakeSessions struct {
	list       []models.SessionIndex
	lastFilter sessions.Filter
	details    map[string]*models.SessionDetails
}

func (f *fakeSessions) List(_ context.Context, filter sessions.Filter) ([]models.SessionIndex, error) {
	f.lastFilter = filter
	return f.list, nil
}

func (f *fakeSessions) Details(_ context.Context, id string) (*models.SessionDetails, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return d, nil
}

type fakeSummaries struct {
	lastPeriod summary.Period
}

func (f *fakeSummaries) Generate(_ context.Context, period summary.Period, _ time.Time) (*summary.Summary, error) {
	f.lastPeriod = period
	return &summary.Summary{Period: period, PromptCount: 7}, nil
}

type fakeDismisser struct{ calls int }

func (f *fakeDismisser) Dismiss() { f.calls++ }

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(cfg).Router())
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, Config{Version: "1.2.3"})

	var body map[string]any
	resp := getJSON(t, server.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestStateEndpoint(t *testing.T) {
	store := state.NewStore()
	store.Dispatch(state.StartAnalysis{Prompt: models.DetectedPrompt{ID: "p1", Text: "hello"}})
	server := newTestServer(t, Config{State: store})

	var body state.State
	resp := getJSON(t, server.URL+"/api/state", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p1", body.Analysis.PromptID)
	assert.True(t, body.Analysis.Analyzing)
}

func TestSessionsEndpointAppliesFilter(t *testing.T) {
	fake := &fakeSessions{list: []models.SessionIndex{{ID: "claude-abc", Source: "claude-code"}}}
	server := newTestServer(t, Config{Sessions: fake})

	var body struct {
		Sessions []models.SessionIndex `json:"sessions"`
	}
	resp := getJSON(t, server.URL+"/api/sessions?source=claude-code&limit=5&since=2026-03-01T00:00:00Z", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "claude-abc", body.Sessions[0].ID)

	assert.Equal(t, []string{"claude-code"}, fake.lastFilter.Sources)
	assert.Equal(t, 5, fake.lastFilter.Limit)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), fake.lastFilter.Since)
}

func TestSessionsEndpointBadSince(t *testing.T) {
	server := newTestServer(t, Config{Sessions: &fakeSessions{}})
	resp := getJSON(t, server.URL+"/api/sessions?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionDetailsEndpoint(t *testing.T) {
	fake := &fakeSessions{details: map[string]*models.SessionDetails{
		"claude-abc": {
			SessionIndex: models.SessionIndex{ID: "claude-abc"},
			Messages:     []models.Message{{Role: models.RoleUser, Content: "hi"}},
		},
	}}
	server := newTestServer(t, Config{Sessions: fake})

	var details models.SessionDetails
	resp := getJSON(t, server.URL+"/api/sessions/claude-abc", &details)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "claude-abc", details.ID)
	require.Len(t, details.Messages, 1)

	resp = getJSON(t, server.URL+"/api/sessions/claude-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSummaryEndpoint(t *testing.T) {
	fake := &fakeSummaries{}
	server := newTestServer(t, Config{Summaries: fake})

	var body summary.Summary
	resp := getJSON(t, server.URL+"/api/summary/weekly", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, summary.PeriodWeekly, fake.lastPeriod)
	assert.Equal(t, 7, body.PromptCount)

	resp = getJSON(t, server.URL+"/api/summary/hourly", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDismissCoachingEndpoint(t *testing.T) {
	store := state.NewStore()
	store.Dispatch(state.SetCoaching{Coaching: models.CoachingData{SessionID: "s1"}})
	dismisser := &fakeDismisser{}
	server := newTestServer(t, Config{State: store, Coaching: dismisser})

	resp, err := http.Post(server.URL+"/api/coaching/dismiss", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, dismisser.calls)
	assert.Nil(t, store.State().CurrentCoaching)
}

func TestUploadEndpoint(t *testing.T) {
	uploads := 0
	server := newTestServer(t, Config{Upload: func(ctx context.Context) (*models.UploadResult, error) {
		uploads++
		return &models.UploadResult{Success: true, Created: 4}, nil
	}})

	var result models.UploadResult
	resp, err := http.Post(server.URL+"/api/upload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 1, uploads)
}

func TestUploadEndpointFailure(t *testing.T) {
	server := newTestServer(t, Config{Upload: func(ctx context.Context) (*models.UploadResult, error) {
		return nil, errors.New("backend down")
	}})

	resp, err := http.Post(server.URL+"/api/upload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.True(t, strings.Contains(string(raw), "backend down"))
}

func TestEventsStreamReceivesDispatches(t *testing.T) {
	store := state.NewStore()
	srv := NewServer(Config{State: store})
	server := httptest.NewServer(srv.Router())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "connected")

	store.Dispatch(state.StartAnalysis{Prompt: models.DetectedPrompt{ID: "p1", Text: "hi"}})

	n, err = resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), `"type":"state"`)
}
