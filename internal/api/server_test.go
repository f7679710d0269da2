package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexIngest/internal/indexer"
	"dexIngest/internal/metrics"
	"dexIngest/internal/model"
	"dexIngest/internal/storage/memory"
	"dexIngest/internal/syncer"
)

type fakeSync struct {
	busy    bool
	started []syncer.Mode
	last    *syncer.Summary
}

func (f *fakeSync) Start(_ context.Context, mode syncer.Mode) (string, error) {
	if f.busy {
		return "", syncer.ErrSyncInProgress
	}
	f.busy = true
	f.started = append(f.started, mode)
	return "run-1", nil
}

func (f *fakeSync) Running() bool { return f.busy }

func (f *fakeSync) LastSummary() (syncer.Summary, bool) {
	if f.last == nil {
		return syncer.Summary{}, false
	}
	return *f.last, true
}

type fakeStats struct{ stats model.TxStats }

func (f fakeStats) Stats(context.Context) (model.TxStats, error) { return f.stats, nil }

type fakeListener map[string]indexer.State

func (f fakeListener) States() map[string]indexer.State { return f }

func newTestServer(t *testing.T, sync *fakeSync) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SyncRuns.WithLabelValues("full").Inc()
	s := NewServer(context.Background(), ":0", Deps{
		Sync:     sync,
		Status:   store,
		Stats:    fakeStats{stats: model.TxStats{Total: 3, Swap: 2, Unknown: 1}},
		Listener: fakeListener{"sepolia": indexer.StateStreaming, "fuji": indexer.StateReconnecting},
		Gatherer: reg,
	}, nil)
	return s, store
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTriggerFullSync(t *testing.T) {
	sync := &fakeSync{}
	s, _ := newTestServer(t, sync)

	rec := do(t, s, http.MethodPost, "/api/sync/full")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started syncStartedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "run-1", started.RunID)
	assert.Equal(t, syncer.ModeFull, started.Mode)

	rec = do(t, s, http.MethodPost, "/api/sync/full")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []syncer.Mode{syncer.ModeFull}, sync.started)

	rec = do(t, s, http.MethodGet, "/api/sync/full")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSyncStatusAndCursors(t *testing.T) {
	ctx := context.Background()
	sync := &fakeSync{last: &syncer.Summary{RunID: "run-0", Mode: syncer.ModeIncremental}}
	s, store := newTestServer(t, sync)
	require.NoError(t, store.SaveSyncStatus(ctx, model.SyncStatus{ChainID: "sepolia", EntityType: "tokens", RunID: "run-0", Status: model.SyncCompleted}))
	require.NoError(t, store.CommitPage(ctx, nil, model.SyncCursor{ChainID: "sepolia", DataType: "tokens", LastSyncedID: "0x3"}))

	rec := do(t, s, http.MethodGet, "/api/sync/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status syncStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	require.NotNil(t, status.Last)
	assert.Equal(t, "run-0", status.Last.RunID)
	require.Len(t, status.Statuses, 1)
	assert.Equal(t, model.SyncCompleted, status.Statuses[0].Status)

	rec = do(t, s, http.MethodGet, "/api/sync/cursors")
	require.Equal(t, http.StatusOK, rec.Code)
	var cursors []model.SyncCursor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cursors))
	require.Len(t, cursors, 1)
	assert.Equal(t, "0x3", cursors[0].LastSyncedID)
}

func TestListenerChainsAndStats(t *testing.T) {
	s, _ := newTestServer(t, &fakeSync{})

	rec := do(t, s, http.MethodGet, "/api/listener/chains")
	require.Equal(t, http.StatusOK, rec.Code)
	var chains []chainState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chains))
	assert.Equal(t, []chainState{
		{ChainID: "fuji", State: indexer.StateReconnecting.String()},
		{ChainID: "sepolia", State: indexer.StateStreaming.String()},
	}, chains)

	rec = do(t, s, http.MethodGet, "/api/transactions/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.TxStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, model.TxStats{Total: 3, Swap: 2, Unknown: 1}, stats)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeSync{})

	rec := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dexingest_sync_runs_total{mode="full"} 1`))
}

func TestMethodMismatchAndUnknownPath(t *testing.T) {
	s, _ := newTestServer(t, &fakeSync{})

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodPost, "/api/sync/status").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodDelete, "/api/transactions/stats").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/sync/unknown").Code)
}
