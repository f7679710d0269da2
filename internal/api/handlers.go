package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"dexIngest/internal/model"
	"dexIngest/internal/syncer"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type syncStartedResponse struct {
	RunID string      `json:"run_id"`
	Mode  syncer.Mode `json:"mode"`
}

type syncStatusResponse struct {
	Running  bool               `json:"running"`
	Last     *syncer.Summary    `json:"last,omitempty"`
	Statuses []model.SyncStatus `json:"statuses"`
}

type chainState struct {
	ChainID string `json:"chain_id"`
	State   string `json:"state"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) triggerFullSync(w http.ResponseWriter, _ *http.Request) {
	runID, err := s.deps.Sync.Start(s.ctx, syncer.ModeFull)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		s.writeError(w, http.StatusConflict, "sync_in_progress", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("start full sync failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "sync_failed", err.Error())
		return
	}
	s.logger.Info("full sync triggered", zap.String("run_id", runID))
	s.writeJSON(w, http.StatusAccepted, syncStartedResponse{RunID: runID, Mode: syncer.ModeFull})
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.deps.Status.ListSyncStatus(r.Context())
	if err != nil {
		s.logger.Error("list sync status failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "store_error", "failed to list sync status")
		return
	}
	resp := syncStatusResponse{Running: s.deps.Sync.Running(), Statuses: statuses}
	if last, ok := s.deps.Sync.LastSummary(); ok {
		resp.Last = &last
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) syncCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := s.deps.Status.ListCursors(r.Context())
	if err != nil {
		s.logger.Error("list cursors failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "store_error", "failed to list cursors")
		return
	}
	s.writeJSON(w, http.StatusOK, cursors)
}

func (s *Server) listenerChains(w http.ResponseWriter, _ *http.Request) {
	out := make([]chainState, 0)
	if s.deps.Listener != nil {
		for id, state := range s.deps.Listener.States() {
			out = append(out, chainState{ChainID: id, State: state.String()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) transactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("transaction stats failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "store_error", "failed to count transactions")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonnet.Marshal(v)
	if err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: message})
}
