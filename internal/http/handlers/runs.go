package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clearmark/internal/domain"
	"clearmark/internal/payload"
	"clearmark/internal/sse"
	"clearmark/pkg/zip"
)

type runResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Phase          string    `json:"phase"`
	Message        string    `json:"message"`
	Percent        int       `json:"percent"`
	Error          string    `json:"error,omitempty"`
	ResultAssetID  string    `json:"result_asset_id,omitempty"`
	AwaitingAccess bool      `json:"awaiting_access,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func runToResponse(run *domain.Run) runResponse {
	return runResponse{
		ID:             run.ID,
		Kind:           string(run.Kind),
		Phase:          string(run.Phase),
		Message:        run.Message,
		Percent:        run.Percent,
		Error:          run.ErrorMessage,
		ResultAssetID:  run.ResultAssetID,
		AwaitingAccess: run.AccessRequested,
		CreatedAt:      run.CreatedAt,
		UpdatedAt:      run.UpdatedAt,
	}
}

func (a *App) loadRun(w http.ResponseWriter, r *http.Request) *domain.Run {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "run id required")
		return nil
	}
	run, err := a.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "run not found")
			return nil
		}
		a.logger.Error().Err(err).Str("run_id", id).Msg("api: load run")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load run")
		return nil
	}
	return run
}

// RunStatus returns the current snapshot of one run.
func (a *App) RunStatus(w http.ResponseWriter, r *http.Request) {
	run := a.loadRun(w, r)
	if run == nil {
		return
	}
	a.json(w, http.StatusOK, runToResponse(run))
}

const maxListLimit = 200

// RunList returns the most recent runs for operator inspection.
func (a *App) RunList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = parsed
	}
	runs, err := a.runs.ListRecent(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("api: list recent runs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list runs")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for i := range runs {
		out = append(out, runToResponse(&runs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"runs": out})
}

const heartbeatInterval = 15 * time.Second

// RunEvents streams run snapshots as server-sent events. The current state
// is replayed on connect, then hub events follow until the run settles or
// the client goes away.
func (a *App) RunEvents(w http.ResponseWriter, r *http.Request) {
	run := a.loadRun(w, r)
	if run == nil {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	// Streams outlive the server write timeout; clear the deadline for this
	// response only.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, cancel := a.hub.Subscribe(run.ID)
	defer cancel()

	current := sse.EventFromRun(*run)
	writeEvent(w, current)
	flusher.Flush()
	if current.Terminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	done := r.Context().Done()
	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, ev sse.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// RunResult serves the cleaned artifact bytes once a run has succeeded.
func (a *App) RunResult(w http.ResponseWriter, r *http.Request) {
	run := a.loadRun(w, r)
	if run == nil {
		return
	}
	if run.ResultAssetID == "" {
		if run.Phase == domain.PhaseFailed {
			a.error(w, http.StatusConflict, "run_failed", run.ErrorMessage)
			return
		}
		a.error(w, http.StatusConflict, "not_ready", "run has no result yet")
		return
	}

	asset, err := a.assets.GetByID(r.Context(), run.ResultAssetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "result asset not found")
			return
		}
		a.logger.Error().Err(err).Str("run_id", run.ID).Msg("api: load result asset")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load result")
		return
	}

	rc, err := a.store.Open(r.Context(), asset.StorageKey)
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", run.ID).Str("key", asset.StorageKey).Msg("api: open result blob")
		a.error(w, http.StatusInternalServerError, "internal", "failed to open result")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", asset.MIME)
	if asset.Bytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(asset.Bytes, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=cleaned%s", payload.Extension(asset.MIME)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// RunBundle serves every stored artifact of a run as one zip archive.
func (a *App) RunBundle(w http.ResponseWriter, r *http.Request) {
	run := a.loadRun(w, r)
	if run == nil {
		return
	}
	assets, err := a.assets.ListByRun(r.Context(), run.ID)
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", run.ID).Msg("api: list run assets")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "run has no artifacts")
		return
	}

	entries := make([]zip.Entry, 0, len(assets))
	for _, asset := range assets {
		rc, err := a.store.Open(r.Context(), asset.StorageKey)
		if err != nil {
			a.logger.Warn().Err(err).Str("key", asset.StorageKey).Msg("api: bundle blob missing")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			a.logger.Warn().Err(err).Str("key", asset.StorageKey).Msg("api: bundle blob unreadable")
			continue
		}
		name := fmt.Sprintf("%s%s", asset.Role, payload.Extension(asset.MIME))
		entries = append(entries, zip.Entry{Name: name, Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "run artifacts are gone")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", run.ID).Msg("api: build bundle")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%s.zip", run.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
