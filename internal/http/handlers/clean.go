package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"clearmark/internal/domain"
	"clearmark/internal/i18n"
	"clearmark/internal/middleware"
	"clearmark/internal/payload"
)

type cleanResponse struct {
	RunID   string `json:"run_id"`
	Kind    string `json:"kind"`
	Phase   string `json:"phase"`
	Message string `json:"message"`
	Locale  string `json:"locale"`
}

// CleanCreate accepts a media upload and queues a cleaning run. The media
// kind is sniffed from the file content; the run's locale comes from the
// request unless the form overrides it.
func (a *App) CleanCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable upload")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "empty upload")
		return
	}

	mime := payload.SniffMIME(data)
	kind, ok := payload.KindForMIME(mime)
	if !ok {
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", fmt.Sprintf("cannot clean %s media", mime))
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	if v := strings.TrimSpace(r.FormValue("locale")); v != "" {
		locale = i18n.Normalize(v)
	}

	runID := uuid.NewString()
	sourceKey := fmt.Sprintf("runs/%s/source%s", runID, payload.Extension(mime))
	storedKey, err := a.store.Write(r.Context(), sourceKey, data)
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", runID).Msg("api: store source")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	run := &domain.Run{
		ID:         runID,
		Kind:       kind,
		Message:    i18n.T(locale, "run.queued"),
		SourceKey:  storedKey,
		SourceMIME: mime,
		Locale:     locale,
		Country:    middleware.CountryFromContext(r.Context()),
	}
	if err := a.runs.Create(r.Context(), run); err != nil {
		a.logger.Error().Err(err).Str("run_id", runID).Msg("api: create run")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue run")
		return
	}

	source := &domain.Asset{
		ID:         uuid.NewString(),
		RunID:      runID,
		Kind:       kind,
		Role:       domain.AssetRoleSource,
		StorageKey: storedKey,
		MIME:       mime,
		Bytes:      int64(len(data)),
	}
	if err := a.assets.Create(r.Context(), source); err != nil {
		a.logger.Error().Err(err).Str("run_id", runID).Msg("api: record source asset")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record upload")
		return
	}

	a.logger.Info().
		Str("run_id", runID).
		Str("kind", string(kind)).
		Str("mime", mime).
		Int("bytes", len(data)).
		Msg("api: run queued")

	a.json(w, http.StatusAccepted, cleanResponse{
		RunID:   runID,
		Kind:    string(kind),
		Phase:   string(domain.PhaseIdle),
		Message: run.Message,
		Locale:  locale,
	})
}
