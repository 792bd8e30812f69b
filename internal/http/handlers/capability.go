package handlers

import "net/http"

// CapabilityStatus reports whether remote video rendering is authorized and
// whether access has been requested.
func (a *App) CapabilityStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.capability.VideoStatus(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("api: video capability status")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read capability")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"video": status})
}

// CapabilityRequest records the wish for video access. Granting happens out
// of band through the operator CLI.
func (a *App) CapabilityRequest(w http.ResponseWriter, r *http.Request) {
	if err := a.capability.RequestVideoAccess(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("api: request video access")
		a.error(w, http.StatusInternalServerError, "internal", "failed to request access")
		return
	}
	a.json(w, http.StatusAccepted, map[string]bool{"requested": true})
}
