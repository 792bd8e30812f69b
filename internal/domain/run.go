package domain

import "time"

// MediaKind enumerates the media types accepted for cleaning.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Phase enumerates run lifecycle states.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseProcessing Phase = "processing"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Run is a single cleaning request moving through the pipeline. Percent only
// grows while a run is processing; Message carries the operator-facing
// progress text in the run's locale.
type Run struct {
	ID              string
	Kind            MediaKind
	Phase           Phase
	Message         string
	Percent         int
	ErrorMessage    string
	SourceKey       string
	SourceMIME      string
	ResultAssetID   string
	AccessRequested bool
	Locale          string
	Country         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
