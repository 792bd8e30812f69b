package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Pipeline failures. Remote transport errors carry no sentinel; they are
	// wrapped and their message propagated verbatim.
	ErrReadSource      = errors.New("source media unreadable")
	ErrNoImageData     = errors.New("no image data in model response")
	ErrMissingVideoURI = errors.New("video result location missing")
	ErrFrameExtraction = errors.New("frame extraction failed")
	ErrPollTimeout     = errors.New("video job polling timed out")

	// Control-flow conditions that do not fail a run.
	ErrVideoAccessRequired = errors.New("video access not authorized")
	ErrRunActive           = errors.New("a run is already in flight")
)
