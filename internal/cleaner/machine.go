// Package cleaner drives watermark-removal runs through their lifecycle and
// talks to the remote edit and render services.
package cleaner

import (
	"fmt"
	"sync"

	"clearmark/internal/domain"
)

// Snapshot is one observed state of the machine. Starting a new run resets
// ResultAssetID and Error, so a failed run can never expose the previous
// run's artifact.
type Snapshot struct {
	RunID          string
	Kind           domain.MediaKind
	Phase          domain.Phase
	Message        string
	Percent        int
	Error          string
	ResultAssetID  string
	AwaitingAccess bool
}

type transition int

const (
	transitionBegin transition = iota
	transitionProgress
	transitionSucceed
	transitionFail
	transitionPark
)

// legalMoves is the phase graph. Processing may loop on itself for progress
// updates and may fall back to idle when video authorization is missing.
var legalMoves = map[domain.Phase]map[domain.Phase]bool{
	domain.PhaseIdle: {
		domain.PhaseProcessing: true,
	},
	domain.PhaseProcessing: {
		domain.PhaseProcessing: true,
		domain.PhaseSucceeded:  true,
		domain.PhaseFailed:     true,
		domain.PhaseIdle:       true,
	},
	domain.PhaseSucceeded: {
		domain.PhaseProcessing: true,
	},
	domain.PhaseFailed: {
		domain.PhaseProcessing: true,
	},
}

// Machine serializes run lifecycle changes. All writes go through apply; the
// notify hook observes every applied snapshot and runs outside the lock.
type Machine struct {
	mu     sync.Mutex
	state  Snapshot
	notify func(Snapshot)
}

func NewMachine(notify func(Snapshot)) *Machine {
	return &Machine{
		state:  Snapshot{Phase: domain.PhaseIdle},
		notify: notify,
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Begin starts a new run. A machine already processing rejects the start with
// domain.ErrRunActive. The fresh snapshot carries no result, error, or
// pending-access marker from earlier runs.
func (m *Machine) Begin(runID string, kind domain.MediaKind, message string) error {
	return m.apply(transitionBegin, Snapshot{
		RunID:   runID,
		Kind:    kind,
		Phase:   domain.PhaseProcessing,
		Message: message,
	})
}

// Progress records a message and percent for the active run. Percent never
// decreases within a run; lower values are clamped to the current one.
func (m *Machine) Progress(runID, message string, percent int) error {
	return m.apply(transitionProgress, Snapshot{
		RunID:   runID,
		Message: message,
		Percent: percent,
	})
}

// Succeed finishes the active run with its result asset.
func (m *Machine) Succeed(runID, message, resultAssetID string) error {
	return m.apply(transitionSucceed, Snapshot{
		RunID:         runID,
		Message:       message,
		ResultAssetID: resultAssetID,
	})
}

// Fail finishes the active run with an error detail. The result cleared at
// Begin stays cleared.
func (m *Machine) Fail(runID, message, detail string) error {
	return m.apply(transitionFail, Snapshot{
		RunID:   runID,
		Message: message,
		Error:   detail,
	})
}

// Park returns the active run to idle without recording an error, marking it
// as waiting on a video access grant.
func (m *Machine) Park(runID, message string) error {
	return m.apply(transitionPark, Snapshot{
		RunID:   runID,
		Message: message,
	})
}

// apply is the only writer of machine state.
func (m *Machine) apply(t transition, patch Snapshot) error {
	m.mu.Lock()
	cur := m.state

	if t == transitionBegin {
		if cur.Phase == domain.PhaseProcessing {
			m.mu.Unlock()
			return domain.ErrRunActive
		}
	} else if cur.Phase != domain.PhaseProcessing || cur.RunID != patch.RunID {
		m.mu.Unlock()
		return fmt.Errorf("cleaner: run %s is not processing", patch.RunID)
	}

	var next Snapshot
	switch t {
	case transitionBegin:
		next = patch
	case transitionProgress:
		next = cur
		next.Message = patch.Message
		next.Percent = patch.Percent
		if next.Percent < cur.Percent {
			next.Percent = cur.Percent
		}
		if next.Percent > 100 {
			next.Percent = 100
		}
	case transitionSucceed:
		next = cur
		next.Phase = domain.PhaseSucceeded
		next.Message = patch.Message
		next.Percent = 100
		next.ResultAssetID = patch.ResultAssetID
	case transitionFail:
		next = cur
		next.Phase = domain.PhaseFailed
		next.Message = patch.Message
		next.Error = patch.Error
	case transitionPark:
		next = cur
		next.Phase = domain.PhaseIdle
		next.Message = patch.Message
		next.Percent = 0
		next.Error = ""
		next.AwaitingAccess = true
	}

	if !legalMoves[cur.Phase][next.Phase] {
		m.mu.Unlock()
		return fmt.Errorf("cleaner: illegal transition %s to %s", cur.Phase, next.Phase)
	}

	m.state = next
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	return nil
}
