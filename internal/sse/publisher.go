package sse

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"clearmark/internal/domain"
	"clearmark/internal/infra"
)

// RunLister is the slice of the run repository the publisher reads.
type RunLister interface {
	ListUnsettled(ctx context.Context, since time.Time) ([]domain.Run, error)
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Hub  *Hub
	Runs RunLister
	// Interval is the poll cadence. Defaults to one second.
	Interval time.Duration
	// Horizon keeps settled runs visible for late subscribers. Defaults to
	// one minute.
	Horizon time.Duration
	Logger  *infra.Logger
}

// Publisher polls the run store and pushes changed snapshots to the hub.
// Progress is written by the worker process, so the API side watches the
// database rather than holding an in-process feed.
type Publisher struct {
	hub      *Hub
	runs     RunLister
	interval time.Duration
	horizon  time.Duration
	logger   *infra.Logger
	seen     map[string]Event
}

func NewPublisher(opts PublisherOptions) *Publisher {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Publisher{
		hub:      opts.Hub,
		runs:     opts.Runs,
		interval: interval,
		horizon:  horizon,
		logger:   logger,
		seen:     make(map[string]Event),
	}
}

// Run polls until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Pump(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Pump(ctx)
		}
	}
}

// Pump performs one poll cycle: list unsettled runs, publish the ones whose
// snapshot changed, and forget runs that left the horizon.
func (p *Publisher) Pump(ctx context.Context) {
	runs, err := p.runs.ListUnsettled(ctx, time.Now().Add(-p.horizon))
	if err != nil {
		p.logger.Error().Err(err).Msg("sse: list unsettled runs")
		return
	}

	current := make(map[string]struct{}, len(runs))
	for _, run := range runs {
		current[run.ID] = struct{}{}
		ev := EventFromRun(run)
		if prev, ok := p.seen[run.ID]; ok && prev == ev {
			continue
		}
		p.seen[run.ID] = ev
		p.hub.Publish(ev)
	}
	for id := range p.seen {
		if _, ok := current[id]; !ok {
			delete(p.seen, id)
		}
	}
}
