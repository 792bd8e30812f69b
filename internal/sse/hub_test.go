package sse

import (
	"context"
	"errors"
	"testing"
	"time"

	"clearmark/internal/domain"
)

func TestHubDeliversToRunSubscribers(t *testing.T) {
	hub := NewHub()
	chA, cancelA := hub.Subscribe("run-1")
	defer cancelA()
	chB, cancelB := hub.Subscribe("run-1")
	defer cancelB()
	chOther, cancelOther := hub.Subscribe("run-2")
	defer cancelOther()

	hub.Publish(Event{RunID: "run-1", Phase: "processing", Percent: 30})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			if ev.Percent != 30 {
				t.Fatalf("percent = %d, want 30", ev.Percent)
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}
	select {
	case ev := <-chOther:
		t.Fatalf("run-2 subscriber received %+v", ev)
	default:
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("run-1")
	cancel()

	// Closed channel yields the zero event immediately.
	if ev, ok := <-ch; ok {
		t.Fatalf("expected closed channel, got %+v", ev)
	}
	if n := hub.Subscribers("run-1"); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}

	// Publishing after cancel must not panic.
	hub.Publish(Event{RunID: "run-1"})
	cancel()
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("run-1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(Event{RunID: "run-1", Percent: i})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Fatalf("received = %d, want %d", received, subscriberBuffer)
	}
}

func TestEventFromRun(t *testing.T) {
	run := domain.Run{
		ID:              "run-1",
		Phase:           domain.PhaseFailed,
		Message:         "Cleaning failed",
		Percent:         40,
		ErrorMessage:    "genai: status 500",
		AccessRequested: true,
	}
	ev := EventFromRun(run)
	if ev.RunID != "run-1" || ev.Phase != "failed" || ev.Error != "genai: status 500" {
		t.Fatalf("event = %+v", ev)
	}
	if !ev.Terminal() {
		t.Fatal("failed event should be terminal")
	}
	if !ev.AwaitingAccess {
		t.Fatal("awaiting access flag lost")
	}

	if EventFromRun(domain.Run{Phase: domain.PhaseProcessing}).Terminal() {
		t.Fatal("processing event must not be terminal")
	}
}

func TestPublisherPublishesOnlyChanges(t *testing.T) {
	hub := NewHub()
	runs := &stubLister{}
	pub := NewPublisher(PublisherOptions{Hub: hub, Runs: runs})
	ch, cancel := hub.Subscribe("run-1")
	defer cancel()
	ctx := context.Background()

	runs.list = []domain.Run{{ID: "run-1", Phase: domain.PhaseProcessing, Percent: 10, UpdatedAt: time.Now()}}
	pub.Pump(ctx)
	pub.Pump(ctx)

	runs.list[0].Percent = 30
	pub.Pump(ctx)

	var got []int
	for {
		select {
		case ev := <-ch:
			got = append(got, ev.Percent)
			continue
		default:
		}
		break
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Fatalf("published percents = %v, want [10 30]", got)
	}
}

func TestPublisherForgetsSettledRuns(t *testing.T) {
	hub := NewHub()
	runs := &stubLister{}
	pub := NewPublisher(PublisherOptions{Hub: hub, Runs: runs})
	ch, cancel := hub.Subscribe("run-1")
	defer cancel()
	ctx := context.Background()

	runs.list = []domain.Run{{ID: "run-1", Phase: domain.PhaseSucceeded, Percent: 100}}
	pub.Pump(ctx)

	// The run leaves the listing, then reappears (a fresh horizon window
	// after a restart). It must be republished.
	runs.list = nil
	pub.Pump(ctx)
	runs.list = []domain.Run{{ID: "run-1", Phase: domain.PhaseSucceeded, Percent: 100}}
	pub.Pump(ctx)

	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	if count != 2 {
		t.Fatalf("published %d events, want 2", count)
	}
}

func TestPublisherSurvivesListErrors(t *testing.T) {
	hub := NewHub()
	runs := &stubLister{err: errors.New("connection refused")}
	pub := NewPublisher(PublisherOptions{Hub: hub, Runs: runs})

	pub.Pump(context.Background())

	runs.err = nil
	runs.list = []domain.Run{{ID: "run-1", Phase: domain.PhaseProcessing, Percent: 5}}
	ch, cancel := hub.Subscribe("run-1")
	defer cancel()
	pub.Pump(context.Background())

	select {
	case ev := <-ch:
		if ev.Percent != 5 {
			t.Fatalf("percent = %d, want 5", ev.Percent)
		}
	default:
		t.Fatal("expected event after recovery")
	}
}

type stubLister struct {
	list []domain.Run
	err  error
}

func (s *stubLister) ListUnsettled(ctx context.Context, since time.Time) ([]domain.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Run(nil), s.list...), nil
}
