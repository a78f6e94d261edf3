package campaign

import (
	"context"
	"time"

	"github.com/ignite/mailblast/internal/domain"
)

// EventType discriminates progress stream events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Summary carries the final counts on a complete event.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Event is one element of a campaign's ordered progress stream. Snapshot is
// set for progress events, Summary for complete, Err for error.
type Event struct {
	Type     EventType
	Snapshot domain.ProgressSnapshot
	Summary  *Summary
	Err      string
}

// Publisher turns a campaign's snapshot into an ordered event stream. Each
// Subscribe call is an independent observer session: the publisher polls the
// registry and emits a progress event whenever the visible snapshot value
// differs from the last one emitted, then exactly one terminal event once
// the campaign completes. Writes that leave the snapshot unchanged (the
// engine republishes its paused status on every pause poll) are coalesced.
type Publisher struct {
	registry *Registry
	interval time.Duration
}

// NewPublisher creates a publisher polling at the given interval. Intervals
// of zero or less fall back to one second.
func NewPublisher(registry *Registry, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Publisher{registry: registry, interval: interval}
}

// Subscribe returns the event stream for a campaign. The channel is closed
// after the terminal event, or when ctx ends (observer disconnect) — the
// polling goroutine never outlives either.
func (p *Publisher) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	if _, ok := p.registry.Snapshot(id); !ok {
		return nil, ErrNotFound
	}

	ch := make(chan Event, 8)
	go p.poll(ctx, id, ch)
	return ch, nil
}

func (p *Publisher) poll(ctx context.Context, id string, ch chan<- Event) {
	defer close(ch)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	emit := func(ev Event) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var lastRev uint64
	var last domain.ProgressSnapshot
	var emitted bool
	for {
		snap, ok := p.registry.Snapshot(id)
		if !ok {
			// Evicted mid-stream (retention sweep). Terminal error.
			emit(Event{Type: EventError, Err: "campaign no longer tracked"})
			return
		}

		if snap.Revision != lastRev {
			lastRev = snap.Revision
			// The revision only says something was written; emit only when
			// the observable value actually changed.
			visible := snap
			visible.Revision = 0
			if !emitted || visible != last {
				emitted = true
				last = visible
				if !emit(Event{Type: EventProgress, Snapshot: snap}) {
					return
				}
			}
		}

		if snap.Completed {
			if snap.Error != "" {
				emit(Event{Type: EventError, Err: snap.Error})
			} else {
				emit(Event{Type: EventComplete, Summary: &Summary{
					Succeeded: snap.Succeeded,
					Failed:    snap.Failed,
					Total:     snap.Total,
				}})
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
