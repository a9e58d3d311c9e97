package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events for the same path. Each path gets its own
// timer; every new event resets that path's timer, and when a path stays
// quiet for the window its latest event type is emitted. Independent paths
// never delay each other.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan FileEvent
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given window and output buffer.
func NewDebouncer(window time.Duration, bufferSize int) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan FileEvent, bufferSize),
	}
}

// Add registers an event. If the path already has a pending event its timer
// restarts and the final event type observed wins.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		existing.event.Type = event.Type
		existing.event.Timestamp = event.Timestamp
		existing.timer.Reset(d.window)
		return
	}

	pe := &pendingEvent{event: event}
	pe.timer = time.AfterFunc(d.window, func() {
		d.fire(path)
	})
	d.pending[path] = pe
}

// fire emits the pending event for path. The send happens under the mutex so
// Stop can guarantee no emission after the output channel is closed; the send
// is non-blocking so the mutex is never held for long.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pe, ok := d.pending[path]
	if !ok || d.stopped {
		return
	}
	delete(d.pending, path)

	select {
	case d.output <- pe.event:
	default:
		slog.Warn("debouncer output full, dropping event",
			slog.String("path", pe.event.Path),
			slog.String("type", pe.event.Type.String()),
		)
	}
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Pending returns the number of paths with an unfired timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop flushes pending events and closes the output channel. Timers whose
// window has not elapsed are cancelled and their events emitted immediately
// so nothing observed before the stop is lost. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for path, pe := range d.pending {
		pe.timer.Stop()
		delete(d.pending, path)
		select {
		case d.output <- pe.event:
		default:
			slog.Warn("debouncer output full, dropping event",
				slog.String("path", pe.event.Path),
				slog.String("type", pe.event.Type.String()),
			)
		}
	}
	close(d.output)
}
