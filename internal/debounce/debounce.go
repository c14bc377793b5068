// Package debounce collapses bursts of calls into one deferred call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled function once no new call has
// arrived for the configured delay. Every Trigger bumps a generation; a timer
// whose generation is no longer current does nothing when it fires.
type Debouncer struct {
	delay      time.Duration
	timer      *time.Timer
	generation uint64
	stopped    bool
	mutex      sync.Mutex
}

// New creates a debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn, superseding any call scheduled earlier.
func (d *Debouncer) Trigger(fn func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}

	d.generation++
	scheduled := d.generation

	// Reset timer
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mutex.Lock()
		current := d.generation == scheduled && !d.stopped
		d.mutex.Unlock()

		if current {
			fn()
		}
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.generation++
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Stop cancels the pending call and ignores every later Trigger.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
	}
}
