package editor

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long edits must pause before a flush.
const DefaultQuietPeriod = 3000 * time.Millisecond

// FlushFunc receives the latest values recorded by Notify.
type FlushFunc func(title, content string)

// Debouncer coalesces Notify calls into at most one flush per quiet period.
// Only one timer is armed at a time; a timer that fired concurrently with a
// later Notify is recognised by its generation and ignored.
type Debouncer struct {
	mu      sync.Mutex
	clock   Clock
	quiet   time.Duration
	flush   FlushFunc
	timer   Timer
	gen     uint64
	pending bool
	title   string
	content string
}

func NewDebouncer(clock Clock, quiet time.Duration, flush FlushFunc) *Debouncer {
	if clock == nil {
		clock = RealClock{}
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{clock: clock, quiet: quiet, flush: flush}
}

// Notify records the candidate values and restarts the quiet period.
func (d *Debouncer) Notify(title, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.title = title
	d.content = content
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Cancel drops the pending flush, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = false
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) QuietPeriod() time.Duration {
	return d.quiet
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	title, content := d.title, d.content
	d.mu.Unlock()

	d.flush(title, content)
}
