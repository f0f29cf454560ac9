package data

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a search query settles.
const DefaultDebounce = 400 * time.Millisecond

// Debouncer turns per-keystroke input into a settled query. Each Input
// restarts the quiet-period timer; the settle callback fires once with the
// latest value when the timer expires without newer input.
type Debouncer struct {
	mu       sync.Mutex
	deliver  sync.Mutex // held while the callback runs
	delay    time.Duration
	onSettle func(query string)
	timer    *time.Timer
	seq      uint64
	raw      string
	settled  string
	stopped  bool
}

// NewDebouncer creates a debouncer. A non-positive delay uses DefaultDebounce.
// onSettle runs on the timer goroutine and must not call Stop.
func NewDebouncer(delay time.Duration, onSettle func(query string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, onSettle: onSettle}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Input records raw and restarts the quiet period, cancelling any pending
// settle. Input after Stop is recorded but never settles.
func (d *Debouncer) Input(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = raw
	d.seq++
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.settled = d.raw
	d.timer = nil
	value := d.settled
	cb := d.onSettle
	d.mu.Unlock()

	if cb != nil {
		cb(value)
	}
}

// Stop cancels any pending settle. Once Stop returns no callback will run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	// Wait out a callback that passed its checks before stopped was set.
	d.deliver.Lock()
	d.deliver.Unlock() //nolint:staticcheck // empty critical section is the barrier
}

// Cancel drops any pending settle and forgets the raw and settled values,
// leaving the debouncer usable for new input. Once Cancel returns no
// callback for earlier input will run.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.seq++
	d.raw, d.settled = "", ""
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.deliver.Lock()
	d.deliver.Unlock() //nolint:staticcheck // empty critical section is the barrier
}

// Clear stops the debouncer. It satisfies Member for realm teardown.
func (d *Debouncer) Clear() { d.Stop() }

// Pending reports whether a settle is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Raw returns the latest input.
func (d *Debouncer) Raw() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw
}

// Settled returns the last value propagated downstream.
func (d *Debouncer) Settled() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}
