// Package keystroke records key timing for the password field and derives the
// hold/flight feature vector scored by the backend.
package keystroke

import (
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/shadowshield/internal/model"
)

// Capture accumulates key events for one capture session.
// A session lasts from password focus until the next submission or reset.
type Capture struct {
	mu  sync.Mutex
	now func() time.Time

	keys    []string
	downs   []time.Time
	ups     []time.Time
	pending bool
}

// New returns a Capture using the wall clock.
func New() *Capture {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Capture that timestamps events with now.
func NewWithClock(now func() time.Time) *Capture {
	return &Capture{now: now}
}

// IsPrintable reports whether key names a single printable character.
// Named keys such as "Shift", "Tab" or "ArrowLeft" are never printable.
func IsPrintable(key string) bool {
	if utf8.RuneCountInString(key) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return false
	}
	return unicode.IsPrint(r)
}

// Reset clears all recorded events.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.downs = nil
	c.ups = nil
	c.pending = false
}

// KeyDown records a press of key. Non-printable keys are ignored and repeated
// presses of the same key are appended separately.
func (c *Capture) KeyDown(key string) {
	if !IsPrintable(key) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.downs = append(c.downs, c.now())
	c.pending = true
}

// KeyUp records the release of key when it is the most recently pressed key
// still awaiting release. Any other release is dropped.
func (c *Capture) KeyUp(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending || len(c.keys) == 0 {
		return
	}
	if c.keys[len(c.keys)-1] != key {
		return
	}
	c.ups = append(c.ups, c.now())
	c.pending = false
}

// Pending returns the key awaiting release, if any.
func (c *Capture) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending || len(c.keys) == 0 {
		return "", false
	}
	return c.keys[len(c.keys)-1], true
}

// Events returns a copy of the recorded events in press order.
func (c *Capture) Events() []model.KeyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]model.KeyEvent, len(c.keys))
	for i, key := range c.keys {
		events[i] = model.KeyEvent{Key: key, DownTime: c.downs[i]}
		if i < len(c.ups) {
			events[i].UpTime = c.ups[i]
		}
	}
	return events
}

// Vector builds the timing vector from the current session.
func (c *Capture) Vector() model.TimingVector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildVector(c.keys, c.downs, c.ups)
}

// BuildVector derives hold and flight durations in seconds. Only exactly
// model.VectorLen complete pairs produce a vector; anything else yields empty
// sequences, which the backend treats as a keystroke anomaly.
func BuildVector(keys []string, downs, ups []time.Time) model.TimingVector {
	n := min(len(keys), len(downs), len(ups))
	if n != model.VectorLen {
		return model.TimingVector{Hold: []float64{}, Flight: []float64{}}
	}
	hold := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		hold = append(hold, ups[i].Sub(downs[i]).Seconds())
	}
	flight := make([]float64, 0, n)
	flight = append(flight, 0)
	for i := 1; i < n; i++ {
		flight = append(flight, downs[i].Sub(downs[i-1]).Seconds())
	}
	return model.TimingVector{Hold: hold, Flight: flight}
}
