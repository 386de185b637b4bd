// Package clock provides the tick source used by gesture timing.
//
// Real wraps the time package. Fake is driven by the test: time only moves when
// Advance or RunUntilIdle is called, and timers fire on the calling goroutine.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock schedules deferred work and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// DefaultResolution is the smallest delay a Fake applies to a timer.
const DefaultResolution = time.Millisecond

// Fake is a manually advanced Clock.
type Fake struct {
	mu         sync.Mutex
	now        time.Time
	resolution time.Duration
	seq        int
	timers     []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	when    time.Time
	seq     int
	fn      func()
	stopped bool
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, resolution: DefaultResolution}
}

// SetResolution sets the minimum effective delay. A zero-delay AfterFunc is
// scheduled resolution in the future so loops that reschedule themselves still
// see time pass.
func (f *Fake) SetResolution(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		d = DefaultResolution
	}
	f.resolution = d
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the clock reaches now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < f.resolution {
		d = f.resolution
	}
	f.seq++
	t := &fakeTimer{clock: f, when: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Stop removes the timer from the schedule.
func (t *fakeTimer) Stop() bool {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.stopped {
		return false
	}
	for i, pending := range f.timers {
		if pending == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}

// Pending returns the number of scheduled timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including ones scheduled by callbacks during the advance.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	f.mu.Lock()
	if f.now.Before(target) {
		f.now = target
	}
	f.mu.Unlock()
}

// RunUntilIdle jumps to each next timer until none are pending. It returns
// false if timers are still pending after limit of fake time has elapsed.
func (f *Fake) RunUntilIdle(limit time.Duration) bool {
	f.mu.Lock()
	deadline := f.now.Add(limit)
	f.mu.Unlock()

	for {
		t := f.popDue(deadline)
		if t == nil {
			return f.Pending() == 0
		}
		t.fn()
	}
}

// popDue removes and returns the earliest timer due at or before target,
// moving the clock to its due time.
func (f *Fake) popDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})
	t := f.timers[0]
	if t.when.After(target) {
		return nil
	}
	f.timers = f.timers[1:]
	t.stopped = true
	if t.when.After(f.now) {
		f.now = t.when
	}
	return t
}
