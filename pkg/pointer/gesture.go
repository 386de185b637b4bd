package pointer

import (
	"context"
	"sync"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// Gesture tracks an asynchronous gesture (press, doubleTap, move, drag, flick).
// Done is closed after the completion callback returned, or after the gesture
// aborted on an error.
type Gesture struct {
	name string
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	err       error
	timer     clock.Timer
	cancelled bool
}

func newGesture(name string) *Gesture {
	return &Gesture{name: name, done: make(chan struct{})}
}

// Name returns the gesture kind.
func (g *Gesture) Name() string { return g.name }

// Done returns a channel closed when the gesture is over.
func (g *Gesture) Done() <-chan struct{} { return g.done }

// Err returns the error that aborted the gesture, nil on success or while running.
func (g *Gesture) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Wait blocks until the gesture is over or ctx is done.
func (g *Gesture) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return core.ErrTimeout.WithDetails(map[string]interface{}{"gesture": g.name}).WithCause(ctx.Err())
	}
}

// Cancel stops a running gesture: its pending timer is removed and no further
// events are dispatched for it. The gesture finishes with err. Cancel reports
// whether the gesture was still running.
func (g *Gesture) Cancel(err error) bool {
	select {
	case <-g.done:
		return false
	default:
	}

	g.mu.Lock()
	g.cancelled = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	g.finish(err)
	return true
}

func (g *Gesture) isCancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// after schedules the gesture's next step on c. Steps scheduled after Cancel,
// or firing after it, do nothing.
func (g *Gesture) after(c clock.Clock, d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled {
		return
	}
	g.timer = c.AfterFunc(d, func() {
		if g.isCancelled() {
			return
		}
		fn()
	})
}

func (g *Gesture) finish(err error) {
	g.once.Do(func() {
		g.mu.Lock()
		g.err = err
		g.mu.Unlock()
		close(g.done)
	})
}
