// Package pointer simulates a single pointer (mouse or finger) over a render
// tree: it keeps the current position, hit-tests it, and dispatches synthetic
// start, move and stop events for taps, presses, double taps and moves.
//
// A Simulator runs one gesture at a time. Starting a gesture before the
// previous one completed interleaves their position updates; callers serialize
// through the completion callback or Gesture.Wait.
package pointer

import (
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
)

// DefaultDuration is the initial value of every timing tunable. It is short so
// tests run fast; real platforms recognize long presses and flicks at larger values.
const DefaultDuration = 25 * time.Millisecond

// Host is the render tree a Simulator dispatches into. *dom.Document implements it.
type Host interface {
	ElementFromPoint(x, y int) *dom.Element
	Offset(el *dom.Element) (core.Point, error)
	Dispatch(target *dom.Element, ev *dom.Event)
}

// Callback is invoked when an asynchronous gesture completes. It receives the
// scope the Simulator was created with.
type Callback func(scope any)

// State is a snapshot of the pointer position.
type State struct {
	X         int  `json:"x"`
	Y         int  `json:"y"`
	AutoReset bool `json:"autoReset"`
}

// Simulator drives one virtual pointer.
type Simulator struct {
	// Timing tunables. Defaults derived from them: press holds for
	// PressDuration×1.5, double tap waits DoubleTapDuration×0.5 between taps,
	// drag lasts FlickDuration×1.5 and flick FlickDuration×0.5.
	PressDuration     time.Duration
	DoubleTapDuration time.Duration
	FlickDuration     time.Duration

	host    Host
	scope   any
	clock   clock.Clock
	profile Profile

	mu        sync.Mutex
	x, y      int
	autoReset bool
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the tick source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Simulator) {
		s.clock = c
	}
}

// WithProfile overrides the probed event profile.
func WithProfile(p Profile) Option {
	return func(s *Simulator) {
		s.profile = p
	}
}

// WithDurations sets the timing tunables. Zero values keep the default.
func WithDurations(press, doubleTap, flick time.Duration) Option {
	return func(s *Simulator) {
		if press > 0 {
			s.PressDuration = press
		}
		if doubleTap > 0 {
			s.DoubleTapDuration = doubleTap
		}
		if flick > 0 {
			s.FlickDuration = flick
		}
	}
}

// WithAutoReset sets whether tapStart moves back to the origin first.
func WithAutoReset(autoReset bool) Option {
	return func(s *Simulator) {
		s.autoReset = autoReset
	}
}

// New creates a Simulator dispatching into host. The profile is probed once,
// here. scope is handed to every completion callback.
func New(host Host, scope any, opts ...Option) *Simulator {
	s := &Simulator{
		PressDuration:     DefaultDuration,
		DoubleTapDuration: DefaultDuration,
		FlickDuration:     DefaultDuration,
		host:              host,
		scope:             scope,
		clock:             clock.Real(),
		profile:           DetectProfile(host),
		autoReset:         true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile returns the resolved event names.
func (s *Simulator) Profile() Profile { return s.profile }

// StartEvent returns the event name dispatched when the pointer goes down.
func (s *Simulator) StartEvent() string { return s.profile.Start }

// MoveEvent returns the event name dispatched while the pointer moves.
func (s *Simulator) MoveEvent() string { return s.profile.Move }

// StopEvent returns the event name dispatched when the pointer goes up.
func (s *Simulator) StopEvent() string { return s.profile.Stop }

// Scope returns the value passed to completion callbacks.
func (s *Simulator) Scope() any { return s.scope }

// Position returns the current coordinates.
func (s *Simulator) Position() core.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Point{X: s.x, Y: s.y}
}

// SetPosition moves the pointer without dispatching anything.
func (s *Simulator) SetPosition(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
}

// AutoReset reports whether tapStart returns to the origin first.
func (s *Simulator) AutoReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoReset
}

// SetAutoReset changes the reset policy.
func (s *Simulator) SetAutoReset(autoReset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoReset = autoReset
}

// State returns a snapshot of the position state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{X: s.x, Y: s.y, AutoReset: s.autoReset}
}

// Trigger hit-tests the current position and dispatches a synthetic event
// named name on the topmost element there. The event carries the current
// coordinates and a one-entry touch list with the same values.
func (s *Simulator) Trigger(name string) error {
	p := s.Position()

	el := s.host.ElementFromPoint(p.X, p.Y)
	if el == nil {
		return core.ErrNoTargetAtCoordinate.WithDetails(map[string]interface{}{
			"event": name,
			"x":     p.X,
			"y":     p.Y,
		})
	}

	ev := &dom.Event{
		Name:      name,
		PageX:     p.X,
		PageY:     p.Y,
		Touches:   []dom.Touch{{PageX: p.X, PageY: p.Y}},
		Synthetic: true,
		Time:      s.clock.Now(),
	}
	logger.Debug("pointer: %s at %s on %s", name, p, el.Label())
	s.host.Dispatch(el, ev)
	return nil
}

// resolve returns the anchor point of target: its top-left offset. A nil
// target resolves to nil, meaning "stay where you are".
func (s *Simulator) resolve(target *dom.Element) (*core.Point, error) {
	if target == nil {
		return nil, nil
	}
	p, err := s.host.Offset(target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %s: %w", target.Label(), err)
	}
	return &p, nil
}

// complete runs the callback and then marks the gesture done.
func (s *Simulator) complete(g *Gesture, cb Callback) {
	if cb != nil {
		cb(s.scope)
	}
	logger.Debug("pointer: %s complete at %s", g.Name(), s.Position())
	g.finish(nil)
}

func (s *Simulator) abort(g *Gesture, err error) {
	logger.Warn("pointer: %s aborted: %v", g.Name(), err)
	g.finish(err)
}
