package pointer

import (
	"math"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
)

type destinationKind int

const (
	destNone destinationKind = iota
	destDelta
	destElement
)

// Destination is where a move goes: either a delta from the start position
// or an element. The zero value is invalid.
type Destination struct {
	kind    destinationKind
	dx, dy  int
	element *dom.Element
}

// By returns a destination dx, dy away from the start position.
func By(dx, dy int) Destination {
	return Destination{kind: destDelta, dx: dx, dy: dy}
}

// ToElement returns a destination given by an element's top-left offset.
// The offset is used as the delta, so with AutoReset (start at the origin)
// the move ends exactly on the element's corner.
func ToElement(el *dom.Element) Destination {
	return Destination{kind: destElement, element: el}
}

// String describes the destination for logs.
func (d Destination) String() string {
	switch d.kind {
	case destDelta:
		return "by " + core.Point{X: d.dx, Y: d.dy}.String()
	case destElement:
		if d.element == nil {
			return "to <nil>"
		}
		return "to " + d.element.Label()
	default:
		return "<invalid>"
	}
}

// delta resolves the destination to a movement vector.
func (s *Simulator) delta(d Destination) (core.Point, error) {
	switch d.kind {
	case destDelta:
		return core.Point{X: d.dx, Y: d.dy}, nil
	case destElement:
		if d.element == nil {
			return core.Point{}, core.ErrInvalidGestureArguments.WithMessage("move target is nil")
		}
		p, err := s.host.Offset(d.element)
		if err != nil {
			return core.Point{}, core.ErrInvalidGestureArguments.WithCause(err)
		}
		return p, nil
	default:
		return core.Point{}, core.ErrInvalidGestureArguments
	}
}

// Move puts the pointer down where TapStart leaves it, moves it to dst over
// duration dispatching a move event on every tick, then lifts it and calls cb.
//
// On each tick the elapsed wall time t is accumulated. While t <= duration
// the position is start + ceil(t/duration × delta). Once t exceeds duration
// the position is forced to start + delta. Ticks are scheduled with the
// shortest delay the clock allows. A non-positive duration jumps straight to
// the end.
func (s *Simulator) Move(dst Destination, duration time.Duration, cb Callback) *Gesture {
	return s.move("move", dst, duration, cb)
}

func (s *Simulator) move(name string, dst Destination, duration time.Duration, cb Callback) *Gesture {
	g := newGesture(name)
	d, err := s.delta(dst)
	if err != nil {
		s.abort(g, err)
		return g
	}
	s.run(g, d, duration, cb)
	return g
}

// MoveBy moves dx, dy from the start position.
func (s *Simulator) MoveBy(dx, dy int, duration time.Duration, cb Callback) *Gesture {
	return s.Move(By(dx, dy), duration, cb)
}

// MoveToElement moves to target's top-left offset.
func (s *Simulator) MoveToElement(target *dom.Element, duration time.Duration, cb Callback) *Gesture {
	return s.Move(ToElement(target), duration, cb)
}

// Drag is a Move lasting FlickDuration×1.5 unless duration is positive.
func (s *Simulator) Drag(dst Destination, cb Callback, duration time.Duration) *Gesture {
	if duration <= 0 {
		duration = s.FlickDuration * 3 / 2
	}
	return s.move("drag", dst, duration, cb)
}

// DragBy drags dx, dy from the start position.
func (s *Simulator) DragBy(dx, dy int, cb Callback, duration time.Duration) *Gesture {
	return s.Drag(By(dx, dy), cb, duration)
}

// DragToElement drags to target's top-left offset.
func (s *Simulator) DragToElement(target *dom.Element, cb Callback, duration time.Duration) *Gesture {
	return s.Drag(ToElement(target), cb, duration)
}

// Flick is a Move lasting FlickDuration×0.5 unless duration is positive.
func (s *Simulator) Flick(dst Destination, cb Callback, duration time.Duration) *Gesture {
	if duration <= 0 {
		duration = s.FlickDuration / 2
	}
	return s.move("flick", dst, duration, cb)
}

// FlickBy flicks dx, dy from the start position.
func (s *Simulator) FlickBy(dx, dy int, cb Callback, duration time.Duration) *Gesture {
	return s.Flick(By(dx, dy), cb, duration)
}

// FlickToElement flicks to target's top-left offset.
func (s *Simulator) FlickToElement(target *dom.Element, cb Callback, duration time.Duration) *Gesture {
	return s.Flick(ToElement(target), cb, duration)
}

func (s *Simulator) run(g *Gesture, d core.Point, duration time.Duration, cb Callback) {
	if err := s.tapStart(nil); err != nil {
		s.abort(g, err)
		return
	}
	start := s.Position()
	last := s.clock.Now()
	var elapsed time.Duration

	var tick func()
	tick = func() {
		now := s.clock.Now()
		elapsed += now.Sub(last)

		if duration <= 0 || elapsed > duration {
			// Compares the delta, not the destination, with the current
			// position; from the origin the two are the same.
			if cur := s.Position(); d.X != cur.X || d.Y != cur.Y {
				s.SetPosition(start.X+d.X, start.Y+d.Y)
				if err := s.Trigger(s.profile.Move); err != nil {
					s.abort(g, err)
					return
				}
			}
			if err := s.tapEnd(nil); err != nil {
				s.abort(g, err)
				return
			}
			s.complete(g, cb)
			return
		}
		last = now

		f := float64(elapsed) / float64(duration)
		s.SetPosition(
			start.X+int(math.Ceil(f*float64(d.X))),
			start.Y+int(math.Ceil(f*float64(d.Y))),
		)
		if err := s.Trigger(s.profile.Move); err != nil {
			s.abort(g, err)
			return
		}
		g.after(s.clock, 0, tick)
	}
	tick()
}
