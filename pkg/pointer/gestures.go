package pointer

import (
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
)

// TapStart puts the pointer down. With AutoReset the position returns to the
// origin first; a non-nil target then moves it to the target's top-left corner.
// The top-left corner, not the center, is hit-tested.
func (s *Simulator) TapStart(target *dom.Element) error {
	p, err := s.resolve(target)
	if err != nil {
		return err
	}
	return s.tapStart(p)
}

// TapEnd lifts the pointer, at target's top-left corner when target is non-nil.
func (s *Simulator) TapEnd(target *dom.Element) error {
	p, err := s.resolve(target)
	if err != nil {
		return err
	}
	return s.tapEnd(p)
}

// Click dispatches a literal "click" event, whatever the profile.
func (s *Simulator) Click(target *dom.Element) error {
	p, err := s.resolve(target)
	if err != nil {
		return err
	}
	s.moveTo(p)
	return s.Trigger(dom.EventClick)
}

// Tap is TapStart followed immediately by TapEnd on the same target.
func (s *Simulator) Tap(target *dom.Element) error {
	p, err := s.resolve(target)
	if err != nil {
		return err
	}
	return s.tap(p)
}

// Press puts the pointer down on target, holds it for duration and lifts it,
// then calls cb. A zero duration holds for PressDuration×1.5, long enough to
// be recognized as a long press.
func (s *Simulator) Press(cb Callback, duration time.Duration, target *dom.Element) *Gesture {
	g := newGesture("press")
	if duration <= 0 {
		duration = s.PressDuration * 3 / 2
	}

	p, err := s.resolve(target)
	if err != nil {
		s.abort(g, err)
		return g
	}
	if err := s.tapStart(p); err != nil {
		s.abort(g, err)
		return g
	}

	g.after(s.clock, duration, func() {
		if err := s.tapEnd(p); err != nil {
			s.abort(g, err)
			return
		}
		s.complete(g, cb)
	})
	return g
}

// DoubleTap taps target, waits duration, taps again, then calls cb. A zero
// duration waits DoubleTapDuration×0.5, short enough not to be seen as two
// separate taps. The target is resolved once for both taps.
func (s *Simulator) DoubleTap(cb Callback, duration time.Duration, target *dom.Element) *Gesture {
	g := newGesture("doubleTap")
	if duration <= 0 {
		duration = s.DoubleTapDuration / 2
	}

	p, err := s.resolve(target)
	if err != nil {
		s.abort(g, err)
		return g
	}
	if err := s.tap(p); err != nil {
		s.abort(g, err)
		return g
	}

	g.after(s.clock, duration, func() {
		if err := s.tap(p); err != nil {
			s.abort(g, err)
			return
		}
		s.complete(g, cb)
	})
	return g
}

func (s *Simulator) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoReset {
		s.x, s.y = 0, 0
	}
}

// moveTo sets the position to p when p is non-nil.
func (s *Simulator) moveTo(p *core.Point) {
	if p != nil {
		s.SetPosition(p.X, p.Y)
	}
}

// tapStart applies the reset policy, then moves to p (if any) and dispatches start.
func (s *Simulator) tapStart(p *core.Point) error {
	s.reset()
	s.moveTo(p)
	return s.Trigger(s.profile.Start)
}

func (s *Simulator) tapEnd(p *core.Point) error {
	s.moveTo(p)
	return s.Trigger(s.profile.Stop)
}

func (s *Simulator) tap(p *core.Point) error {
	if err := s.tapStart(p); err != nil {
		return err
	}
	return s.tapEnd(p)
}
