package dom

import "time"

// Event names understood by the pointer.
const (
	EventTouchStart = "touchstart"
	EventTouchMove  = "touchmove"
	EventTouchEnd   = "touchend"
	EventMouseDown  = "mousedown"
	EventMouseMove  = "mousemove"
	EventMouseUp    = "mouseup"
	EventMouseLeave = "mouseleave"
	EventClick      = "click"
)

// PointerEvents lists every event name a recorder should listen for.
var PointerEvents = []string{
	EventClick, EventMouseDown, EventMouseUp, EventMouseMove, EventMouseLeave,
	EventTouchStart, EventTouchMove, EventTouchEnd,
}

// Touch is one entry of a touch list.
type Touch struct {
	PageX int `json:"pageX"`
	PageY int `json:"pageY"`
}

// Event is dispatched through a Document. Handlers receive the same value as
// it bubbles; CurrentTarget is rebound for each listener.
type Event struct {
	Name      string
	PageX     int
	PageY     int
	Touches   []Touch // Single-entry mirror of PageX/PageY for touch handlers
	Synthetic bool    // Set for events produced by the pointer simulator
	Time      time.Time

	Target        *Element // Element the event was dispatched on
	CurrentTarget *Element // Element whose listener is running

	stopped bool
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// IsPropagationStopped reports whether StopPropagation was called.
func (e *Event) IsPropagationStopped() bool { return e.stopped }
