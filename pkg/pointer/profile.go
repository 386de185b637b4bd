package pointer

import "github.com/devicelab-dev/virtual-pointer/pkg/dom"

// Profile names the events a gesture emits for the host's input modality.
type Profile struct {
	Start string `json:"start"`
	Move  string `json:"move"`
	Stop  string `json:"stop"`
}

// Predefined profiles.
var (
	TouchProfile = Profile{Start: dom.EventTouchStart, Move: dom.EventTouchMove, Stop: dom.EventTouchEnd}
	MouseProfile = Profile{Start: dom.EventMouseDown, Move: dom.EventMouseMove, Stop: dom.EventMouseUp}
)

// CapabilityProbe is implemented by hosts that can report touch support.
type CapabilityProbe interface {
	SupportsTouch() bool
}

// ProfileFor returns the touch or mouse profile.
func ProfileFor(touch bool) Profile {
	if touch {
		return TouchProfile
	}
	return MouseProfile
}

// DetectProfile probes host for touch support. Hosts that cannot be probed get
// the mouse profile.
func DetectProfile(host interface{}) Profile {
	if p, ok := host.(CapabilityProbe); ok {
		return ProfileFor(p.SupportsTouch())
	}
	return MouseProfile
}

// EventAliases are the profile-independent names Resolve understands.
var EventAliases = []string{"start", "move", "stop"}

// Resolve maps the aliases start, move and stop to the profile's event
// names. Other names are returned unchanged.
func (p Profile) Resolve(name string) string {
	switch name {
	case "start":
		return p.Start
	case "move":
		return p.Move
	case "stop":
		return p.Stop
	default:
		return name
	}
}
