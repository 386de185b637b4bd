package pointer

import (
	"strings"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recorded is one observed event.
type recorded struct {
	name   string
	target *dom.Element
	x, y   int
	at     time.Duration
}

type fixture struct {
	doc    *dom.Document
	body   *dom.Element
	target *dom.Element
	clock  *clock.Fake
	ptr    *Simulator
	events []recorded
}

// newFixture builds html > body > div.target at (200, 100) and a pointer on a fake clock.
func newFixture(opts ...dom.Option) *fixture {
	target := &dom.Element{Type: "div", Class: "target", Bounds: core.Bounds{X: 200, Y: 100, Width: 50, Height: 50}}
	body := (&dom.Element{Type: "body", Bounds: core.Bounds{Width: 1024, Height: 768}}).Append(target)
	root := (&dom.Element{Type: "html", Bounds: core.Bounds{Width: 1024, Height: 768}}).Append(body)

	f := &fixture{
		doc:    dom.New(root, opts...),
		body:   body,
		target: target,
		clock:  clock.NewFake(epoch),
	}
	f.ptr = New(f.doc, f, WithClock(f.clock))
	f.doc.On(root, strings.Join(dom.PointerEvents, " "), func(ev *dom.Event) {
		f.events = append(f.events, recorded{
			name:   ev.Name,
			target: ev.Target,
			x:      ev.PageX,
			y:      ev.PageY,
			at:     ev.Time.Sub(epoch),
		})
	})
	return f
}

func (f *fixture) names() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.name
	}
	return out
}

func (f *fixture) named(name string) []recorded {
	var out []recorded
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
