package dom

import (
	"strings"
	"sync"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// Handler is invoked for each matching event.
type Handler func(ev *Event)

// ListenerID identifies a registration returned by On.
type ListenerID uint64

type listener struct {
	id       ListenerID
	el       *Element
	names    []string
	delegate query
	filter   func(*Event) bool
	handler  Handler
}

func (l *listener) accepts(name string, ev *Event) bool {
	found := false
	for _, n := range l.names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	return l.filter == nil || l.filter(ev)
}

// ListenerOption configures a listener.
type ListenerOption func(*listener)

// Delegate restricts the handler to events whose target, or an ancestor of it
// below the listening element, matches sel. The matched element becomes the
// CurrentTarget. An invalid selector never matches.
func Delegate(sel string) ListenerOption {
	return func(l *listener) {
		q, err := parseQuery(sel)
		if err != nil {
			l.delegate = query{}
			return
		}
		l.delegate = q
	}
}

// Filter skips the handler for events the predicate rejects.
func Filter(pred func(*Event) bool) ListenerOption {
	return func(l *listener) {
		l.filter = pred
	}
}

// SyntheticOnly accepts only events produced by the pointer simulator.
func SyntheticOnly() ListenerOption {
	return Filter(func(ev *Event) bool { return ev.Synthetic })
}

// Document owns a render tree and its listeners.
type Document struct {
	root  *Element
	touch bool

	mu        sync.RWMutex
	nextID    ListenerID
	listeners []*listener
}

// Option configures a Document.
type Option func(*Document)

// WithTouch marks the host as touch capable.
func WithTouch(touch bool) Option {
	return func(d *Document) {
		d.touch = touch
	}
}

// New creates a Document rooted at root.
func New(root *Element, opts ...Option) *Document {
	root.parent = nil
	root.link()
	d := &Document{root: root}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the root element.
func (d *Document) Root() *Element {
	return d.root
}

// SupportsTouch reports whether the host accepts touch input.
func (d *Document) SupportsTouch() bool {
	return d.touch
}

// ElementFromPoint returns the topmost visible element at (x, y), or nil.
// Later siblings paint over earlier ones and descendants over ancestors;
// descendants are hit-tested even where they overflow their parent.
func (d *Document) ElementFromPoint(x, y int) *Element {
	return hitTest(d.root, x, y)
}

func hitTest(e *Element, x, y int) *Element {
	if e.Hidden {
		return nil
	}
	for i := len(e.Children) - 1; i >= 0; i-- {
		if hit := hitTest(e.Children[i], x, y); hit != nil {
			return hit
		}
	}
	if e.Bounds.Contains(x, y) {
		return e
	}
	return nil
}

// Offset returns the top-left corner of el in page coordinates.
func (d *Document) Offset(el *Element) (core.Point, error) {
	if el == nil || !d.root.Contains(el) {
		return core.Point{}, core.ErrTargetNotFound.WithMessage("element is not attached to this document")
	}
	return el.Bounds.TopLeft(), nil
}

// Find returns the first element in document order matching sel.
func (d *Document) Find(sel string) (*Element, error) {
	q, err := parseQuery(sel)
	if err != nil {
		return nil, core.ErrTargetNotFound.WithCause(err)
	}
	var found *Element
	d.root.walk(func(e *Element) bool {
		if q.matches(e) {
			found = e
			return false
		}
		return true
	})
	if found == nil {
		return nil, core.ErrTargetNotFound.WithDetails(map[string]interface{}{"selector": sel})
	}
	return found, nil
}

// FindAll returns every element matching sel in document order.
func (d *Document) FindAll(sel string) []*Element {
	q, err := parseQuery(sel)
	if err != nil {
		return nil
	}
	var out []*Element
	d.root.walk(func(e *Element) bool {
		if q.matches(e) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	var found *Element
	d.root.walk(func(e *Element) bool {
		if e.ID == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// On registers handler on el for the space separated event names.
func (d *Document) On(el *Element, names string, handler Handler, opts ...ListenerOption) ListenerID {
	l := &listener{el: el, names: strings.Fields(names), handler: handler}
	for _, opt := range opts {
		opt(l)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	l.id = d.nextID
	d.listeners = append(d.listeners, l)
	return l.id
}

// Off removes a listener. Unknown ids are ignored.
func (d *Document) Off(id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// OffAll removes every listener.
func (d *Document) OffAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = nil
}

// Dispatch delivers ev to target and bubbles it up to the root. At each
// element, delegated listeners run first (deepest match first), then direct
// listeners; a delegated handler that stops propagation also skips the direct
// ones. Handlers run synchronously on the calling goroutine.
func (d *Document) Dispatch(target *Element, ev *Event) {
	ev.Target = target

	d.mu.RLock()
	snapshot := make([]*listener, len(d.listeners))
	copy(snapshot, d.listeners)
	d.mu.RUnlock()

	for cur := target; cur != nil; cur = cur.parent {
		// Delegated matches run by depth, deepest first, and in registration
		// order within a depth. StopPropagation takes effect between depths.
		for n := target; n != nil && n != cur && !ev.stopped; n = n.parent {
			for _, l := range snapshot {
				if l.el != cur || len(l.delegate) == 0 || !l.accepts(ev.Name, ev) || !l.delegate.matches(n) {
					continue
				}
				ev.CurrentTarget = n
				l.handler(ev)
			}
		}
		if ev.stopped {
			break
		}
		for _, l := range snapshot {
			if l.el != cur || l.delegate != nil || !l.accepts(ev.Name, ev) {
				continue
			}
			ev.CurrentTarget = cur
			l.handler(ev)
		}
		if ev.stopped {
			break
		}
	}
	ev.CurrentTarget = nil
}
