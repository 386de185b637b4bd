// Package dom models the render tree pointer gestures run against: elements
// with bounds, hit testing by coordinate, and event dispatch with direct and
// delegated listeners.
package dom

import (
	"strings"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// Element is a node of the render tree.
type Element struct {
	Type     string      // Tag or widget class: body, div, android.widget.Button
	ID       string      // Unique identifier, matched by #id
	Class    string      // Space separated class names, matched by .name
	Text     string      // Visible text
	Bounds   core.Bounds // Position and size in page coordinates
	Hidden   bool        // Hidden elements and their subtrees are not hit-testable
	Children []*Element

	parent *Element
}

// NewElement creates a detached element.
func NewElement(typ string, bounds core.Bounds) *Element {
	return &Element{Type: typ, Bounds: bounds}
}

// Append adds children to e and returns e.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		c.parent = e
		e.Children = append(e.Children, c)
	}
	return e
}

// Parent returns the parent element, nil for a root.
func (e *Element) Parent() *Element {
	return e.parent
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// HasClass reports whether name is one of the element's classes.
func (e *Element) HasClass(name string) bool {
	for _, c := range strings.Fields(e.Class) {
		if c == name {
			return true
		}
	}
	return false
}

// Matches reports whether the element satisfies sel. Selectors combine a type,
// #id and .class parts (or *); space separated parts match ancestors.
func (e *Element) Matches(sel string) bool {
	q, err := parseQuery(sel)
	if err != nil {
		return false
	}
	return q.matches(e)
}

// Label returns a short description: type#id.class.
func (e *Element) Label() string {
	var b strings.Builder
	b.WriteString(e.Type)
	if e.ID != "" {
		b.WriteString("#")
		b.WriteString(e.ID)
	}
	for _, c := range strings.Fields(e.Class) {
		b.WriteString(".")
		b.WriteString(c)
	}
	if b.Len() == 0 {
		return "*"
	}
	return b.String()
}

// Path returns the labels from the root down to e, joined by " > ".
func (e *Element) Path() string {
	var parts []string
	for n := e; n != nil; n = n.parent {
		parts = append(parts, n.Label())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// walk visits e and its descendants depth-first, stopping when fn returns false.
func (e *Element) walk(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// link sets parent pointers throughout the subtree.
func (e *Element) link() {
	for _, c := range e.Children {
		c.parent = e
		c.link()
	}
}
