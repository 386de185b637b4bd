package dom

import (
	"fmt"
	"strings"
)

// selector is one compound selector: type, id and classes (all optional).
type selector struct {
	typ     string
	id      string
	classes []string
	any     bool
}

func parseSelector(sel string) (selector, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return selector{}, fmt.Errorf("empty selector")
	}
	if sel == "*" {
		return selector{any: true}, nil
	}
	if strings.ContainsAny(sel, " >+~[]:,") {
		return selector{}, fmt.Errorf("unsupported selector %q", sel)
	}

	var s selector
	i := 0
	for i < len(sel) && sel[i] != '#' && sel[i] != '.' {
		i++
	}
	s.typ = sel[:i]

	for i < len(sel) {
		kind := sel[i]
		j := i + 1
		for j < len(sel) && sel[j] != '#' && sel[j] != '.' {
			j++
		}
		name := sel[i+1 : j]
		if name == "" {
			return selector{}, fmt.Errorf("invalid selector %q", sel)
		}
		if kind == '#' {
			s.id = name
		} else {
			s.classes = append(s.classes, name)
		}
		i = j
	}
	return s, nil
}

func (s selector) matches(e *Element) bool {
	if s.any {
		return true
	}
	if s.typ != "" && s.typ != e.Type {
		return false
	}
	if s.id != "" && s.id != e.ID {
		return false
	}
	for _, c := range s.classes {
		if !e.HasClass(c) {
			return false
		}
	}
	return true
}

// query is a descendant chain of compound selectors: "#list .item".
type query []selector

// ParseQuery validates a selector query without evaluating it.
func ParseQuery(q string) error {
	_, err := parseQuery(q)
	return err
}

func parseQuery(q string) (query, error) {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	out := make(query, 0, len(fields))
	for _, f := range fields {
		s, err := parseSelector(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// matches checks the last part against e and the rest against its ancestors, nearest first.
func (q query) matches(e *Element) bool {
	last := len(q) - 1
	if !q[last].matches(e) {
		return false
	}
	i := last - 1
	for n := e.parent; n != nil && i >= 0; n = n.parent {
		if q[i].matches(n) {
			i--
		}
	}
	return i < 0
}
