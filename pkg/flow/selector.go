package flow

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Selector picks an element of the scene. Pure data structure: the executor
// resolves it against a document.
type Selector struct {
	Query string `yaml:"query"` // Descendant chain of compound selectors: "body .box#ok"
	ID    string `yaml:"id"`    // Shorthand for "#id"
	Index int    `yaml:"index"` // Index among all matches, in document order
}

// selectorRaw is used for YAML parsing to capture the "element" shorthand.
type selectorRaw struct {
	Query   string `yaml:"query"`
	Element string `yaml:"element"`
	ID      string `yaml:"id"`
	Index   int    `yaml:"index"`
}

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Query = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.Query = raw.Query
	s.ID = raw.ID
	s.Index = raw.Index

	// "element" is a shorthand for "query"
	if raw.Element != "" && s.Query == "" {
		s.Query = raw.Element
	}

	return nil
}

// IsEmpty returns true if no selector properties are set.
func (s *Selector) IsEmpty() bool {
	return s.Query == "" && s.ID == ""
}

// Expression returns the query the selector stands for. An ID on its own
// becomes "#id"; with a query it narrows the last compound.
func (s *Selector) Expression() string {
	switch {
	case s.Query != "" && s.ID != "":
		return s.Query + "#" + s.ID
	case s.ID != "":
		return "#" + s.ID
	default:
		return s.Query
	}
}

// Describe returns a human-readable description.
func (s *Selector) Describe() string {
	expr := s.Expression()
	if expr != "" && s.Index > 0 {
		return expr + "[" + strconv.Itoa(s.Index) + "]"
	}
	return expr
}

// DescribeQuoted returns a quoted description like "div.box".
func (s *Selector) DescribeQuoted() string {
	if s.IsEmpty() {
		return ""
	}
	return "\"" + s.Describe() + "\""
}
